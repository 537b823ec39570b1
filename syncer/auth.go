package syncer

import (
	"context"

	"github.com/lbatt/ledgersync"
)

// InteractiveAuth is the auth capability a synchronizer may expose.
type InteractiveAuth interface {
	// CheckAuth probes the stored session or credentials without side
	// effects. It is computed per attempt and never persisted.
	CheckAuth() ledgersync.AuthStatus
	// Login acquires a fresh session. It may block on a human actor, so it
	// honors ctx cancellation.
	Login(ctx context.Context) error
}

// AuthPrompter decides whether a blocked sync may interrupt a human with a
// login. The decision policy is injected, not hardcoded: a daemon always
// denies and keeps running unattended, an interactive run can allow.
type AuthPrompter interface {
	ApproveLogin(conn *ledgersync.Connection, status ledgersync.AuthStatus) bool
}

// AuthPrompterFunc adapts a function to the AuthPrompter interface.
type AuthPrompterFunc func(conn *ledgersync.Connection, status ledgersync.AuthStatus) bool

func (f AuthPrompterFunc) ApproveLogin(conn *ledgersync.Connection, status ledgersync.AuthStatus) bool {
	return f(conn, status)
}

// DenyLogins is the unattended policy: never interrupt.
func DenyLogins() AuthPrompter {
	return AuthPrompterFunc(func(*ledgersync.Connection, ledgersync.AuthStatus) bool { return false })
}

// AllowLogins is the interactive policy: always proceed to login.
func AllowLogins() AuthPrompter {
	return AuthPrompterFunc(func(*ledgersync.Connection, ledgersync.AuthStatus) bool { return true })
}
