package ledgersync

import "fmt"

// AuthState is the coarse result of an auth probe.
type AuthState int

const (
	// AuthValid means the stored session or credentials are usable now.
	AuthValid AuthState = iota
	// AuthMissing means no credentials or session exist at all.
	AuthMissing
	// AuthExpired means credentials exist but no longer work.
	AuthExpired
)

func (s AuthState) String() string {
	switch s {
	case AuthValid:
		return "valid"
	case AuthMissing:
		return "missing"
	case AuthExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// AuthStatus is computed per sync attempt and never persisted.
type AuthStatus struct {
	State  AuthState
	Reason string // populated for AuthExpired
}

func (s AuthStatus) String() string {
	if s.State == AuthExpired && s.Reason != "" {
		return fmt.Sprintf("expired (%s)", s.Reason)
	}
	return s.State.String()
}

// Valid reports whether a sync can proceed without a login.
func (s AuthStatus) Valid() bool { return s.State == AuthValid }
