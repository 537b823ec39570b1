package ledgersync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConnectionStatus is the lifecycle status of a connection.
type ConnectionStatus int

const (
	Active ConnectionStatus = iota
	ConnError
	Disconnected
	PendingReauth
)

func (s ConnectionStatus) String() string {
	switch s {
	case Active:
		return "active"
	case ConnError:
		return "error"
	case Disconnected:
		return "disconnected"
	case PendingReauth:
		return "pending-reauth"
	default:
		return "unknown"
	}
}

// ParseConnectionStatus parses a string into a ConnectionStatus.
func ParseConnectionStatus(s string) (ConnectionStatus, error) {
	switch s {
	case "active":
		return Active, nil
	case "error":
		return ConnError, nil
	case "disconnected":
		return Disconnected, nil
	case "pending-reauth":
		return PendingReauth, nil
	default:
		return 0, fmt.Errorf("unknown connection status: %q", s)
	}
}

func (s ConnectionStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *ConnectionStatus) UnmarshalText(text []byte) error {
	v, err := ParseConnectionStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ConnectionConfig is the user-authored half of a connection.
type ConnectionConfig struct {
	Name           string        `json:"name"`
	Kind           string        `json:"kind"`
	CredentialsRef string        `json:"credentials_ref,omitempty"`
	// BalanceStaleness overrides the global balance staleness threshold for
	// this connection. Zero means "no override".
	BalanceStaleness time.Duration `json:"balance_staleness,omitempty"`
	// PriceStaleness overrides the global price staleness threshold.
	PriceStaleness time.Duration `json:"price_staleness,omitempty"`
}

// ConnectionState is the engine-owned half of a connection, mutated only by
// the sync orchestrator (and explicit manual edits).
type ConnectionState struct {
	ID        string           `json:"id"`
	Status    ConnectionStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	// LastSync is the instant of the last successful sync, nil if never.
	LastSync *time.Time `json:"last_sync,omitempty"`
	// AccountIDs is a cached index of accounts seen through this
	// connection. It is best effort and may drift; Account.ConnectionID is
	// the source of truth for ownership.
	AccountIDs       []string          `json:"account_ids,omitempty"`
	SynchronizerData map[string]string `json:"synchronizer_data,omitempty"`
}

// Connection binds a vendor synchronizer configuration to its engine state.
type Connection struct {
	Config ConnectionConfig `json:"config"`
	State  ConnectionState  `json:"state"`
}

// NewConnection creates an active connection for the given synchronizer kind.
func NewConnection(name, kind string, clock Clock) *Connection {
	return &Connection{
		Config: ConnectionConfig{Name: name, Kind: kind},
		State: ConnectionState{
			ID:        uuid.NewString(),
			Status:    Active,
			CreatedAt: clock.Now(),
		},
	}
}

// ID returns the connection's stable identifier.
func (c *Connection) ID() string { return c.State.ID }

// Name returns the connection's human name.
func (c *Connection) Name() string { return c.Config.Name }
