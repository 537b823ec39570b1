package syncer

import (
	"context"
	"fmt"
	"sort"

	"github.com/lbatt/ledgersync"
)

// ManualKind marks connections maintained by hand. The orchestrator never
// contacts a synchronizer for them.
const ManualKind = "manual"

// SyncResult is one synchronizer run's view of a connection.
type SyncResult struct {
	// Accounts are the accounts visible through the connection. The
	// pipeline saves them as-is, stamping the connection ID.
	Accounts []ledgersync.Account
	// Balances holds a fresh snapshot per account ID.
	Balances map[string]ledgersync.BalanceSnapshot
	// Transactions holds the fetched raw records per account ID. IDs may
	// be left empty; the pipeline derives them.
	Transactions map[string][]ledgersync.Transaction
}

// Synchronizer fetches one vendor's data for a connection.
type Synchronizer interface {
	Name() string
	Sync(ctx context.Context, conn *ledgersync.Connection) (*SyncResult, error)
	// Interactive returns the auth capability, or nil when the vendor
	// needs none.
	Interactive() InteractiveAuth
	// RequiresAuth reports whether Sync is useless without valid auth.
	// Some vendors still serve cached or public data logged out.
	RequiresAuth() bool
}

// Factory builds a synchronizer for a connection.
type Factory func(conn *ledgersync.Connection, creds ledgersync.CredentialStore) (Synchronizer, error)

// Registry maps synchronizer kinds to factories.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a kind to a factory, replacing any previous binding.
func (r *Registry) Register(kind string, f Factory) {
	r.factories[kind] = f
}

// Kinds lists the registered kinds plus the built-in manual kind, sorted.
func (r *Registry) Kinds() []string {
	out := []string{ManualKind}
	for k := range r.factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New builds the synchronizer for the connection's kind.
func (r *Registry) New(conn *ledgersync.Connection, creds ledgersync.CredentialStore) (Synchronizer, error) {
	f, ok := r.factories[conn.Config.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown synchronizer kind %q for connection %q", conn.Config.Kind, conn.Name())
	}
	return f(conn, creds)
}
