package store

import (
	"fmt"
	"sync"

	"github.com/lbatt/ledgersync"
)

// Memory is a mutex-guarded in-memory Storage, used by tests and by
// short-lived daemon state. It honors the same append-only log semantics
// as the file store.
type Memory struct {
	mu           sync.Mutex
	connections  map[string]*ledgersync.Connection
	accounts     map[string]*ledgersync.Account
	balances     map[string][]ledgersync.BalanceSnapshot
	transactions map[string][]ledgersync.Transaction
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		connections:  make(map[string]*ledgersync.Connection),
		accounts:     make(map[string]*ledgersync.Account),
		balances:     make(map[string][]ledgersync.BalanceSnapshot),
		transactions: make(map[string][]ledgersync.Transaction),
	}
}

var _ Storage = (*Memory)(nil)

func (m *Memory) ListConnections() ([]*ledgersync.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ledgersync.Connection, 0, len(m.connections))
	for _, c := range m.connections {
		cc := *c
		out = append(out, &cc)
	}
	sortConnections(out)
	return out, nil
}

func (m *Memory) GetConnection(idOrName string) (*ledgersync.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.connections[idOrName]; ok {
		cc := *c
		return &cc, nil
	}
	for _, c := range m.connections {
		if c.Config.Name == idOrName {
			cc := *c
			return &cc, nil
		}
	}
	return nil, fmt.Errorf("connection %q: %w", idOrName, ledgersync.ErrNotFound)
}

func (m *Memory) SaveConnection(c *ledgersync.Connection) error {
	if err := ledgersync.ValidateID(c.State.ID); err != nil {
		return &ledgersync.StorageError{Op: "save connection", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cc := *c
	m.connections[c.State.ID] = &cc
	return nil
}

func (m *Memory) DeleteConnection(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[id]; !ok {
		return fmt.Errorf("connection %q: %w", id, ledgersync.ErrNotFound)
	}
	delete(m.connections, id)
	return nil
}

func (m *Memory) ListAccounts() ([]*ledgersync.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ledgersync.Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		aa := *a
		out = append(out, &aa)
	}
	sortAccounts(out)
	return out, nil
}

func (m *Memory) GetAccount(id string) (*ledgersync.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %q: %w", id, ledgersync.ErrNotFound)
	}
	aa := *a
	return &aa, nil
}

func (m *Memory) SaveAccount(a *ledgersync.Account) error {
	if err := ledgersync.ValidateID(a.ID); err != nil {
		return &ledgersync.StorageError{Op: "save account", Err: err}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	aa := *a
	m.accounts[a.ID] = &aa
	return nil
}

func (m *Memory) DeleteAccount(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return fmt.Errorf("account %q: %w", id, ledgersync.ErrNotFound)
	}
	delete(m.accounts, id)
	return nil
}

func (m *Memory) AppendBalanceSnapshot(accountID string, s ledgersync.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] = append(m.balances[accountID], s)
	return nil
}

func (m *Memory) BalanceSnapshots(accountID string) ([]ledgersync.BalanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledgersync.BalanceSnapshot, len(m.balances[accountID]))
	copy(out, m.balances[accountID])
	return out, nil
}

func (m *Memory) LatestBalances(accountID string) (*ledgersync.BalanceSnapshot, error) {
	snaps, err := m.BalanceSnapshots(accountID)
	if err != nil {
		return nil, err
	}
	return ledgersync.LatestSnapshot(snaps), nil
}

func (m *Memory) LatestBalancesForConnection(connectionID string) (map[string]ledgersync.BalanceSnapshot, error) {
	accounts, err := m.ListAccounts()
	if err != nil {
		return nil, err
	}
	out := make(map[string]ledgersync.BalanceSnapshot)
	for _, a := range accounts {
		if a.ConnectionID != connectionID {
			continue
		}
		latest, err := m.LatestBalances(a.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			out[a.ID] = *latest
		}
	}
	return out, nil
}

func (m *Memory) AppendTransactions(accountID string, txs []ledgersync.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[accountID] = append(m.transactions[accountID], txs...)
	return nil
}

func (m *Memory) RawTransactions(accountID string) ([]ledgersync.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ledgersync.Transaction, len(m.transactions[accountID]))
	copy(out, m.transactions[accountID])
	return out, nil
}

func (m *Memory) Transactions(accountID string) ([]ledgersync.Transaction, error) {
	raw, err := m.RawTransactions(accountID)
	if err != nil {
		return nil, err
	}
	return ledgersync.Canonicalize(raw), nil
}
