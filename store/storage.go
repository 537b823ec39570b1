// Package store defines the Storage contract for connections, accounts,
// balance snapshots and transaction logs, with a mutex-guarded in-memory
// implementation and a file-backed one.
//
// The concurrency discipline is part of the contract, not of any one
// implementation: writers to one logical resource are serialized, so a CLI
// run and a background daemon never interleave a partial write.
package store

import (
	"github.com/lbatt/ledgersync"
)

// Storage persists the engine's record of truth.
//
// Transaction logs are append-only: AppendTransactions never rewrites
// history, and duplicates in the raw log are expected. Transactions (the
// canonical read) dedups to one record per identity, last write wins;
// RawTransactions exposes the untouched audit trail.
type Storage interface {
	ListConnections() ([]*ledgersync.Connection, error)
	// GetConnection resolves a connection by state ID or by config name.
	GetConnection(idOrName string) (*ledgersync.Connection, error)
	SaveConnection(c *ledgersync.Connection) error
	DeleteConnection(id string) error

	ListAccounts() ([]*ledgersync.Account, error)
	GetAccount(id string) (*ledgersync.Account, error)
	SaveAccount(a *ledgersync.Account) error
	DeleteAccount(id string) error

	AppendBalanceSnapshot(accountID string, s ledgersync.BalanceSnapshot) error
	BalanceSnapshots(accountID string) ([]ledgersync.BalanceSnapshot, error)
	// LatestBalances returns the snapshot with the greatest timestamp, or
	// nil if the account has none.
	LatestBalances(accountID string) (*ledgersync.BalanceSnapshot, error)
	// LatestBalancesForConnection returns the latest snapshot of every
	// account owned by the connection, keyed by account ID. Ownership is
	// resolved through Account.ConnectionID, never through the cached
	// index in ConnectionState.AccountIDs.
	LatestBalancesForConnection(connectionID string) (map[string]ledgersync.BalanceSnapshot, error)

	AppendTransactions(accountID string, txs []ledgersync.Transaction) error
	RawTransactions(accountID string) ([]ledgersync.Transaction, error)
	Transactions(accountID string) ([]ledgersync.Transaction, error)
}
