// Package ledgersync aggregates financial state (balances, transactions,
// market prices) from heterogeneous external sources into a consistent
// local record.
//
// The root package holds the domain model and the pieces with real
// invariants: the transaction identity resolver, the monetary types, the
// error taxonomy and the refresh configuration. The engine itself lives in
// the subpackages:
//
//   - store: the Storage contract with memory and file backed implementations.
//   - marketdata: the price/FX cache with its lookback fallback.
//   - syncer: staleness resolution, the interactive auth state machine,
//     the pagination guard and the per-connection sync pipeline.
//   - chase: one concrete vendor synchronizer.
package ledgersync
