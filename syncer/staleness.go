// Package syncer runs the per-connection sync pipeline: staleness probe,
// auth check, vendor fetch, identity resolution, persistence and valuation
// price refresh. Batch runs are sequential over a bounded set of
// connections; a failing connection yields a Failed outcome, never an
// abort of the batch.
package syncer

import (
	"time"

	"github.com/lbatt/ledgersync"
)

// ResolveBalanceStaleness picks the effective balance staleness threshold.
// An explicit per-call override wins over the connection's override, which
// wins over the global default. Pure function.
func ResolveBalanceStaleness(override time.Duration, conn *ledgersync.Connection, cfg ledgersync.RefreshConfig) time.Duration {
	if override > 0 {
		return override
	}
	if conn != nil && conn.Config.BalanceStaleness > 0 {
		return conn.Config.BalanceStaleness
	}
	return cfg.BalanceStaleness.Std()
}

// ResolvePriceStaleness picks the effective price staleness threshold, with
// the account level sitting above the connection one: per-call override,
// then account, then connection, then global.
func ResolvePriceStaleness(override time.Duration, acc *ledgersync.Account, conn *ledgersync.Connection, cfg ledgersync.RefreshConfig) time.Duration {
	if override > 0 {
		return override
	}
	if acc != nil && acc.PriceStaleness > 0 {
		return acc.PriceStaleness
	}
	if conn != nil && conn.Config.PriceStaleness > 0 {
		return conn.Config.PriceStaleness
	}
	return cfg.PriceStaleness.Std()
}

// Staleness is the result of a staleness probe.
type Staleness struct {
	Stale bool
	// Age is zero when the connection has never synced.
	Age time.Duration
}

// CheckBalanceStalenessAt reports whether the connection's balances are
// stale at instant now. A connection that never synced is always stale.
func CheckBalanceStalenessAt(conn *ledgersync.Connection, threshold time.Duration, now time.Time) Staleness {
	if conn.State.LastSync == nil {
		return Staleness{Stale: true}
	}
	age := now.Sub(*conn.State.LastSync)
	return Staleness{Stale: age > threshold, Age: age}
}
