package ledgersync

import "time"

// AssetBalance is the amount of one asset held at a point in time. For
// cash the asset is the currency code itself.
type AssetBalance struct {
	Asset  string `json:"asset"`
	Amount Money  `json:"amount"`
}

// BalanceSnapshot is one observation of an account's balances. Snapshots
// are append-only per account; the latest is the one with the greatest
// timestamp.
type BalanceSnapshot struct {
	Time     time.Time      `json:"time"`
	Balances []AssetBalance `json:"balances"`
}

// LatestSnapshot returns the snapshot with the greatest timestamp, or nil
// if there are none.
func LatestSnapshot(snapshots []BalanceSnapshot) *BalanceSnapshot {
	var latest *BalanceSnapshot
	for i := range snapshots {
		if latest == nil || snapshots[i].Time.After(latest.Time) {
			latest = &snapshots[i]
		}
	}
	return latest
}
