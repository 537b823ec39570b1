// Package marketdata caches price and exchange-rate observations and
// resolves valuation prices cache-first, walking back over a bounded
// lookback window before asking a live source.
package marketdata

import (
	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

// Store persists price and FX observations. At most one point exists per
// (asset, day, kind), respectively (from, to, day, kind); putting another
// overwrites, so every resolution path can re-store through the same put
// without creating duplicates.
type Store interface {
	// Price returns the point stored for exactly (asset, day, kind).
	Price(asset string, kind ledgersync.PriceKind, day date.Date) (ledgersync.PricePoint, bool)
	// PriceLookback returns the point at day or the nearest earlier day
	// within maxDays days back.
	PriceLookback(asset string, kind ledgersync.PriceKind, day date.Date, maxDays int) (ledgersync.PricePoint, bool)
	// LatestPrice returns the most recent point of that kind for the asset.
	LatestPrice(asset string, kind ledgersync.PriceKind) (ledgersync.PricePoint, bool)
	// Prices returns every point stored for the asset, all kinds, in
	// chronological order.
	Prices(asset string) []ledgersync.PricePoint
	// Assets lists the assets with at least one point, sorted.
	Assets() []string
	PutPrices(points ...ledgersync.PricePoint) error

	FxRate(from, to string, kind ledgersync.PriceKind, day date.Date) (ledgersync.FxRatePoint, bool)
	FxLookback(from, to string, kind ledgersync.PriceKind, day date.Date, maxDays int) (ledgersync.FxRatePoint, bool)
	PutFxRates(points ...ledgersync.FxRatePoint) error
}
