package marketdata

import (
	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

// Source provides live prices for assets it recognizes. It is optional:
// a Service without one resolves from the cache only.
type Source interface {
	Name() string
	// PriceClose returns the end-of-day close of the asset on day.
	PriceClose(asset string, day date.Date) (ledgersync.PricePoint, error)
	// PriceLatest returns the freshest quote available for the asset.
	PriceLatest(asset string) (ledgersync.PricePoint, error)
}

// FxSource provides exchange rates quoted against a single pivot currency,
// the way most providers do. Cross rates for arbitrary pairs are derived by
// the Service, never requested directly.
type FxSource interface {
	Name() string
	// Base returns the pivot currency every rate is quoted against.
	Base() string
	// Rate returns the value of one Base unit expressed in cur, on day.
	Rate(cur string, day date.Date) (ledgersync.FxRatePoint, error)
}
