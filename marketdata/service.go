package marketdata

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

// Service resolves prices and rates cache-first. Resolution order for a
// close: the exact cached day, then the nearest earlier cached day within
// the lookback window, then a live fetch, then ErrPriceMissing.
//
// Every path that produces a point re-stores it through the store's
// idempotent put, so a retry from any path never duplicates.
type Service struct {
	store  Store
	source Source   // nil means cache only
	fx     FxSource // nil means cache only
	cfg    ledgersync.RefreshConfig
	clock  ledgersync.Clock
}

// NewService creates a price resolution service. source and fx may be nil;
// a nil clock means the system clock.
func NewService(store Store, source Source, fx FxSource, cfg ledgersync.RefreshConfig, clock ledgersync.Clock) *Service {
	if clock == nil {
		clock = ledgersync.SystemClock()
	}
	return &Service{store: store, source: source, fx: fx, cfg: cfg, clock: clock}
}

// Store exposes the underlying cache, mostly for reporting.
func (s *Service) Store() Store { return s.store }

// PriceClose returns the close of the asset on day, or the nearest earlier
// close within the lookback window, fetching live as a last resort.
func (s *Service) PriceClose(asset string, day date.Date) (ledgersync.PricePoint, error) {
	if p, ok := s.store.Price(asset, ledgersync.Close, day); ok {
		return p, nil
	}
	if p, ok := s.store.PriceLookback(asset, ledgersync.Close, day, s.cfg.LookbackDays); ok {
		if err := s.store.PutPrices(p); err != nil {
			return ledgersync.PricePoint{}, err
		}
		return p, nil
	}
	if s.source != nil {
		p, err := s.source.PriceClose(asset, day)
		if err != nil {
			return ledgersync.PricePoint{}, err
		}
		if err := s.store.PutPrices(p); err != nil {
			return ledgersync.PricePoint{}, err
		}
		return p, nil
	}
	return ledgersync.PricePoint{}, fmt.Errorf("no close for %s on %s: %w", asset, day, ledgersync.ErrPriceMissing)
}

// PriceLatest returns a quote for the asset on day if one is cached and
// fresher than the quote staleness window, fetching live when a source is
// configured, and falling back to PriceClose otherwise.
func (s *Service) PriceLatest(asset string, day date.Date) (ledgersync.PricePoint, error) {
	if p, ok := s.store.Price(asset, ledgersync.Quote, day); ok {
		if s.clock.Now().Sub(p.Time) <= s.cfg.QuoteStaleness.Std() {
			return p, nil
		}
	}
	if s.source != nil {
		p, err := s.source.PriceLatest(asset)
		if err == nil {
			if err := s.store.PutPrices(p); err != nil {
				return ledgersync.PricePoint{}, err
			}
			return p, nil
		}
		// a stale or missing quote is served from closes instead
		log.Printf("live quote for %s failed, falling back to close: %v", asset, err)
	}
	return s.PriceClose(asset, day)
}

// FxClose returns the rate converting from into to on day. Same-currency
// conversion is the identity and never fetches. Cross rates are derived by
// dividing the two pivot rates (base to, base from) quoted by the source,
// since most providers only quote against one base currency.
func (s *Service) FxClose(from, to string, day date.Date) (ledgersync.FxRatePoint, error) {
	if from == to {
		return ledgersync.FxRatePoint{From: from, To: to, Day: day, Rate: decimal.NewFromInt(1), Kind: ledgersync.Close}, nil
	}
	if p, ok := s.store.FxRate(from, to, ledgersync.Close, day); ok {
		return p, nil
	}
	if p, ok := s.store.FxLookback(from, to, ledgersync.Close, day, s.cfg.LookbackDays); ok {
		if err := s.store.PutFxRates(p); err != nil {
			return ledgersync.FxRatePoint{}, err
		}
		return p, nil
	}
	if s.fx == nil {
		return ledgersync.FxRatePoint{}, fmt.Errorf("no rate for %s/%s on %s: %w", from, to, day, ledgersync.ErrPriceMissing)
	}
	base := s.fx.Base()
	baseFrom, err := s.legRate(base, from, day)
	if err != nil {
		return ledgersync.FxRatePoint{}, err
	}
	baseTo, err := s.legRate(base, to, day)
	if err != nil {
		return ledgersync.FxRatePoint{}, err
	}
	if baseFrom.IsZero() {
		return ledgersync.FxRatePoint{}, fmt.Errorf("zero %s/%s rate on %s: %w", base, from, day, ledgersync.ErrPriceMissing)
	}
	return ledgersync.FxRatePoint{
		From:   from,
		To:     to,
		Day:    day,
		Time:   s.clock.Now(),
		Rate:   baseTo.Div(baseFrom),
		Kind:   ledgersync.Close,
		Source: s.fx.Name(),
	}, nil
}

// legRate resolves one pivot leg, base to cur, cache first.
func (s *Service) legRate(base, cur string, day date.Date) (decimal.Decimal, error) {
	if cur == base {
		return decimal.NewFromInt(1), nil
	}
	if p, ok := s.store.FxRate(base, cur, ledgersync.Close, day); ok {
		return p.Rate, nil
	}
	if p, ok := s.store.FxLookback(base, cur, ledgersync.Close, day, s.cfg.LookbackDays); ok {
		return p.Rate, nil
	}
	p, err := s.fx.Rate(cur, day)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := s.store.PutFxRates(p); err != nil {
		return decimal.Decimal{}, err
	}
	return p.Rate, nil
}

// PriceRefreshResult tallies a bulk refresh. Gaps are statistics, never
// errors: a batch caller records them and moves on.
type PriceRefreshResult struct {
	Fetched int
	Skipped int
	Failed  int
	// Missing lists the assets no price could be resolved for.
	Missing []string
}

func (r PriceRefreshResult) String() string {
	return fmt.Sprintf("%d fetched, %d fresh, %d failed", r.Fetched, r.Skipped, r.Failed)
}

// RefreshAssets resolves a close on day for every asset, counting rather
// than failing on gaps.
func (s *Service) RefreshAssets(assets []string, day date.Date) PriceRefreshResult {
	var res PriceRefreshResult
	for _, asset := range assets {
		if _, ok := s.store.Price(asset, ledgersync.Close, day); ok {
			res.Skipped++
			continue
		}
		if _, err := s.PriceClose(asset, day); err != nil {
			log.Printf("refresh %s on %s: %v", asset, day, err)
			res.Failed++
			res.Missing = append(res.Missing, asset)
			continue
		}
		res.Fetched++
	}
	return res
}

// RefreshAll refreshes every asset present in the store.
func (s *Service) RefreshAll(day date.Date) PriceRefreshResult {
	return s.RefreshAssets(s.store.Assets(), day)
}
