package marketdata

import (
	"sort"
	"sync"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

// priceSeries holds one asset's points of one kind. The History keeps the
// days sorted and backs the bounded lookback search; the map carries the
// full observation.
type priceSeries struct {
	days   date.History[string]
	points map[date.Date]ledgersync.PricePoint
}

type fxSeries struct {
	days   date.History[string]
	points map[date.Date]ledgersync.FxRatePoint
}

type seriesKey struct {
	name string // asset, or "FROM/TO" for rates
	kind ledgersync.PriceKind
}

// Memory is a mutex-guarded in-memory Store.
type Memory struct {
	mu     sync.Mutex
	prices map[seriesKey]*priceSeries
	fx     map[seriesKey]*fxSeries
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		prices: make(map[seriesKey]*priceSeries),
		fx:     make(map[seriesKey]*fxSeries),
	}
}

var _ Store = (*Memory)(nil)

func pairName(from, to string) string { return from + "/" + to }

func (m *Memory) Price(asset string, kind ledgersync.PriceKind, day date.Date) (ledgersync.PricePoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.prices[seriesKey{asset, kind}]
	if !ok {
		return ledgersync.PricePoint{}, false
	}
	p, ok := s.points[day]
	return p, ok
}

func (m *Memory) PriceLookback(asset string, kind ledgersync.PriceKind, day date.Date, maxDays int) (ledgersync.PricePoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.prices[seriesKey{asset, kind}]
	if !ok {
		return ledgersync.PricePoint{}, false
	}
	on, _, ok := s.days.Lookback(day, maxDays)
	if !ok {
		return ledgersync.PricePoint{}, false
	}
	return s.points[on], true
}

func (m *Memory) LatestPrice(asset string, kind ledgersync.PriceKind) (ledgersync.PricePoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.prices[seriesKey{asset, kind}]
	if !ok || s.days.Len() == 0 {
		return ledgersync.PricePoint{}, false
	}
	on, _ := s.days.Latest()
	return s.points[on], true
}

func (m *Memory) Prices(asset string) []ledgersync.PricePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pricesOf(asset)
}

// pricesOf returns the asset's points of all kinds sorted by day then kind.
// Callers hold the lock.
func (m *Memory) pricesOf(asset string) []ledgersync.PricePoint {
	var out []ledgersync.PricePoint
	for _, kind := range []ledgersync.PriceKind{ledgersync.Close, ledgersync.Quote} {
		if s, ok := m.prices[seriesKey{asset, kind}]; ok {
			for on := range s.days.Values() {
				out = append(out, s.points[on])
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

func (m *Memory) Assets() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for k := range m.prices {
		seen[k.name] = true
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) PutPrices(points ...ledgersync.PricePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.putPrice(p)
	}
	return nil
}

func (m *Memory) putPrice(p ledgersync.PricePoint) {
	key := seriesKey{p.Asset, p.Kind}
	s, ok := m.prices[key]
	if !ok {
		s = &priceSeries{points: make(map[date.Date]ledgersync.PricePoint)}
		m.prices[key] = s
	}
	s.days.Append(p.Day, p.Price.String())
	s.points[p.Day] = p
}

func (m *Memory) FxRate(from, to string, kind ledgersync.PriceKind, day date.Date) (ledgersync.FxRatePoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.fx[seriesKey{pairName(from, to), kind}]
	if !ok {
		return ledgersync.FxRatePoint{}, false
	}
	p, ok := s.points[day]
	return p, ok
}

func (m *Memory) FxLookback(from, to string, kind ledgersync.PriceKind, day date.Date, maxDays int) (ledgersync.FxRatePoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.fx[seriesKey{pairName(from, to), kind}]
	if !ok {
		return ledgersync.FxRatePoint{}, false
	}
	on, _, ok := s.days.Lookback(day, maxDays)
	if !ok {
		return ledgersync.FxRatePoint{}, false
	}
	return s.points[on], true
}

func (m *Memory) PutFxRates(points ...ledgersync.FxRatePoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.putFxRate(p)
	}
	return nil
}

func (m *Memory) putFxRate(p ledgersync.FxRatePoint) {
	key := seriesKey{pairName(p.From, p.To), p.Kind}
	s, ok := m.fx[key]
	if !ok {
		s = &fxSeries{points: make(map[date.Date]ledgersync.FxRatePoint)}
		m.fx[key] = s
	}
	s.days.Append(p.Day, p.Rate.String())
	s.points[p.Day] = p
}

// snapshot returns every stored point in a stable order, assets then pairs
// alphabetically, days chronologically. The file store depends on this
// order to produce byte-identical files across runs.
func (m *Memory) snapshot() ([]ledgersync.PricePoint, []ledgersync.FxRatePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	assets := make(map[string]bool)
	for k := range m.prices {
		assets[k.name] = true
	}
	names := make([]string, 0, len(assets))
	for a := range assets {
		names = append(names, a)
	}
	sort.Strings(names)
	var prices []ledgersync.PricePoint
	for _, a := range names {
		prices = append(prices, m.pricesOf(a)...)
	}

	pairs := make([]seriesKey, 0, len(m.fx))
	for k := range m.fx {
		pairs = append(pairs, k)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].name != pairs[j].name {
			return pairs[i].name < pairs[j].name
		}
		return pairs[i].kind < pairs[j].kind
	})
	var rates []ledgersync.FxRatePoint
	for _, k := range pairs {
		s := m.fx[k]
		for on := range s.days.Values() {
			rates = append(rates, s.points[on])
		}
	}
	return prices, rates
}
