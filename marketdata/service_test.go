package marketdata

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

// fakeSource serves closes and quotes from fixed maps and counts calls.
type fakeSource struct {
	closes  map[string]float64
	quotes  map[string]float64
	clock   ledgersync.Clock
	fetches int
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) PriceClose(asset string, day date.Date) (ledgersync.PricePoint, error) {
	f.fetches++
	v, ok := f.closes[asset]
	if !ok {
		return ledgersync.PricePoint{}, errors.New("fake: unknown asset " + asset)
	}
	return ledgersync.PricePoint{
		Asset: asset, Day: day, Price: decimal.NewFromFloat(v),
		Currency: "USD", Kind: ledgersync.Close, Source: "fake",
	}, nil
}

func (f *fakeSource) PriceLatest(asset string) (ledgersync.PricePoint, error) {
	f.fetches++
	v, ok := f.quotes[asset]
	if !ok {
		return ledgersync.PricePoint{}, errors.New("fake: no quote for " + asset)
	}
	now := f.clock.Now()
	return ledgersync.PricePoint{
		Asset: asset, Day: date.Of(now), Time: now, Price: decimal.NewFromFloat(v),
		Currency: "USD", Kind: ledgersync.Quote, Source: "fake",
	}, nil
}

// fakeFx quotes counter currencies against USD.
type fakeFx struct {
	rates   map[string]float64
	fetches int
}

func (f *fakeFx) Name() string { return "fakefx" }
func (f *fakeFx) Base() string { return "USD" }

func (f *fakeFx) Rate(cur string, day date.Date) (ledgersync.FxRatePoint, error) {
	f.fetches++
	v, ok := f.rates[cur]
	if !ok {
		return ledgersync.FxRatePoint{}, errors.New("fakefx: unknown currency " + cur)
	}
	return ledgersync.FxRatePoint{
		From: "USD", To: cur, Day: day, Rate: decimal.NewFromFloat(v),
		Kind: ledgersync.Close, Source: "fakefx",
	}, nil
}

var testNow = time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)

func newTestService(store Store, source Source, fx FxSource) *Service {
	cfg := ledgersync.DefaultConfig().Refresh
	return NewService(store, source, fx, cfg, ledgersync.FixedClock(testNow))
}

func TestServicePriceCloseCacheFirst(t *testing.T) {
	store := NewMemory()
	day := date.New(2025, time.March, 7)
	if err := store.PutPrices(closeOn("VTI", day, 280.5)); err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{closes: map[string]float64{"VTI": 999}}
	svc := newTestService(store, src, nil)

	p, err := svc.PriceClose("VTI", day)
	if err != nil {
		t.Fatalf("PriceClose: %v", err)
	}
	if !p.Price.Equal(decimal.NewFromFloat(280.5)) {
		t.Errorf("price = %v, want cached 280.5", p.Price)
	}
	if src.fetches != 0 {
		t.Errorf("source was contacted %d times on a cache hit", src.fetches)
	}
}

func TestServicePriceCloseLookback(t *testing.T) {
	store := NewMemory()
	friday := date.New(2025, time.March, 7)
	saturday := friday.Add(1)
	if err := store.PutPrices(closeOn("VTI", friday, 280.5)); err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{closes: map[string]float64{"VTI": 999}}
	svc := newTestService(store, src, nil)

	p, err := svc.PriceClose("VTI", saturday)
	if err != nil {
		t.Fatalf("PriceClose: %v", err)
	}
	if p.Day != friday {
		t.Errorf("day = %s, want lookback hit on %s", p.Day, friday)
	}
	if src.fetches != 0 {
		t.Errorf("source was contacted %d times despite a lookback hit", src.fetches)
	}
	// the lookback hit was re-stored without duplicating
	if got := store.Prices("VTI"); len(got) != 1 {
		t.Errorf("store holds %d points, want 1", len(got))
	}
}

func TestServicePriceCloseLiveFetch(t *testing.T) {
	store := NewMemory()
	day := date.New(2025, time.March, 7)
	src := &fakeSource{closes: map[string]float64{"VTI": 281.3}}
	svc := newTestService(store, src, nil)

	p, err := svc.PriceClose("VTI", day)
	if err != nil {
		t.Fatalf("PriceClose: %v", err)
	}
	if !p.Price.Equal(decimal.NewFromFloat(281.3)) {
		t.Errorf("price = %v, want fetched 281.3", p.Price)
	}
	// the fetched point is cached, the second call does not fetch again
	if _, err := svc.PriceClose("VTI", day); err != nil {
		t.Fatalf("second PriceClose: %v", err)
	}
	if src.fetches != 1 {
		t.Errorf("source fetched %d times, want 1", src.fetches)
	}
}

func TestServicePriceCloseMissing(t *testing.T) {
	svc := newTestService(NewMemory(), nil, nil)
	_, err := svc.PriceClose("VTI", date.New(2025, time.March, 7))
	if !errors.Is(err, ledgersync.ErrPriceMissing) {
		t.Errorf("err = %v, want ErrPriceMissing", err)
	}
}

func TestServicePriceLatest(t *testing.T) {
	day := date.Of(testNow)

	t.Run("fresh quote served from cache", func(t *testing.T) {
		store := NewMemory()
		q := closeOn("VTI", day, 281.2)
		q.Kind = ledgersync.Quote
		q.Time = testNow.Add(-5 * time.Minute)
		if err := store.PutPrices(q); err != nil {
			t.Fatal(err)
		}
		src := &fakeSource{quotes: map[string]float64{"VTI": 999}, clock: ledgersync.FixedClock(testNow)}
		svc := newTestService(store, src, nil)
		p, err := svc.PriceLatest("VTI", day)
		if err != nil {
			t.Fatalf("PriceLatest: %v", err)
		}
		if !p.Price.Equal(q.Price) || src.fetches != 0 {
			t.Errorf("price = %v fetches = %d, want cached quote and no fetch", p.Price, src.fetches)
		}
	})

	t.Run("stale quote refetched", func(t *testing.T) {
		store := NewMemory()
		q := closeOn("VTI", day, 281.2)
		q.Kind = ledgersync.Quote
		q.Time = testNow.Add(-2 * time.Hour)
		if err := store.PutPrices(q); err != nil {
			t.Fatal(err)
		}
		src := &fakeSource{quotes: map[string]float64{"VTI": 282.0}, clock: ledgersync.FixedClock(testNow)}
		svc := newTestService(store, src, nil)
		p, err := svc.PriceLatest("VTI", day)
		if err != nil {
			t.Fatalf("PriceLatest: %v", err)
		}
		if !p.Price.Equal(decimal.NewFromFloat(282.0)) {
			t.Errorf("price = %v, want live 282", p.Price)
		}
	})

	t.Run("no quote falls back to close", func(t *testing.T) {
		store := NewMemory()
		if err := store.PutPrices(closeOn("VTI", day, 280.5)); err != nil {
			t.Fatal(err)
		}
		svc := newTestService(store, nil, nil)
		p, err := svc.PriceLatest("VTI", day)
		if err != nil {
			t.Fatalf("PriceLatest: %v", err)
		}
		if p.Kind != ledgersync.Close {
			t.Errorf("kind = %v, want Close fallback", p.Kind)
		}
	})
}

func TestServiceFxClose(t *testing.T) {
	day := date.New(2025, time.March, 7)

	t.Run("same currency is identity", func(t *testing.T) {
		fx := &fakeFx{rates: map[string]float64{"EUR": 0.92}}
		svc := newTestService(NewMemory(), nil, fx)
		p, err := svc.FxClose("EUR", "EUR", day)
		if err != nil {
			t.Fatalf("FxClose: %v", err)
		}
		if !p.Rate.Equal(decimal.NewFromInt(1)) {
			t.Errorf("rate = %v, want 1", p.Rate)
		}
		if fx.fetches != 0 {
			t.Errorf("source was contacted %d times for a same-currency rate", fx.fetches)
		}
	})

	t.Run("cross rate via pivot division", func(t *testing.T) {
		fx := &fakeFx{rates: map[string]float64{"EUR": 0.92, "GBP": 0.79}}
		store := NewMemory()
		svc := newTestService(store, nil, fx)
		p, err := svc.FxClose("EUR", "GBP", day)
		if err != nil {
			t.Fatalf("FxClose: %v", err)
		}
		want := decimal.NewFromFloat(0.79).Div(decimal.NewFromFloat(0.92))
		if !p.Rate.Equal(want) {
			t.Errorf("rate = %v, want %v", p.Rate, want)
		}
		if fx.fetches != 2 {
			t.Errorf("source fetched %d legs, want 2", fx.fetches)
		}
		// both pivot legs are cached, a retry fetches nothing
		if _, err := svc.FxClose("EUR", "GBP", day); err != nil {
			t.Fatalf("second FxClose: %v", err)
		}
		if fx.fetches != 2 {
			t.Errorf("source fetched %d legs after retry, want 2", fx.fetches)
		}
	})

	t.Run("base leg needs no fetch", func(t *testing.T) {
		fx := &fakeFx{rates: map[string]float64{"EUR": 0.92}}
		svc := newTestService(NewMemory(), nil, fx)
		p, err := svc.FxClose("USD", "EUR", day)
		if err != nil {
			t.Fatalf("FxClose: %v", err)
		}
		if !p.Rate.Equal(decimal.NewFromFloat(0.92)) {
			t.Errorf("rate = %v, want 0.92", p.Rate)
		}
		if fx.fetches != 1 {
			t.Errorf("source fetched %d legs, want 1", fx.fetches)
		}
	})

	t.Run("no source no cache", func(t *testing.T) {
		svc := newTestService(NewMemory(), nil, nil)
		_, err := svc.FxClose("EUR", "GBP", day)
		if !errors.Is(err, ledgersync.ErrPriceMissing) {
			t.Errorf("err = %v, want ErrPriceMissing", err)
		}
	})
}

func TestServiceRefreshAssets(t *testing.T) {
	store := NewMemory()
	day := date.New(2025, time.March, 7)
	if err := store.PutPrices(closeOn("CACHED", day, 10)); err != nil {
		t.Fatal(err)
	}
	src := &fakeSource{closes: map[string]float64{"FETCHED": 20}}
	svc := newTestService(store, src, nil)

	res := svc.RefreshAssets([]string{"CACHED", "FETCHED", "GONE"}, day)
	if res.Skipped != 1 || res.Fetched != 1 || res.Failed != 1 {
		t.Errorf("result = %+v, want 1/1/1", res)
	}
	if len(res.Missing) != 1 || res.Missing[0] != "GONE" {
		t.Errorf("missing = %v, want [GONE]", res.Missing)
	}
}
