package marketdata

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
)

func TestJSONQuoteSource(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		path    string
		want    float64
		wantErr bool
	}{
		{"plain float", `{"last": 281.3}`, "$.last", 281.3, false},
		{"nested series", `{"series": {"intraday": {"data": [[1, 1.04], [2, 1.05]]}}}`, "$.series.intraday.data[-1:][1]", 1.05, false},
		{"string with comma", `{"last": "1 281,30"}`, "$.last", 1281.30, false},
		{"missing attribute", `{"bid": 281.3}`, "$.last", 0, true},
		{"not a number", `{"last": "./."}`, "$.last", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			src := NewJSONQuoteSource("testfeed", "EUR", func(asset string) string { return srv.URL + "?isin=" + asset }, tc.path)
			src.Clock = ledgersync.FixedClock(time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC))

			p, err := src.PriceLatest("IE00B4L5Y983")
			if tc.wantErr {
				if err == nil {
					t.Fatalf("got %v, want an error", p.Price)
				}
				return
			}
			if err != nil {
				t.Fatalf("PriceLatest: %v", err)
			}
			if !p.Price.Equal(decimal.NewFromFloat(tc.want)) {
				t.Errorf("price = %v, want %v", p.Price, tc.want)
			}
			if p.Kind != ledgersync.Quote || p.Currency != "EUR" {
				t.Errorf("point = %+v", p)
			}
			if p.Day != date.New(2025, time.March, 7) {
				t.Errorf("day = %s, want the clock's day", p.Day)
			}
		})
	}
}

func TestJSONQuoteSourceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewJSONQuoteSource("testfeed", "EUR", func(asset string) string { return srv.URL }, "$.last")
	_, err := src.PriceLatest("X")
	var netErr *ledgersync.NetworkError
	if !errors.As(err, &netErr) {
		t.Errorf("err = %v, want a NetworkError", err)
	}
}

func TestJSONQuoteSourceClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"last": 281.3}`))
	}))
	defer srv.Close()

	now := time.Date(2025, time.March, 7, 18, 0, 0, 0, time.UTC)
	src := NewJSONQuoteSource("testfeed", "EUR", func(asset string) string { return srv.URL }, "$.last")
	src.Clock = ledgersync.FixedClock(now)

	p, err := src.PriceClose("X", date.Of(now))
	if err != nil {
		t.Fatalf("PriceClose today: %v", err)
	}
	if p.Kind != ledgersync.Close {
		t.Errorf("kind = %v, want Close", p.Kind)
	}

	_, err = src.PriceClose("X", date.Of(now).Add(-3))
	if !errors.Is(err, ledgersync.ErrPriceMissing) {
		t.Errorf("past close err = %v, want ErrPriceMissing", err)
	}
}

func TestJSONFxSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate": 0.92}`))
	}))
	defer srv.Close()

	src := NewJSONFxSource("testfx", "USD", func(cur string) string { return srv.URL + "?to=" + cur }, "$.rate")
	day := date.New(2025, time.March, 7)
	p, err := src.Rate("EUR", day)
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if p.From != "USD" || p.To != "EUR" || !p.Rate.Equal(decimal.NewFromFloat(0.92)) {
		t.Errorf("rate = %+v", p)
	}
}
