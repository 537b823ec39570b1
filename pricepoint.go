package ledgersync

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lbatt/ledgersync/date"
)

// PriceKind distinguishes end-of-day closes from intraday quotes.
type PriceKind int

const (
	Close PriceKind = iota
	Quote
)

func (k PriceKind) String() string {
	switch k {
	case Close:
		return "close"
	case Quote:
		return "quote"
	default:
		return "unknown"
	}
}

// ParsePriceKind parses a string into a PriceKind.
func ParsePriceKind(s string) (PriceKind, error) {
	switch s {
	case "close":
		return Close, nil
	case "quote":
		return Quote, nil
	default:
		return 0, fmt.Errorf("unknown price kind: %q", s)
	}
}

func (k PriceKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PriceKind) UnmarshalText(text []byte) error {
	v, err := ParsePriceKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// PricePoint is one cached price observation. At most one point exists per
// (Asset, Day, Kind): storing another overwrites.
type PricePoint struct {
	Asset    string          `json:"asset"`
	Day      date.Date       `json:"on"`
	Time     time.Time       `json:"time"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Kind     PriceKind       `json:"kind"`
	Source   string          `json:"source,omitempty"`
}

// FxRatePoint is one cached exchange rate observation, keyed by
// (From, To, Day, Kind) with the same overwrite semantics as PricePoint.
type FxRatePoint struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Day    date.Date       `json:"on"`
	Time   time.Time       `json:"time"`
	Rate   decimal.Decimal `json:"rate"`
	Kind   PriceKind       `json:"kind"`
	Source string          `json:"source,omitempty"`
}
