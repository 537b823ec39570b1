package ledgersync

import (
	"encoding/json"
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Money represents a monetary value in a given currency.
//
// Arithmetic is exact (decimal based); go-money is only consulted for
// currency metadata and display formatting.
type Money struct {
	value decimal.Decimal // as major unit value
	cur   string
}

func M[T float32 | float64 | int | int32 | int64 | decimal.Decimal](value T, currency string) Money {
	return Money{value: newDecimal(value), cur: currency}
}

func newDecimal[T float32 | float64 | int | int32 | int64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float32:
		return decimal.NewFromFloat32(v)
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

// ParseMoney parses an exact decimal amount with its currency code.
func ParseMoney(amount, currency string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return Money{value: d, cur: currency}, nil
}

// currency returns the full go-money currency for formatting.
func (m Money) currency() money.Currency {
	// the Money constructor guarantees a non-nil currency even for unknown codes.
	return *money.New(0, m.cur).Currency()
}

// String returns the human representation of the money value, formatted for
// its currency.
func (m Money) String() string {
	cur := m.currency()
	dec := m.value.Shift(int32(cur.Fraction))
	return cur.Formatter().Format(dec.IntPart())
}

func (m Money) Currency() string     { return m.cur }
func (m Money) Decimal() decimal.Decimal { return m.value }
func (m Money) IsZero() bool         { return m.value.IsZero() }
func (m Money) IsNegative() bool     { return m.value.IsNegative() }
func (m Money) Equal(n Money) bool   { return m.value.Equal(n.value) && m.cur == n.cur }
func (m Money) Neg() Money           { return Money{value: m.value.Neg(), cur: m.cur} }

// Add returns m+n. Currencies must agree; the "" currency is weak and takes
// the other operand's.
func (m Money) Add(n Money) Money { return Money{value: m.value.Add(n.value), cur: cur(m, n)} }

// Sub returns m-n with the same currency rules as Add.
func (m Money) Sub(n Money) Money { return Money{value: m.value.Sub(n.value), cur: cur(m, n)} }

// Mul returns m scaled by a dimensionless factor.
func (m Money) Mul(f decimal.Decimal) Money { return Money{value: m.value.Mul(f), cur: m.cur} }

func cur(a, b Money) string {
	if a.cur == "" {
		return b.cur
	}
	if b.cur == "" {
		return a.cur
	}
	if a.cur != b.cur {
		panic("currency mismatch " + a.cur + "!=" + b.cur)
	}
	return a.cur
}

type jsonMoney struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
}

// MarshalJSON persists the exact amount, all digits kept. Identity hashing
// depends on this being stable, so no rounding happens here.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonMoney{Amount: m.value, Currency: m.cur})
}

func (m *Money) UnmarshalJSON(data []byte) error {
	var j jsonMoney
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	m.value, m.cur = j.Amount, j.Currency
	return nil
}

var _ json.Marshaler = Money{}
var _ json.Unmarshaler = (*Money)(nil)
