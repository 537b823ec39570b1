package ledgersync

import (
	"encoding/json"
	"testing"
)

func TestMoneyArithmetic(t *testing.T) {
	a := M(10.50, "USD")
	b := M(2.25, "USD")

	if got := a.Add(b); !got.Equal(M(12.75, "USD")) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Sub(b); !got.Equal(M(8.25, "USD")) {
		t.Errorf("Sub = %v", got)
	}
	if got := a.Neg(); !got.IsNegative() {
		t.Errorf("Neg = %v, want negative", got)
	}
}

func TestMoneyWeakCurrency(t *testing.T) {
	// The "" currency is weak and adopts the other operand's.
	got := Money{}.Add(M(5, "EUR"))
	if got.Currency() != "EUR" {
		t.Errorf("currency = %q, want EUR", got.Currency())
	}
}

func TestMoneyCurrencyMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("adding USD to EUR must panic")
		}
	}()
	M(1, "USD").Add(M(1, "EUR"))
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("-4.50", "USD")
	if err != nil {
		t.Fatalf("ParseMoney: %v", err)
	}
	if !m.Equal(M(-4.5, "USD")) {
		t.Errorf("ParseMoney = %v", m)
	}
	if _, err := ParseMoney("four", "USD"); err == nil {
		t.Errorf("ParseMoney must reject non-numeric input")
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	m := M(1234.56, "EUR")
	b, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Money
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Equal(m) {
		t.Errorf("round trip = %v, want %v", back, m)
	}
}
