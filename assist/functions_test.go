package assist

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
	"github.com/lbatt/ledgersync/store"
	"google.golang.org/genai"
)

func newTestStore(t *testing.T) store.Storage {
	t.Helper()
	st := store.NewMemory()
	last := time.Date(2025, time.March, 7, 9, 0, 0, 0, time.UTC)
	conn := &ledgersync.Connection{
		Config: ledgersync.ConnectionConfig{Name: "mybank", Kind: "chase"},
		State:  ledgersync.ConnectionState{ID: "conn-1", Status: ledgersync.Active, LastSync: &last},
	}
	if err := st.SaveConnection(conn); err != nil {
		t.Fatal(err)
	}
	if err := st.SaveAccount(&ledgersync.Account{ID: "acc-1", Name: "Checking", ConnectionID: "conn-1"}); err != nil {
		t.Fatal(err)
	}
	snap := ledgersync.BalanceSnapshot{
		Time: last,
		Balances: []ledgersync.AssetBalance{
			{Asset: "USD", Amount: ledgersync.M(1520.42, "USD")},
			{Asset: "VTI", Amount: ledgersync.M(12.5, "USD")},
		},
	}
	if err := st.AppendBalanceSnapshot("acc-1", snap); err != nil {
		t.Fatal(err)
	}
	txs := ledgersync.Identify([]ledgersync.Transaction{
		{Date: date.New(2025, time.March, 3), Amount: ledgersync.M(-25.40, "USD"), Description: "coffee shop", SourceID: "t-1"},
	})
	if err := st.AppendTransactions("acc-1", txs); err != nil {
		t.Fatal(err)
	}
	return st
}

func callOutput(t *testing.T, f Function, args map[string]any) string {
	t.Helper()
	resp := f.Call(context.Background(), "call-1", args)
	if err, ok := resp.Response["error"]; ok {
		t.Fatalf("%s returned error: %v", f.Declaration().Name, err)
	}
	out, ok := resp.Response["output"].(string)
	if !ok {
		t.Fatalf("%s returned no output", f.Declaration().Name)
	}
	return out
}

func functionByName(t *testing.T, fns []Function, name string) Function {
	t.Helper()
	for _, f := range fns {
		if f.Declaration().Name == name {
			return f
		}
	}
	t.Fatalf("no function %q", name)
	return nil
}

func TestConnectionsFunc(t *testing.T) {
	fns := NewFunctions(newTestStore(t))
	out := callOutput(t, functionByName(t, fns, "Connections"), nil)
	if !strings.Contains(out, "mybank") || !strings.Contains(out, "chase") {
		t.Errorf("connections table misses the connection:\n%s", out)
	}
	if !strings.Contains(out, "2025-03-07") {
		t.Errorf("connections table misses the last sync:\n%s", out)
	}
}

func TestBalancesFunc(t *testing.T) {
	fns := NewFunctions(newTestStore(t))
	f := functionByName(t, fns, "Balances")

	out := callOutput(t, f, map[string]any{"account": "acc-1"})
	if !strings.Contains(out, "VTI") {
		t.Errorf("balances table misses the position:\n%s", out)
	}

	out = callOutput(t, f, map[string]any{"account": "nobody"})
	if !strings.Contains(out, "no balance snapshot") {
		t.Errorf("unknown account should read as empty, got:\n%s", out)
	}

	resp := f.Call(context.Background(), "call-2", nil)
	if _, ok := resp.Response["error"]; !ok {
		t.Error("missing account argument should be an error")
	}
}

func TestTransactionsFunc(t *testing.T) {
	fns := NewFunctions(newTestStore(t))
	out := callOutput(t, functionByName(t, fns, "Transactions"), map[string]any{"account": "acc-1"})
	if !strings.Contains(out, "coffee shop") || !strings.Contains(out, "2025-03-03") {
		t.Errorf("transactions table misses the record:\n%s", out)
	}
}

func TestLibraryDispatch(t *testing.T) {
	lib := NewLibrary(NewFunctions(newTestStore(t)))

	resp := lib(context.Background(), &genai.FunctionCall{ID: "c-1", Name: "Connections"})
	if _, ok := resp.Response["output"]; !ok {
		t.Errorf("dispatch to a known function failed: %v", resp.Response)
	}

	resp = lib(context.Background(), &genai.FunctionCall{ID: "c-2", Name: "Nope"})
	if _, ok := resp.Response["error"]; !ok {
		t.Error("dispatch to an unknown function should report an error")
	}
}
