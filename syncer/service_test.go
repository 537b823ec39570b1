package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
	"github.com/lbatt/ledgersync/marketdata"
	"github.com/lbatt/ledgersync/store"
)

var testNow = time.Date(2025, time.March, 7, 12, 0, 0, 0, time.UTC)

// fakeAuth scripts an InteractiveAuth.
type fakeAuth struct {
	status      ledgersync.AuthStatus
	loginErr    error
	loginCalls  int
	validAfter  bool // CheckAuth turns Valid once Login succeeded
	loginOkOnce bool
}

func (f *fakeAuth) CheckAuth() ledgersync.AuthStatus {
	if f.validAfter && f.loginOkOnce {
		return ledgersync.AuthStatus{State: ledgersync.AuthValid}
	}
	return f.status
}

func (f *fakeAuth) Login(ctx context.Context) error {
	f.loginCalls++
	if f.loginErr == nil {
		f.loginOkOnce = true
	}
	return f.loginErr
}

// fakeSynchronizer serves a scripted result.
type fakeSynchronizer struct {
	name         string
	result       *SyncResult
	err          error
	auth         *fakeAuth
	requiresAuth bool
	syncCalls    int
}

func (f *fakeSynchronizer) Name() string { return f.name }

func (f *fakeSynchronizer) Sync(ctx context.Context, conn *ledgersync.Connection) (*SyncResult, error) {
	f.syncCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeSynchronizer) Interactive() InteractiveAuth {
	if f.auth == nil {
		return nil
	}
	return f.auth
}

func (f *fakeSynchronizer) RequiresAuth() bool { return f.requiresAuth }

// priceSource serves fixed closes, for the refresh leg of the pipeline.
type priceSource struct{ closes map[string]float64 }

func (s *priceSource) Name() string { return "test" }

func (s *priceSource) PriceClose(asset string, day date.Date) (ledgersync.PricePoint, error) {
	v, ok := s.closes[asset]
	if !ok {
		return ledgersync.PricePoint{}, errors.New("unknown asset " + asset)
	}
	return ledgersync.PricePoint{
		Asset: asset, Day: day, Time: testNow, Price: decimal.NewFromFloat(v),
		Currency: "USD", Kind: ledgersync.Close, Source: "test",
	}, nil
}

func (s *priceSource) PriceLatest(asset string) (ledgersync.PricePoint, error) {
	return s.PriceClose(asset, date.Of(testNow))
}

type harness struct {
	store    *store.Memory
	market   *marketdata.Memory
	registry *Registry
	orch     *Orchestrator
}

func newHarness(t *testing.T, prompter AuthPrompter, closes map[string]float64) *harness {
	t.Helper()
	st := store.NewMemory()
	market := marketdata.NewMemory()
	cfg := ledgersync.DefaultConfig().Refresh
	clock := ledgersync.FixedClock(testNow)
	prices := marketdata.NewService(market, &priceSource{closes: closes}, nil, cfg, clock)
	registry := NewRegistry()
	orch := NewOrchestrator(st, prices, registry, nil, prompter, cfg, clock)
	return &harness{store: st, market: market, registry: registry, orch: orch}
}

// addConnection registers a scripted synchronizer under its own kind and
// saves a connection of that kind.
func (h *harness) addConnection(t *testing.T, id string, syn *fakeSynchronizer) *ledgersync.Connection {
	t.Helper()
	conn := &ledgersync.Connection{
		Config: ledgersync.ConnectionConfig{Name: id, Kind: "kind-" + id},
		State:  ledgersync.ConnectionState{ID: id, Status: ledgersync.Active, CreatedAt: testNow},
	}
	h.registry.Register(conn.Config.Kind, func(*ledgersync.Connection, ledgersync.CredentialStore) (Synchronizer, error) {
		return syn, nil
	})
	require.NoError(t, h.store.SaveConnection(conn))
	return conn
}

func oneAccountResult(accountID, asset string, amount float64) *SyncResult {
	return &SyncResult{
		Accounts: []ledgersync.Account{{ID: accountID, Name: accountID, Active: true}},
		Balances: map[string]ledgersync.BalanceSnapshot{
			accountID: {Time: testNow, Balances: []ledgersync.AssetBalance{
				{Asset: asset, Amount: ledgersync.M(amount, "USD")},
				{Asset: "USD", Amount: ledgersync.M(100.0, "USD")},
			}},
		},
		Transactions: map[string][]ledgersync.Transaction{
			accountID: {
				{Date: date.Of(testNow), Amount: ledgersync.M(-10.0, "USD"), Description: "buy", Asset: asset, SourceID: "s-1"},
			},
		},
	}
}

func TestSyncConnectionPipeline(t *testing.T) {
	h := newHarness(t, nil, map[string]float64{"VTI": 280.5})
	syn := &fakeSynchronizer{name: "fake", result: oneAccountResult("acc-1", "VTI", 12)}
	h.addConnection(t, "c1", syn)

	out := h.orch.SyncConnection(context.Background(), "c1")
	require.Equal(t, Synced, out.Status, "outcome: %v", out)
	require.NotNil(t, out.Report)
	assert.Equal(t, 1, out.Report.Accounts)
	assert.Equal(t, 1, out.Report.Balances)
	assert.Equal(t, 1, out.Report.Transactions)
	assert.Equal(t, 1, out.Report.Prices.Fetched, "the touched asset got a close")

	acc, err := h.store.GetAccount("acc-1")
	require.NoError(t, err)
	assert.Equal(t, "c1", acc.ConnectionID)

	txs, err := h.store.Transactions("acc-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "src:s-1", txs[0].ID, "the pipeline derives identities")

	conn, err := h.store.GetConnection("c1")
	require.NoError(t, err)
	require.NotNil(t, conn.State.LastSync)
	assert.Equal(t, testNow, *conn.State.LastSync)
	assert.Equal(t, ledgersync.Active, conn.State.Status)
	assert.Equal(t, []string{"acc-1"}, conn.State.AccountIDs)

	p, ok := h.market.Price("VTI", ledgersync.Close, date.Of(testNow))
	require.True(t, ok)
	assert.True(t, p.Price.Equal(decimal.NewFromFloat(280.5)))
}

func TestSyncPreservesUserOwnedAccountState(t *testing.T) {
	h := newHarness(t, nil, map[string]float64{"VTI": 280.12})
	res := oneAccountResult("acc-1", "VTI", 12.5)
	res.Accounts[0].Name = "Renamed By Vendor"
	res.Accounts[0].SynchronizerData = map[string]string{"mask": "4321"}
	syn := &fakeSynchronizer{name: "s", result: res}
	h.addConnection(t, "c1", syn)

	created := testNow.Add(-30 * 24 * time.Hour)
	require.NoError(t, h.store.SaveAccount(&ledgersync.Account{
		ID:             "acc-1",
		Name:           "Brokerage",
		ConnectionID:   "c1",
		Tags:           []string{"retirement"},
		CreatedAt:      created,
		Active:         false,
		PriceStaleness: 3 * time.Hour,
	}))

	out := h.orch.SyncConnection(context.Background(), "c1")
	require.Equal(t, Synced, out.Status)

	acc, err := h.store.GetAccount("acc-1")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Hour, acc.PriceStaleness, "account staleness override must survive a sync")
	assert.Equal(t, []string{"retirement"}, acc.Tags)
	assert.False(t, acc.Active)
	assert.Equal(t, created, acc.CreatedAt)
	// Vendor-sourced fields do update.
	assert.Equal(t, "Renamed By Vendor", acc.Name)
	assert.Equal(t, map[string]string{"mask": "4321"}, acc.SynchronizerData)
}

func TestSyncSkipsManualConnections(t *testing.T) {
	h := newHarness(t, nil, nil)
	conn := &ledgersync.Connection{
		Config: ledgersync.ConnectionConfig{Name: "cash", Kind: ManualKind},
		State:  ledgersync.ConnectionState{ID: "m1", Status: ledgersync.Active},
	}
	require.NoError(t, h.store.SaveConnection(conn))

	out := h.orch.SyncConnection(context.Background(), "m1")
	assert.Equal(t, SkippedManual, out.Status)
}

func TestSyncUnknownKindFails(t *testing.T) {
	h := newHarness(t, nil, nil)
	conn := &ledgersync.Connection{
		Config: ledgersync.ConnectionConfig{Name: "odd", Kind: "nope"},
		State:  ledgersync.ConnectionState{ID: "c1"},
	}
	require.NoError(t, h.store.SaveConnection(conn))

	out := h.orch.SyncConnection(context.Background(), "c1")
	assert.Equal(t, Failed, out.Status)
	assert.Error(t, out.Err)
}

func TestSyncConnectionIfStale(t *testing.T) {
	h := newHarness(t, nil, nil)
	syn := &fakeSynchronizer{name: "fake", result: &SyncResult{}}
	conn := h.addConnection(t, "c1", syn)

	t.Run("never synced is stale", func(t *testing.T) {
		out := h.orch.SyncConnectionIfStale(context.Background(), "c1", 0)
		assert.Equal(t, Synced, out.Status)
		assert.Equal(t, 1, syn.syncCalls)
	})

	t.Run("fresh is skipped without contact", func(t *testing.T) {
		out := h.orch.SyncConnectionIfStale(context.Background(), "c1", 0)
		assert.Equal(t, SkippedNotStale, out.Status)
		assert.Equal(t, 1, syn.syncCalls, "synchronizer was contacted for a fresh connection")
	})

	t.Run("per-call override makes it stale", func(t *testing.T) {
		last := testNow.Add(-time.Minute)
		conn.State.LastSync = &last
		require.NoError(t, h.store.SaveConnection(conn))
		out := h.orch.SyncConnectionIfStale(context.Background(), "c1", 30*time.Second)
		assert.Equal(t, Synced, out.Status)
		assert.Equal(t, 2, syn.syncCalls)
	})
}

func TestSyncAllBatchIsolation(t *testing.T) {
	h := newHarness(t, nil, nil)
	okA := &fakeSynchronizer{name: "a", result: &SyncResult{}}
	bad := &fakeSynchronizer{name: "b", err: errors.New("vendor exploded")}
	okC := &fakeSynchronizer{name: "c", result: &SyncResult{}}
	h.addConnection(t, "a", okA)
	h.addConnection(t, "b", bad)
	h.addConnection(t, "c", okC)

	outs := h.orch.SyncAll(context.Background())
	require.Len(t, outs, 3)
	assert.Equal(t, Synced, outs[0].Status)
	assert.Equal(t, Failed, outs[1].Status)
	assert.Equal(t, Synced, outs[2].Status, "a failing connection must not stop the batch")

	conn, err := h.store.GetConnection("b")
	require.NoError(t, err)
	assert.Equal(t, ledgersync.ConnError, conn.State.Status)
}

func TestSyncAllLeavesDisconnected(t *testing.T) {
	h := newHarness(t, nil, nil)
	syn := &fakeSynchronizer{name: "gone", result: &SyncResult{}}
	conn := h.addConnection(t, "gone", syn)
	conn.State.Status = ledgersync.Disconnected
	require.NoError(t, h.store.SaveConnection(conn))

	outs := h.orch.SyncAll(context.Background())
	assert.Empty(t, outs)
	assert.Zero(t, syn.syncCalls)

	// An explicit sync by name still reaches it.
	out := h.orch.SyncConnection(context.Background(), "gone")
	assert.Equal(t, Synced, out.Status)
	assert.Equal(t, 1, syn.syncCalls)
}

func TestSyncAuthDecision(t *testing.T) {
	missing := ledgersync.AuthStatus{State: ledgersync.AuthMissing}

	t.Run("valid auth proceeds", func(t *testing.T) {
		h := newHarness(t, DenyLogins(), nil)
		auth := &fakeAuth{status: ledgersync.AuthStatus{State: ledgersync.AuthValid}}
		syn := &fakeSynchronizer{name: "f", result: &SyncResult{}, auth: auth, requiresAuth: true}
		h.addConnection(t, "c1", syn)

		out := h.orch.SyncConnection(context.Background(), "c1")
		assert.Equal(t, Synced, out.Status)
		assert.Equal(t, 0, auth.loginCalls)
	})

	t.Run("invalid auth tolerated when not required", func(t *testing.T) {
		h := newHarness(t, DenyLogins(), nil)
		auth := &fakeAuth{status: missing}
		syn := &fakeSynchronizer{name: "f", result: &SyncResult{}, auth: auth, requiresAuth: false}
		h.addConnection(t, "c1", syn)

		out := h.orch.SyncConnection(context.Background(), "c1")
		assert.Equal(t, Synced, out.Status)
		assert.Equal(t, 0, auth.loginCalls)
	})

	t.Run("denied login terminates with AuthRequired", func(t *testing.T) {
		h := newHarness(t, DenyLogins(), nil)
		auth := &fakeAuth{status: missing}
		syn := &fakeSynchronizer{name: "f", result: &SyncResult{}, auth: auth, requiresAuth: true}
		h.addConnection(t, "c1", syn)

		out := h.orch.SyncConnection(context.Background(), "c1")
		assert.Equal(t, AuthRequired, out.Status)
		var authErr *ledgersync.AuthRequiredError
		assert.ErrorAs(t, out.Err, &authErr)
		assert.Equal(t, 0, auth.loginCalls, "a denied prompt must not login")
		assert.Equal(t, 0, syn.syncCalls)

		conn, err := h.store.GetConnection("c1")
		require.NoError(t, err)
		assert.Equal(t, ledgersync.PendingReauth, conn.State.Status)
	})

	t.Run("approved login proceeds", func(t *testing.T) {
		h := newHarness(t, AllowLogins(), nil)
		auth := &fakeAuth{status: missing, validAfter: true}
		syn := &fakeSynchronizer{name: "f", result: &SyncResult{}, auth: auth, requiresAuth: true}
		h.addConnection(t, "c1", syn)

		out := h.orch.SyncConnection(context.Background(), "c1")
		assert.Equal(t, Synced, out.Status)
		assert.Equal(t, 1, auth.loginCalls)
		assert.Equal(t, 1, syn.syncCalls)
	})

	t.Run("failed login terminates with AuthRequired", func(t *testing.T) {
		h := newHarness(t, AllowLogins(), nil)
		auth := &fakeAuth{status: missing, loginErr: errors.New("mfa timeout")}
		syn := &fakeSynchronizer{name: "f", result: &SyncResult{}, auth: auth, requiresAuth: true}
		h.addConnection(t, "c1", syn)

		out := h.orch.SyncConnection(context.Background(), "c1")
		assert.Equal(t, AuthRequired, out.Status)
		require.Error(t, out.Err)
		assert.Contains(t, out.Err.Error(), "mfa timeout")
		assert.Equal(t, 0, syn.syncCalls)
	})
}

func TestSyncPricesAccount(t *testing.T) {
	h := newHarness(t, nil, map[string]float64{"VTI": 280.5})
	require.NoError(t, h.store.SaveAccount(&ledgersync.Account{ID: "acc-1", Active: true}))
	require.NoError(t, h.store.AppendBalanceSnapshot("acc-1", ledgersync.BalanceSnapshot{
		Time: testNow,
		Balances: []ledgersync.AssetBalance{
			{Asset: "VTI", Amount: ledgersync.M(12.0, "USD")},
			{Asset: "USD", Amount: ledgersync.M(100.0, "USD")},
		},
	}))

	res, err := h.orch.SyncPricesAccount("acc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched, "cash is never priced, the fund is")
	assert.Zero(t, res.Failed)

	// a second run within the staleness window skips
	res, err = h.orch.SyncPricesAccount("acc-1")
	require.NoError(t, err)
	assert.Zero(t, res.Fetched)
	assert.Equal(t, 1, res.Skipped)
}

func TestSyncPricesAllSkipsInactive(t *testing.T) {
	h := newHarness(t, nil, map[string]float64{"VTI": 280.5, "BND": 70.1})
	for _, a := range []*ledgersync.Account{
		{ID: "live", Active: true},
		{ID: "closed", Active: false},
	} {
		require.NoError(t, h.store.SaveAccount(a))
	}
	snap := func(asset string) ledgersync.BalanceSnapshot {
		return ledgersync.BalanceSnapshot{Time: testNow, Balances: []ledgersync.AssetBalance{
			{Asset: asset, Amount: ledgersync.M(1.0, "USD")},
		}}
	}
	require.NoError(t, h.store.AppendBalanceSnapshot("live", snap("VTI")))
	require.NoError(t, h.store.AppendBalanceSnapshot("closed", snap("BND")))

	res, err := h.orch.SyncPricesAll()
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	if _, ok := h.market.Price("BND", ledgersync.Close, date.Of(testNow)); ok {
		t.Error("inactive account's asset was refreshed")
	}
}

func TestLogin(t *testing.T) {
	h := newHarness(t, nil, nil)
	auth := &fakeAuth{status: ledgersync.AuthStatus{State: ledgersync.AuthExpired, Reason: "session timed out"}}
	syn := &fakeSynchronizer{name: "f", auth: auth, requiresAuth: true}
	conn := h.addConnection(t, "c1", syn)
	conn.State.Status = ledgersync.PendingReauth
	require.NoError(t, h.store.SaveConnection(conn))

	require.NoError(t, h.orch.Login(context.Background(), "c1"))
	assert.Equal(t, 1, auth.loginCalls)

	got, err := h.store.GetConnection("c1")
	require.NoError(t, err)
	assert.Equal(t, ledgersync.Active, got.State.Status)
}
