package syncer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
	"github.com/lbatt/ledgersync/marketdata"
	"github.com/lbatt/ledgersync/store"
)

// Committer is the optional post-sync hook, e.g. a git auto-commit of the
// data folder. A commit failure is logged, never fails the sync: the data
// is already persisted.
type Committer interface {
	Commit(message string) error
}

// Orchestrator drives the sync pipeline over a Storage, a price service
// and a synchronizer registry.
type Orchestrator struct {
	store     store.Storage
	prices    *marketdata.Service
	registry  *Registry
	creds     ledgersync.CredentialStore
	prompter  AuthPrompter
	cfg       ledgersync.RefreshConfig
	clock     ledgersync.Clock
	committer Committer
}

// NewOrchestrator creates an orchestrator. A nil prompter denies all
// logins (the unattended policy), a nil clock means the system clock.
func NewOrchestrator(st store.Storage, prices *marketdata.Service, registry *Registry, creds ledgersync.CredentialStore, prompter AuthPrompter, cfg ledgersync.RefreshConfig, clock ledgersync.Clock) *Orchestrator {
	if prompter == nil {
		prompter = DenyLogins()
	}
	if clock == nil {
		clock = ledgersync.SystemClock()
	}
	return &Orchestrator{
		store:    st,
		prices:   prices,
		registry: registry,
		creds:    creds,
		prompter: prompter,
		cfg:      cfg,
		clock:    clock,
	}
}

// SetCommitter installs the post-sync hook.
func (o *Orchestrator) SetCommitter(c Committer) { o.committer = c }

// Connection resolves a connection by ID or name.
func (o *Orchestrator) Connection(idOrName string) (*ledgersync.Connection, error) {
	return o.store.GetConnection(idOrName)
}

// Account resolves an account by ID.
func (o *Orchestrator) Account(id string) (*ledgersync.Account, error) {
	return o.store.GetAccount(id)
}

// SyncConnection runs the full pipeline for one connection, regardless of
// staleness.
func (o *Orchestrator) SyncConnection(ctx context.Context, idOrName string) Outcome {
	conn, err := o.store.GetConnection(idOrName)
	if err != nil {
		return Outcome{Connection: idOrName, Name: idOrName, Status: Failed, Err: err}
	}
	return o.sync(ctx, conn)
}

// SyncConnectionIfStale consults the staleness resolver first and returns
// SkippedNotStale without contacting the synchronizer when the
// connection's balances are fresh. A zero override means no override.
func (o *Orchestrator) SyncConnectionIfStale(ctx context.Context, idOrName string, override time.Duration) Outcome {
	conn, err := o.store.GetConnection(idOrName)
	if err != nil {
		return Outcome{Connection: idOrName, Name: idOrName, Status: Failed, Err: err}
	}
	threshold := ResolveBalanceStaleness(override, conn, o.cfg)
	if st := CheckBalanceStalenessAt(conn, threshold, o.clock.Now()); !st.Stale {
		return Outcome{Connection: conn.ID(), Name: conn.Name(), Status: SkippedNotStale}
	}
	return o.sync(ctx, conn)
}

// SyncAll syncs every connection sequentially, one outcome each.
// Disconnected connections are left out of the batch and get no outcome;
// only an explicit SyncConnection reaches them.
func (o *Orchestrator) SyncAll(ctx context.Context) []Outcome {
	return o.syncAll(ctx, func(conn *ledgersync.Connection) Outcome {
		return o.sync(ctx, conn)
	})
}

// SyncAllIfStale syncs every connection whose balances are stale. Like
// SyncAll, it leaves disconnected connections out of the batch.
func (o *Orchestrator) SyncAllIfStale(ctx context.Context) []Outcome {
	return o.syncAll(ctx, func(conn *ledgersync.Connection) Outcome {
		threshold := ResolveBalanceStaleness(0, conn, o.cfg)
		if st := CheckBalanceStalenessAt(conn, threshold, o.clock.Now()); !st.Stale {
			return Outcome{Connection: conn.ID(), Name: conn.Name(), Status: SkippedNotStale}
		}
		return o.sync(ctx, conn)
	})
}

func (o *Orchestrator) syncAll(ctx context.Context, one func(*ledgersync.Connection) Outcome) []Outcome {
	conns, err := o.store.ListConnections()
	if err != nil {
		return []Outcome{{Name: "all", Status: Failed, Err: err}}
	}
	out := make([]Outcome, 0, len(conns))
	for _, conn := range conns {
		// Disconnected connections are kept for history, batch runs leave
		// them alone. An explicit SyncConnection still reaches them.
		if conn.State.Status == ledgersync.Disconnected {
			continue
		}
		if ctx.Err() != nil {
			out = append(out, Outcome{Connection: conn.ID(), Name: conn.Name(), Status: Failed, Err: ctx.Err()})
			continue
		}
		out = append(out, one(conn))
	}
	return out
}

// sync is the pipeline body: auth, fetch, identity, persist, price refresh,
// state update, optional commit.
func (o *Orchestrator) sync(ctx context.Context, conn *ledgersync.Connection) Outcome {
	if conn.Config.Kind == ManualKind {
		return Outcome{Connection: conn.ID(), Name: conn.Name(), Status: SkippedManual}
	}
	started := o.clock.Now()

	syn, err := o.registry.New(conn, o.creds)
	if err != nil {
		return o.failed(conn, err)
	}
	if err := o.ensureAuth(ctx, conn, syn); err != nil {
		conn.State.Status = ledgersync.PendingReauth
		if serr := o.store.SaveConnection(conn); serr != nil {
			log.Printf("cannot record reauth state of %q: %v", conn.Name(), serr)
		}
		return Outcome{Connection: conn.ID(), Name: conn.Name(), Status: AuthRequired, Err: err}
	}

	res, err := syn.Sync(ctx, conn)
	if err != nil {
		return o.failed(conn, err)
	}

	report := Report{Accounts: len(res.Accounts)}
	for _, acc := range res.Accounts {
		acc.ConnectionID = conn.ID()
		// The vendor only speaks for its own fields. User-owned state on a
		// known account (staleness override, tags, an explicit Active,
		// the creation instant) survives the sync.
		if prev, err := o.store.GetAccount(acc.ID); err == nil {
			acc.PriceStaleness = prev.PriceStaleness
			acc.Tags = prev.Tags
			acc.Active = prev.Active
			acc.CreatedAt = prev.CreatedAt
		}
		if acc.CreatedAt.IsZero() {
			acc.CreatedAt = o.clock.Now()
		}
		if err := o.store.SaveAccount(&acc); err != nil {
			return o.failed(conn, err)
		}
	}
	for id, snap := range res.Balances {
		if err := o.store.AppendBalanceSnapshot(id, snap); err != nil {
			return o.failed(conn, err)
		}
		report.Balances++
	}
	for id, txs := range res.Transactions {
		txs = ledgersync.Identify(txs)
		if err := o.store.AppendTransactions(id, txs); err != nil {
			return o.failed(conn, err)
		}
		report.Transactions += len(txs)
	}

	report.Prices = o.refreshAssets(touchedAssets(res), ResolvePriceStaleness(0, nil, conn, o.cfg))

	now := o.clock.Now()
	conn.State.LastSync = &now
	conn.State.Status = ledgersync.Active
	conn.State.AccountIDs = accountIndex(conn, res)
	if err := o.store.SaveConnection(conn); err != nil {
		return o.failed(conn, err)
	}

	if o.committer != nil {
		if err := o.committer.Commit(fmt.Sprintf("sync %s", conn.Name())); err != nil {
			log.Printf("auto-commit after syncing %q failed: %v", conn.Name(), err)
		}
	}

	report.Elapsed = o.clock.Now().Sub(started)
	return Outcome{Connection: conn.ID(), Name: conn.Name(), Status: Synced, Report: &report}
}

// failed records the error state and returns a Failed outcome. The save is
// best effort: the outcome already carries the original error.
func (o *Orchestrator) failed(conn *ledgersync.Connection, err error) Outcome {
	conn.State.Status = ledgersync.ConnError
	if serr := o.store.SaveConnection(conn); serr != nil {
		log.Printf("cannot record error state of %q: %v", conn.Name(), serr)
	}
	return Outcome{Connection: conn.ID(), Name: conn.Name(), Status: Failed, Err: err}
}

// ensureAuth implements the auth decision: valid auth proceeds; invalid
// auth proceeds only when the synchronizer tolerates it; otherwise the
// injected prompter decides whether to attempt a login.
func (o *Orchestrator) ensureAuth(ctx context.Context, conn *ledgersync.Connection, syn Synchronizer) error {
	ia := syn.Interactive()
	if ia == nil {
		return nil
	}
	status := ia.CheckAuth()
	if status.Valid() {
		return nil
	}
	if !syn.RequiresAuth() {
		return nil
	}
	if !o.prompter.ApproveLogin(conn, status) {
		return &ledgersync.AuthRequiredError{Connection: conn.Name(), Reason: status.String()}
	}
	if err := ia.Login(ctx); err != nil {
		return &ledgersync.AuthRequiredError{Connection: conn.Name(), Reason: status.String(), Err: err}
	}
	return nil
}

// Login runs a connection's interactive login outside of a sync, for an
// explicit user request.
func (o *Orchestrator) Login(ctx context.Context, idOrName string) error {
	conn, err := o.store.GetConnection(idOrName)
	if err != nil {
		return err
	}
	syn, err := o.registry.New(conn, o.creds)
	if err != nil {
		return err
	}
	ia := syn.Interactive()
	if ia == nil {
		return fmt.Errorf("connection %q has no interactive login", conn.Name())
	}
	if err := ia.Login(ctx); err != nil {
		return err
	}
	conn.State.Status = ledgersync.Active
	return o.store.SaveConnection(conn)
}

// SyncPricesAll refreshes valuation prices for every active account,
// without contacting any synchronizer. Cheap enough for a periodic daemon
// cycle.
func (o *Orchestrator) SyncPricesAll() (marketdata.PriceRefreshResult, error) {
	accounts, err := o.store.ListAccounts()
	if err != nil {
		return marketdata.PriceRefreshResult{}, err
	}
	var total marketdata.PriceRefreshResult
	for _, acc := range accounts {
		if !acc.Active {
			continue
		}
		res, err := o.SyncPricesAccount(acc.ID)
		if err != nil {
			log.Printf("price refresh for account %q: %v", acc.ID, err)
			continue
		}
		total.Fetched += res.Fetched
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		total.Missing = append(total.Missing, res.Missing...)
	}
	return total, nil
}

// SyncPricesConnection refreshes prices for every account owned by the
// connection. Ownership is resolved through Account.ConnectionID.
func (o *Orchestrator) SyncPricesConnection(idOrName string) (marketdata.PriceRefreshResult, error) {
	conn, err := o.store.GetConnection(idOrName)
	if err != nil {
		return marketdata.PriceRefreshResult{}, err
	}
	accounts, err := o.store.ListAccounts()
	if err != nil {
		return marketdata.PriceRefreshResult{}, err
	}
	var total marketdata.PriceRefreshResult
	for _, acc := range accounts {
		if acc.ConnectionID != conn.ID() {
			continue
		}
		res, err := o.SyncPricesAccount(acc.ID)
		if err != nil {
			return total, err
		}
		total.Fetched += res.Fetched
		total.Skipped += res.Skipped
		total.Failed += res.Failed
		total.Missing = append(total.Missing, res.Missing...)
	}
	return total, nil
}

// SyncPricesAccount refreshes prices for the assets held by one account,
// honoring the account's price staleness override.
func (o *Orchestrator) SyncPricesAccount(id string) (marketdata.PriceRefreshResult, error) {
	acc, err := o.store.GetAccount(id)
	if err != nil {
		return marketdata.PriceRefreshResult{}, err
	}
	var conn *ledgersync.Connection
	if acc.ConnectionID != "" {
		if c, err := o.store.GetConnection(acc.ConnectionID); err == nil {
			conn = c
		}
	}
	latest, err := o.store.LatestBalances(id)
	if err != nil {
		return marketdata.PriceRefreshResult{}, err
	}
	if latest == nil {
		return marketdata.PriceRefreshResult{}, nil
	}
	var assets []string
	for _, b := range latest.Balances {
		if b.Asset == "" || b.Asset == b.Amount.Currency() {
			continue // cash needs no price
		}
		assets = append(assets, b.Asset)
	}
	sort.Strings(assets)
	return o.refreshAssets(assets, ResolvePriceStaleness(0, acc, conn, o.cfg)), nil
}

// refreshAssets refreshes the assets whose latest close has aged past the
// threshold, counting the fresh ones as skipped.
func (o *Orchestrator) refreshAssets(assets []string, threshold time.Duration) marketdata.PriceRefreshResult {
	if o.prices == nil || len(assets) == 0 {
		return marketdata.PriceRefreshResult{}
	}
	now := o.clock.Now()
	var res marketdata.PriceRefreshResult
	var due []string
	for _, a := range assets {
		if p, ok := o.prices.Store().LatestPrice(a, ledgersync.Close); ok && now.Sub(p.Time) <= threshold {
			res.Skipped++
			continue
		}
		due = append(due, a)
	}
	r := o.prices.RefreshAssets(due, date.Of(now))
	res.Fetched = r.Fetched
	res.Skipped += r.Skipped
	res.Failed = r.Failed
	res.Missing = r.Missing
	return res
}

// touchedAssets collects the distinct non-cash assets a sync result
// mentions, sorted for deterministic refresh order.
func touchedAssets(res *SyncResult) []string {
	seen := make(map[string]bool)
	for _, snap := range res.Balances {
		for _, b := range snap.Balances {
			if b.Asset != "" && b.Asset != b.Amount.Currency() {
				seen[b.Asset] = true
			}
		}
	}
	for _, txs := range res.Transactions {
		for _, tx := range txs {
			if tx.Asset != "" {
				seen[tx.Asset] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for a := range seen {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// accountIndex rebuilds the cached account index from the sync result,
// keeping previously known IDs. The cache is best effort;
// Account.ConnectionID stays the source of truth.
func accountIndex(conn *ledgersync.Connection, res *SyncResult) []string {
	seen := make(map[string]bool)
	for _, id := range conn.State.AccountIDs {
		seen[id] = true
	}
	for _, acc := range res.Accounts {
		seen[acc.ID] = true
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
