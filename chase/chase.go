package chase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/syncer"
)

// Kind is the synchronizer kind for connections to this vendor.
const Kind = "chase"

const defaultBaseURL = "https://secure.chase.com/svc/api/v1"

// Synchronizer implements syncer.Synchronizer over the bank's JSON portal.
type Synchronizer struct {
	// BaseURL is a variable for tests.
	BaseURL string
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Clock defaults to the system clock.
	Clock ledgersync.Clock

	conn            *ledgersync.Connection
	pageSize        int
	maxTransactions int
}

var _ syncer.Synchronizer = (*Synchronizer)(nil)

// New creates a synchronizer for the connection.
func New(conn *ledgersync.Connection, cfg ledgersync.RefreshConfig) *Synchronizer {
	return &Synchronizer{
		BaseURL:         defaultBaseURL,
		conn:            conn,
		pageSize:        cfg.PageSize,
		maxTransactions: cfg.MaxTransactions,
	}
}

// Register binds the chase kind into a registry.
func Register(r *syncer.Registry, cfg ledgersync.RefreshConfig) {
	r.Register(Kind, func(conn *ledgersync.Connection, _ ledgersync.CredentialStore) (syncer.Synchronizer, error) {
		return New(conn, cfg), nil
	})
}

func (s *Synchronizer) Name() string { return Kind }

// RequiresAuth is always true: nothing on the portal is public.
func (s *Synchronizer) RequiresAuth() bool { return true }

func (s *Synchronizer) Interactive() syncer.InteractiveAuth { return &interactiveAuth{s: s} }

func (s *Synchronizer) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return http.DefaultClient
}

func (s *Synchronizer) clock() ledgersync.Clock {
	if s.Clock != nil {
		return s.Clock
	}
	return ledgersync.SystemClock()
}

// Sync fetches the accounts visible in the session, one balance snapshot
// and the recent transactions of each. A failing account is logged and
// joined, not fatal for its siblings.
func (s *Synchronizer) Sync(ctx context.Context, conn *ledgersync.Connection) (*syncer.SyncResult, error) {
	header, err := LoadHeaders(conn.ID())
	if err != nil {
		return nil, &ledgersync.AuthRequiredError{Connection: conn.Name(), Reason: "no captured session", Err: err}
	}

	accounts, err := s.getAccounts(ctx, header)
	if err != nil {
		return nil, err
	}

	res := &syncer.SyncResult{
		Balances:     make(map[string]ledgersync.BalanceSnapshot),
		Transactions: make(map[string][]ledgersync.Transaction),
	}
	var errs error
	now := s.clock().Now()
	for _, acc := range accounts {
		acc.fetchedAt = now
		res.Accounts = append(res.Accounts, acc.account(conn.ID()))
		res.Balances[acc.localID()] = acc.snapshot()

		txs, err := s.getTransactions(ctx, header, acc.ID)
		if err != nil {
			log.Printf("chase: transactions of account %q: %v", acc.ID, err)
			errs = errors.Join(errs, err)
			continue
		}
		res.Transactions[acc.localID()] = txs
	}
	if len(res.Accounts) == 0 && errs != nil {
		return nil, errs
	}
	return res, nil
}

func (s *Synchronizer) getAccounts(ctx context.Context, header http.Header) ([]jaccount, error) {
	data, err := s.query(ctx, header, s.BaseURL+"/accounts")
	if err != nil {
		return nil, err
	}
	payload, err := parseAccounts(data)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func (s *Synchronizer) getTransactions(ctx context.Context, header http.Header, accountID string) ([]ledgersync.Transaction, error) {
	fetch := func(key string) (syncer.Page[ledgersync.Transaction], error) {
		uri := fmt.Sprintf("%s/accounts/%s/transactions?limit=%d", s.BaseURL, url.PathEscape(accountID), s.pageSize)
		if key != "" {
			uri += "&cursor=" + url.QueryEscape(key)
		}
		data, err := s.query(ctx, header, uri)
		if err != nil {
			return syncer.Page[ledgersync.Transaction]{}, err
		}
		return parseTransactionsPage(data)
	}
	return syncer.Paginate(s.pageSize, s.maxTransactions, fetch)
}

// query performs an authenticated GET, returning the raw body. A rejected
// session surfaces as an AuthRequiredError, so batch callers classify it
// apart from plain network failures.
func (s *Synchronizer) query(ctx context.Context, header http.Header, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create http request %q: %w", uri, err)
	}
	req.Header = header

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, &ledgersync.NetworkError{Op: "chase GET", Err: err}
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &ledgersync.AuthRequiredError{Connection: s.conn.Name(), Reason: "session rejected: " + resp.Status}
	case resp.StatusCode != http.StatusOK:
		return nil, &ledgersync.NetworkError{Op: "chase GET", Err: fmt.Errorf("%s: %s", req.URL.Path, resp.Status)}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, &ledgersync.NetworkError{Op: "chase GET", Err: err}
	}
	return buf.Bytes(), nil
}
