package chase

import (
	"context"
	"log"
	"net/http"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/syncer"
)

type interactiveAuth struct {
	s *Synchronizer
}

var _ syncer.InteractiveAuth = (*interactiveAuth)(nil)

// CheckAuth probes the captured session with the cheapest authenticated
// endpoint. No session at all is Missing; a rejected one is Expired. A
// plain network failure is reported Valid: the sync itself will fail with
// a NetworkError, which classifies better than a login prompt would.
func (a *interactiveAuth) CheckAuth() ledgersync.AuthStatus {
	header, err := LoadHeaders(a.s.conn.ID())
	if err != nil {
		return ledgersync.AuthStatus{State: ledgersync.AuthMissing}
	}
	req, err := http.NewRequest(http.MethodGet, a.s.BaseURL+"/profile", nil)
	if err != nil {
		return ledgersync.AuthStatus{State: ledgersync.AuthExpired, Reason: err.Error()}
	}
	req.Header = header
	resp, err := a.s.client().Do(req)
	if err != nil {
		log.Printf("chase: auth probe for %q failed: %v", a.s.conn.Name(), err)
		return ledgersync.AuthStatus{State: ledgersync.AuthValid}
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return ledgersync.AuthStatus{State: ledgersync.AuthExpired, Reason: "session rejected: " + resp.Status}
	}
	return ledgersync.AuthStatus{State: ledgersync.AuthValid}
}

// Login validates the session the user captured with 'lsync login'. The
// capture itself is a human step; there is nothing to acquire here beyond
// checking it works.
func (a *interactiveAuth) Login(ctx context.Context) error {
	header, err := LoadHeaders(a.s.conn.ID())
	if err != nil {
		return err
	}
	_, err = a.s.query(ctx, header, a.s.BaseURL+"/profile")
	return err
}
