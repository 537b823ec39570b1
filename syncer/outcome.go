package syncer

import (
	"fmt"
	"time"

	"github.com/lbatt/ledgersync/marketdata"
)

// OutcomeStatus classifies one connection's sync attempt.
type OutcomeStatus int

const (
	Synced OutcomeStatus = iota
	SkippedManual
	SkippedNotStale
	AuthRequired
	Failed
)

func (s OutcomeStatus) String() string {
	switch s {
	case Synced:
		return "synced"
	case SkippedManual:
		return "skipped (manual)"
	case SkippedNotStale:
		return "skipped (fresh)"
	case AuthRequired:
		return "auth required"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-connection result of a sync run. Failures are data:
// a batch returns one Outcome per connection and keeps going.
type Outcome struct {
	// Connection is the connection's state ID, Name its human name.
	Connection string
	Name       string
	Status     OutcomeStatus
	// Err is set for AuthRequired and Failed.
	Err error
	// Report is set for Synced.
	Report *Report
}

func (o Outcome) String() string {
	s := fmt.Sprintf("%s: %s", o.Name, o.Status)
	if o.Err != nil {
		s += ": " + o.Err.Error()
	}
	if o.Report != nil {
		s += ": " + o.Report.String()
	}
	return s
}

// Report details a successful sync.
type Report struct {
	// Accounts is the number of accounts seen, Balances the number of
	// snapshots appended, Transactions the number of raw records appended.
	Accounts     int
	Balances     int
	Transactions int
	Prices       marketdata.PriceRefreshResult
	Elapsed      time.Duration
}

func (r Report) String() string {
	return fmt.Sprintf("%d accounts, %d balance snapshots, %d transactions, prices %s in %v",
		r.Accounts, r.Balances, r.Transactions, r.Prices, r.Elapsed.Round(time.Millisecond))
}
