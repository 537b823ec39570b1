package chase

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/date"
	"github.com/lbatt/ledgersync/syncer"
)

// jaccount is one account as the portal reports it.
type jaccount struct {
	ID        string      `json:"accountId"`
	Name      string      `json:"name"`
	Mask      string      `json:"mask"`
	Type      string      `json:"type"`
	Balance   float64     `json:"balance"`
	Currency  string      `json:"currency"`
	Positions []jposition `json:"positions"`

	fetchedAt time.Time
}

type jposition struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Currency string  `json:"currency"`
}

var unsafeID = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// localID derives the storage account ID from the vendor one. Vendor IDs
// are opaque and occasionally carry separators unfit for file names.
func (a jaccount) localID() string {
	id := unsafeID.ReplaceAllString(a.ID, "-")
	id = strings.Trim(id, "-.")
	return Kind + "-" + id
}

func (a jaccount) account(connectionID string) ledgersync.Account {
	return ledgersync.Account{
		ID:           a.localID(),
		Name:         a.Name,
		ConnectionID: connectionID,
		Tags:         []string{Kind, a.Type},
		Active:       true,
		SynchronizerData: map[string]string{
			"accountId": a.ID,
			"mask":      a.Mask,
		},
	}
}

// snapshot builds the balance snapshot: the cash balance plus one line per
// held position. For cash the asset is the currency code itself.
func (a jaccount) snapshot() ledgersync.BalanceSnapshot {
	balances := []ledgersync.AssetBalance{
		{Asset: a.Currency, Amount: ledgersync.M(a.Balance, a.Currency)},
	}
	for _, p := range a.Positions {
		balances = append(balances, ledgersync.AssetBalance{
			Asset:  p.Symbol,
			Amount: ledgersync.M(p.Quantity, p.Currency),
		})
	}
	return ledgersync.BalanceSnapshot{Time: a.fetchedAt, Balances: balances}
}

func parseAccounts(data []byte) ([]jaccount, error) {
	var payload struct {
		Accounts []jaccount `json:"accounts"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ledgersync.ParseError{Source: Kind, Detail: "accounts payload", Err: err}
	}
	return payload.Accounts, nil
}

// jtransaction is one transaction as the portal reports it. The pending
// variant carries only id; postedId and referenceNumber appear once it
// settles.
type jtransaction struct {
	ID          string    `json:"id"`
	PostedID    string    `json:"postedId"`
	Reference   string    `json:"referenceNumber"`
	Date        date.Date `json:"date"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Status      string    `json:"status"`
	Symbol      string    `json:"symbol"`
}

func (j jtransaction) transaction() ledgersync.Transaction {
	status := ledgersync.Posted
	if strings.EqualFold(j.Status, "pending") {
		status = ledgersync.Pending
	}
	return ledgersync.Transaction{
		Date:        j.Date,
		Amount:      ledgersync.M(j.Amount, j.Currency),
		Asset:       j.Symbol,
		Description: j.Description,
		Status:      status,
		SourceID:    j.ID,
		DerivedID:   j.PostedID,
		RefNumber:   j.Reference,
	}
}

func parseTransactionsPage(data []byte) (syncer.Page[ledgersync.Transaction], error) {
	var payload struct {
		Transactions []jtransaction `json:"transactions"`
		NextCursor   string         `json:"nextCursor"`
		HasMore      bool           `json:"hasMore"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return syncer.Page[ledgersync.Transaction]{}, &ledgersync.ParseError{Source: Kind, Detail: "transactions payload", Err: err}
	}
	page := syncer.Page[ledgersync.Transaction]{NextKey: payload.NextCursor, More: payload.HasMore}
	for _, j := range payload.Transactions {
		page.Records = append(page.Records, j.transaction())
	}
	return page, nil
}
