package assist

import (
	"context"
	"fmt"
	"strings"

	"github.com/lbatt/ledgersync/store"
	"google.golang.org/genai"
)

// NewFunctions builds the bookkeeper's function set over the storage. All
// functions are read only: the assistant observes the ledger, it never
// edits it.
func NewFunctions(st store.Storage) []Function {
	return []Function{
		connectionsFunc(st),
		balancesFunc(st),
		transactionsFunc(st),
	}
}

func errResponse(id, name string, err error) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:   id,
		Name: name,
		Response: map[string]any{
			"error": err.Error(),
		},
	}
}

func okResponse(id, name, output string) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:   id,
		Name: name,
		Response: map[string]any{
			"output": output,
		},
	}
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("argument %q is not a string as expected but %T", key, v)
	}
	return s, nil
}

func connectionsFunc(st store.Storage) Function {
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name: "Connections",
			Description: `Connections lists all the configured vendor connections,
			with their kind, lifecycle status, and the instant of their last successful sync.`,
			Parameters: &genai.Schema{Type: genai.TypeObject},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown table of connections: name, kind, status, last sync.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			conns, err := st.ListConnections()
			if err != nil {
				return errResponse(id, "Connections", err)
			}
			var b strings.Builder
			fmt.Fprintln(&b, "| Name | Kind | Status | Last Sync |")
			fmt.Fprintln(&b, "|---|---|---|---|")
			for _, c := range conns {
				last := "never"
				if c.State.LastSync != nil {
					last = c.State.LastSync.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", c.Name(), c.Config.Kind, c.State.Status, last)
			}
			return okResponse(id, "Connections", b.String())
		},
	}
}

func balancesFunc(st store.Storage) Function {
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name: "Balances",
			Description: `Balances returns the latest known balance snapshot of one account:
			the cash line plus one line per held asset, with the snapshot's timestamp.`,
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"account": {
						Type:        genai.TypeString,
						Description: "The account ID, as listed by the account tools.",
					},
				},
				Required: []string{"account"},
			},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown table of asset balances for the account.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			account, err := stringArg(args, "account")
			if err != nil {
				return errResponse(id, "Balances", err)
			}
			snap, err := st.LatestBalances(account)
			if err != nil {
				return errResponse(id, "Balances", err)
			}
			if snap == nil {
				return okResponse(id, "Balances", fmt.Sprintf("account %q has no balance snapshot yet", account))
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Snapshot of %s taken %s\n\n", account, snap.Time.Format("2006-01-02 15:04"))
			fmt.Fprintln(&b, "| Asset | Amount |")
			fmt.Fprintln(&b, "|---|---|")
			for _, line := range snap.Balances {
				fmt.Fprintf(&b, "| %s | %s |\n", line.Asset, line.Amount)
			}
			return okResponse(id, "Balances", b.String())
		},
	}
}

func transactionsFunc(st store.Storage) Function {
	return &Func{
		Decl: &genai.FunctionDeclaration{
			Name: "Transactions",
			Description: `Transactions returns the deduplicated transaction history of one
			account, most recent last. Pending and posted movements both appear, one record
			per underlying event.`,
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"account": {
						Type:        genai.TypeString,
						Description: "The account ID, as listed by the account tools.",
					},
				},
				Required: []string{"account"},
			},
			Response: &genai.Schema{
				Type:        genai.TypeString,
				Description: "A markdown table of transactions: date, amount, description, status.",
			},
		},
		Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
			account, err := stringArg(args, "account")
			if err != nil {
				return errResponse(id, "Transactions", err)
			}
			txs, err := st.Transactions(account)
			if err != nil {
				return errResponse(id, "Transactions", err)
			}
			var b strings.Builder
			fmt.Fprintln(&b, "| Date | Amount | Description | Status |")
			fmt.Fprintln(&b, "|---|---|---|---|")
			for _, tx := range txs {
				fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", tx.Date, tx.Amount, tx.Description, tx.Status)
			}
			return okResponse(id, "Transactions", b.String())
		},
	}
}
