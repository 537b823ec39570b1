package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/lbatt/ledgersync/syncer"
)

type pricesCmd struct {
	asset string
}

func (*pricesCmd) Name() string { return "prices" }
func (*pricesCmd) Synopsis() string {
	return "refresh the market data cache for held assets"
}
func (*pricesCmd) Usage() string {
	return `lsync prices [-asset <asset>] [<connection>...]

  Refreshes the cached prices of every asset held in active accounts, or
  only of the accounts owned by the named connections. With -asset, shows
  the cached points of one asset instead of refreshing.
`
}

func (c *pricesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asset, "asset", "", "Show the cached points of this asset instead of refreshing.")
}

func (c *pricesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.asset != "" {
		return c.show()
	}

	orch, err := openOrchestrator(syncer.DenyLogins())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if f.NArg() == 0 {
		res, err := orch.SyncPricesAll()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		fmt.Println(res)
		return subcommands.ExitSuccess
	}

	status := subcommands.ExitSuccess
	for _, name := range f.Args() {
		res, err := orch.SyncPricesConnection(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
			status = subcommands.ExitFailure
			continue
		}
		fmt.Printf("%s: %s\n", name, res)
	}
	return status
}

func (c *pricesCmd) show() subcommands.ExitStatus {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	svc, err := openMarket(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	points := svc.Store().Prices(c.asset)
	if len(points) == 0 {
		fmt.Printf("No cached prices for %q.\n", c.asset)
		return subcommands.ExitSuccess
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.asset)
	fmt.Fprintln(&b, "| Day | Kind | Price | Source | Fetched |")
	fmt.Fprintln(&b, "|---|---|---|---|---|")
	for _, p := range points {
		fmt.Fprintf(&b, "| %s | %s | %s %s | %s | %s |\n",
			p.Day, p.Kind, p.Price, p.Currency, p.Source, p.Time.Format(time.DateTime))
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
