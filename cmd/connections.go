package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/subcommands"
	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/syncer"
)

type connectionsCmd struct{}

func (*connectionsCmd) Name() string     { return "connections" }
func (*connectionsCmd) Synopsis() string { return "list the configured connections" }
func (*connectionsCmd) Usage() string {
	return `lsync connections

  Lists the configured connections with their kind, status and last sync.
`
}

func (c *connectionsCmd) SetFlags(f *flag.FlagSet) {}

func (c *connectionsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	conns, err := st.ListConnections()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	var b strings.Builder
	fmt.Fprintln(&b, "| Name | Kind | Status | Last Sync |")
	fmt.Fprintln(&b, "|---|---|---|---|")
	for _, conn := range conns {
		last := "never"
		if conn.State.LastSync != nil {
			last = conn.State.LastSync.Format(time.DateTime)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", conn.Name(), conn.Config.Kind, conn.State.Status, last)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}

type addCmd struct {
	name   string
	kind   string
	maxAge time.Duration
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "declare a new connection" }
func (*addCmd) Usage() string {
	return `lsync add -name <name> -kind <kind>

  Declares a new connection to a vendor. The kind selects the
  synchronizer; use 'manual' for accounts maintained by hand.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.name, "name", "", "Human name of the connection (required).")
	f.StringVar(&c.kind, "kind", "", "Synchronizer kind (required).")
	f.DurationVar(&c.maxAge, "max-age", 0, "Balance staleness override for this connection.")
}

func (c *addCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.name == "" || c.kind == "" {
		fmt.Fprintln(os.Stderr, "Error: -name and -kind are required.")
		return subcommands.ExitUsageError
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	registry := syncer.NewRegistry()
	registerKinds(registry, cfg.Refresh)
	known := registry.Kinds()
	if !slices.Contains(known, c.kind) {
		fmt.Fprintf(os.Stderr, "Error: unknown kind %q, available: %s\n", c.kind, strings.Join(known, ", "))
		return subcommands.ExitUsageError
	}

	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if _, err := st.GetConnection(c.name); err == nil {
		fmt.Fprintf(os.Stderr, "Error: connection %q already exists.\n", c.name)
		return subcommands.ExitFailure
	}

	conn := ledgersync.NewConnection(c.name, c.kind, ledgersync.SystemClock())
	conn.Config.BalanceStaleness = c.maxAge
	if err := st.SaveConnection(conn); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Connection %q (%s) created with id %s.\n", c.name, c.kind, conn.ID())
	return subcommands.ExitSuccess
}

type accountsCmd struct {
	connection string
}

func (*accountsCmd) Name() string     { return "accounts" }
func (*accountsCmd) Synopsis() string { return "list accounts and their latest balances" }
func (*accountsCmd) Usage() string {
	return `lsync accounts [-c <connection>]

  Lists the known accounts with their latest balance snapshot.
`
}

func (c *accountsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.connection, "c", "", "Restrict to one connection's accounts.")
}

func (c *accountsCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	st, err := openStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	accounts, err := st.ListAccounts()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	if c.connection != "" {
		conn, err := st.GetConnection(c.connection)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		var owned []*ledgersync.Account
		for _, a := range accounts {
			if a.ConnectionID == conn.ID() {
				owned = append(owned, a)
			}
		}
		accounts = owned
	}

	var b strings.Builder
	fmt.Fprintln(&b, "| Account | Name | Asset | Balance | As Of |")
	fmt.Fprintln(&b, "|---|---|---|---|---|")
	for _, a := range accounts {
		snap, err := st.LatestBalances(a.ID)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		if snap == nil {
			fmt.Fprintf(&b, "| %s | %s | | | never |\n", a.ID, a.Name)
			continue
		}
		asOf := snap.Time.Format(time.DateTime)
		for _, line := range snap.Balances {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", a.ID, a.Name, line.Asset, line.Amount, asOf)
		}
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
