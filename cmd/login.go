package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/lbatt/ledgersync/chase"
	"github.com/lbatt/ledgersync/syncer"
)

type headerFlags []string

func (h *headerFlags) String() string {
	return strings.Join(*h, ", ")
}

func (h *headerFlags) Set(value string) error {
	*h = append(*h, value)
	return nil
}

type loginCmd struct {
	headers headerFlags
	// Ignored flags so a pasted curl command line works as is.
	curl string
	body string
}

func (*loginCmd) Name() string     { return "login" }
func (*loginCmd) Synopsis() string { return "stores a vendor session captured from the browser" }
func (*loginCmd) Usage() string {
	return `lsync login <connection> -H <header1> -H <header2> ...

  Stores session headers for a connection whose vendor has no API keys.
  Log in with your browser, copy an authenticated request as curl, and
  paste its -H flags here. The session is validated against the vendor
  before the connection is marked active.
`
}

func (c *loginCmd) SetFlags(f *flag.FlagSet) {
	f.Var(&c.headers, "H", "Header for the request (can be specified multiple times)")
	// Ignored, for curl compatibility.
	f.StringVar(&c.curl, "curl", "", "ignored, for curl compatibility")
	f.StringVar(&c.body, "b", "", "ignored, for curl compatibility")
}

func (c *loginCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Error: exactly one connection name is required.")
		return subcommands.ExitUsageError
	}
	if len(c.headers) == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one -H flag is required.")
		return subcommands.ExitUsageError
	}

	orch, err := openOrchestrator(syncer.AllowLogins())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	conn, err := orch.Connection(f.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if err := chase.SaveHeaders(conn.ID(), c.headers); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to save session: %v\n", err)
		return subcommands.ExitFailure
	}

	if err := orch.Login(ctx, conn.ID()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: session rejected by the vendor: %v\n", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("Session for %q stored and validated.\n", conn.Name())
	return subcommands.ExitSuccess
}
