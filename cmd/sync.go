package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/lbatt/ledgersync/syncer"
)

type syncCmd struct {
	force  bool
	maxAge time.Duration
	yes    bool
}

func (*syncCmd) Name() string { return "sync" }
func (*syncCmd) Synopsis() string {
	return "synchronize connections that have stale data"
}
func (*syncCmd) Usage() string {
	return `lsync sync [-force] [-max-age <duration>] [-yes] [<connection>...]

  Synchronizes the named connections, or all of them when none is given.
  A connection is contacted only when its data is older than the resolved
  staleness threshold; -force syncs regardless of age, and -max-age
  overrides the threshold for this run.

  When a vendor needs an interactive login, the command asks before
  proceeding; -yes approves all logins upfront.
`
}

func (c *syncCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.force, "force", false, "Sync even when the data is fresh.")
	f.DurationVar(&c.maxAge, "max-age", 0, "Staleness threshold override for this run (e.g. 1h).")
	f.BoolVar(&c.yes, "yes", false, "Approve interactive logins without asking.")
}

func (c *syncCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var prompter syncer.AuthPrompter = syncer.AuthPrompterFunc(askLogin)
	if c.yes {
		prompter = syncer.AllowLogins()
	}
	orch, err := openOrchestrator(prompter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	var outcomes []syncer.Outcome
	if f.NArg() == 0 {
		if c.force {
			outcomes = orch.SyncAll(ctx)
		} else {
			outcomes = orch.SyncAllIfStale(ctx)
		}
	} else {
		for _, name := range f.Args() {
			if c.force {
				outcomes = append(outcomes, orch.SyncConnection(ctx, name))
			} else {
				outcomes = append(outcomes, orch.SyncConnectionIfStale(ctx, name, c.maxAge))
			}
		}
	}

	status := subcommands.ExitSuccess
	for _, o := range outcomes {
		fmt.Println(o)
		if o.Status == syncer.Failed || o.Status == syncer.AuthRequired {
			status = subcommands.ExitFailure
		}
	}
	return status
}
