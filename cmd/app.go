// Package cmd implements the CLI application to manage synchronized
// financial data.
package cmd

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/lbatt/ledgersync"
	"github.com/lbatt/ledgersync/chase"
	"github.com/lbatt/ledgersync/marketdata"
	"github.com/lbatt/ledgersync/store"
	"github.com/lbatt/ledgersync/syncer"
)

// Register the subcommands.
// A main package calls Register() to declare the subcommands, and Execute()
// on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&syncCmd{}, "sync")
	c.Register(&loginCmd{}, "sync")

	c.Register(&connectionsCmd{}, "connections")
	c.Register(&addCmd{}, "connections")
	c.Register(&accountsCmd{}, "connections")

	c.Register(&pricesCmd{}, "market data")

	c.Register(&topicCmd{}, "help")
	c.Register(&assistCmd{}, "help")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to
// use global variables.

var dataPath = flag.String("data", ".lsync", "Path to the data store folder")
var marketPath = flag.String("market", ".market", "Path to the market data cache folder")
var configFile = flag.String("config", "lsync.toml", "Path to the configuration file (TOML)")

// loadConfig reads the app configuration, falling back to defaults when the
// file does not exist.
func loadConfig() (ledgersync.Config, error) {
	cfg, err := ledgersync.LoadConfig(*configFile)
	if errors.Is(err, fs.ErrNotExist) {
		return ledgersync.DefaultConfig(), nil
	}
	return cfg, err
}

// openStore opens the app data store folder.
func openStore() (store.Storage, error) {
	return store.NewFile(*dataPath)
}

// openMarket opens the market data cache with its configured quote source.
func openMarket(cfg ledgersync.Config) (*marketdata.Service, error) {
	mkt, err := marketdata.NewFile(*marketPath)
	if err != nil {
		return nil, err
	}
	source := marketdata.NewJSONQuoteSource("tradegate", "EUR",
		func(asset string) string {
			return "https://www.tradegate.de/refresh.php?isin=" + asset
		}, "$.last")
	fx := marketdata.NewJSONFxSource("frankfurter", "EUR",
		func(cur string) string {
			return "https://api.frankfurter.dev/v1/latest?symbols=" + cur
		}, "$.rates.*")
	return marketdata.NewService(mkt, source, fx, cfg.Refresh, nil), nil
}

// openOrchestrator builds the full sync engine over the app folders.
func openOrchestrator(prompter syncer.AuthPrompter) (*syncer.Orchestrator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := openStore()
	if err != nil {
		return nil, err
	}
	prices, err := openMarket(cfg)
	if err != nil {
		return nil, err
	}
	registry := syncer.NewRegistry()
	registerKinds(registry, cfg.Refresh)
	orch := syncer.NewOrchestrator(st, prices, registry, ledgersync.EnvCredentials{}, prompter, cfg.Refresh, nil)
	if store.IsGitRepo(*dataPath) {
		orch.SetCommitter(&store.GitCommitter{Folder: *dataPath})
	}
	return orch, nil
}

// registerKinds declares every built-in synchronizer kind.
func registerKinds(r *syncer.Registry, cfg ledgersync.RefreshConfig) {
	chase.Register(r, cfg)
}

// askLogin is the terminal prompter: it asks the user before any
// interactive login.
func askLogin(conn *ledgersync.Connection, status ledgersync.AuthStatus) bool {
	fmt.Printf("Connection %q needs to re-authenticate (%s). Proceed? [y/N] ", conn.Name(), status)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// printMarkdown renders markdown to the terminal.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		log.Printf("cannot render markdown: %v", err)
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}
