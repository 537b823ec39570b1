package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/lbatt/ledgersync/cmd"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	completion()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion handles shell completion requests and returns immediately
// otherwise. Install with: COMP_INSTALL=1 lsync
func completion() {
	connection := predict.Something
	c := &complete.Command{
		Flags: map[string]complete.Predictor{
			"data":   predict.Dirs("*"),
			"market": predict.Dirs("*"),
			"config": predict.Files("*.toml"),
		},
		Sub: map[string]*complete.Command{
			"sync": {
				Flags: map[string]complete.Predictor{
					"force":   predict.Nothing,
					"max-age": predict.Something,
					"yes":     predict.Nothing,
				},
				Args: connection,
			},
			"login": {
				Flags: map[string]complete.Predictor{"H": predict.Something},
				Args:  connection,
			},
			"connections": {},
			"add": {
				Flags: map[string]complete.Predictor{
					"name":    predict.Something,
					"kind":    predict.Set{"chase", "manual"},
					"max-age": predict.Something,
				},
			},
			"accounts": {
				Flags: map[string]complete.Predictor{"c": connection},
			},
			"prices": {
				Flags: map[string]complete.Predictor{"asset": predict.Something},
				Args:  connection,
			},
			"topic": {
				Args: predict.Set{"readme", "connections", "staleness", "identity", "auth", "prices", "*"},
			},
			"assist": {Args: predict.Something},
		},
	}
	c.Complete("lsync")
}
