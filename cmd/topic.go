package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/lbatt/ledgersync/docs"
)

type topicCmd struct {
	list bool
}

func (*topicCmd) Name() string     { return "topic" }
func (*topicCmd) Synopsis() string { return "show documentation" }
func (*topicCmd) Usage() string {
	return `lsync topic [-list] [<topic>...]

  Shows the documentation for the given topics, in order. Without
  argument it shows the overview; '*' expands to every topic, and -list
  prints the topic names only.
`
}

func (c *topicCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "Print the available topic names and exit.")
}

func (c *topicCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	all, err := docs.GetAllTopics()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading docs: %v\n", err)
		return subcommands.ExitFailure
	}
	if c.list {
		fmt.Println(strings.Join(all, "\n"))
		return subcommands.ExitSuccess
	}

	names := f.Args()
	if len(names) == 0 {
		names = []string{"readme"}
	}
	// Expand '*' here so the remaining names are all concrete.
	var topics []string
	for _, name := range names {
		if name == "*" {
			topics = append(topics, all...)
			continue
		}
		topics = append(topics, name)
	}

	var b strings.Builder
	for _, topic := range topics {
		doc, err := docs.GetTopic(topic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\nAvailable topics: %s\n", err, strings.Join(all, ", "))
			return subcommands.ExitFailure
		}
		b.WriteString(doc)
		b.WriteString("\n")
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
