package cmd

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/google/subcommands"
)

// captureStdout runs fn and returns what it printed.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stdout = w
	defer func() { os.Stdout = old }()
	fn()
	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	return string(out)
}

func TestTopicList(t *testing.T) {
	c := &topicCmd{list: true}
	var status subcommands.ExitStatus
	out := captureStdout(t, func() {
		status = c.Execute(context.Background(), flag.NewFlagSet("topic", flag.ContinueOnError))
	})
	if status != subcommands.ExitSuccess {
		t.Fatalf("status = %v", status)
	}
	for _, topic := range []string{"auth", "identity", "prices", "staleness", "connections"} {
		if !strings.Contains(out, topic) {
			t.Errorf("topic list misses %q:\n%s", topic, out)
		}
	}
	if strings.Contains(out, "readme") {
		t.Errorf("readme should not be listed as a topic:\n%s", out)
	}
}

func TestTopicStarExpansion(t *testing.T) {
	c := &topicCmd{}
	fs := flag.NewFlagSet("topic", flag.ContinueOnError)
	if err := fs.Parse([]string{"*"}); err != nil {
		t.Fatal(err)
	}
	var status subcommands.ExitStatus
	out := captureStdout(t, func() {
		status = c.Execute(context.Background(), fs)
	})
	if status != subcommands.ExitSuccess {
		t.Fatalf("status = %v", status)
	}
	// Every topic's title must appear in the expanded output.
	for _, title := range []string{"Staleness", "Transaction identity", "Market data"} {
		if !strings.Contains(out, title) {
			t.Errorf("expanded docs miss %q", title)
		}
	}
}

func TestTopicUnknown(t *testing.T) {
	c := &topicCmd{}
	fs := flag.NewFlagSet("topic", flag.ContinueOnError)
	if err := fs.Parse([]string{"nope"}); err != nil {
		t.Fatal(err)
	}
	if status := c.Execute(context.Background(), fs); status != subcommands.ExitFailure {
		t.Errorf("unknown topic status = %v, want failure", status)
	}
}
