package store

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// IsGitRepo reports whether folder is under git control.
func IsGitRepo(folder string) bool {
	_, err := os.Stat(filepath.Join(folder, ".git"))
	return err == nil
}

// GitCommitter commits the data folder after each successful sync, so the
// JSONL history doubles as an audit trail. It satisfies the orchestrator's
// committer hook.
type GitCommitter struct {
	Folder string
}

func (g *GitCommitter) Commit(message string) error {
	add := exec.Command("git", "-C", g.Folder, "add", "-A")
	if out, err := add.CombinedOutput(); err != nil {
		return fmt.Errorf("git add: %v: %s", err, out)
	}
	commit := exec.Command("git", "-C", g.Folder, "commit", "-q", "-m", message)
	if out, err := commit.CombinedOutput(); err != nil {
		// A sync that changed nothing is not an error.
		if strings.Contains(string(out), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("git commit: %v: %s", err, out)
	}
	return nil
}
