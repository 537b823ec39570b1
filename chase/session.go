// Package chase synchronizes accounts, balances and transactions from the
// bank's JSON portal, reusing a browser session captured by the user. There
// is no API key flow: the user pastes the request headers of a logged-in
// browser, the way the portal itself authenticates.
package chase

import (
	"bufio"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const sessionFilePrefix = "lsync-chase-session-"

// sessionDir is a variable for tests.
var sessionDir = os.TempDir()

func sessionPath(connectionID string) string {
	return filepath.Join(sessionDir, sessionFilePrefix+connectionID)
}

// SaveHeaders stores captured session headers, one "Name: value" line each,
// for the connection. Readable only by the owner.
func SaveHeaders(connectionID string, lines []string) error {
	path := sessionPath(connectionID)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o600); err != nil {
		return fmt.Errorf("cannot save chase session: %w", err)
	}
	return nil
}

// LoadHeaders reads the captured session headers for the connection.
func LoadHeaders(connectionID string) (http.Header, error) {
	data, err := os.ReadFile(sessionPath(connectionID))
	if err != nil {
		return nil, fmt.Errorf("chase session not found, run 'lsync login' first: %w", err)
	}
	headers := make(http.Header)
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		parts := strings.SplitN(scanner.Text(), ":", 2)
		if len(parts) == 2 {
			headers.Add(strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]))
		}
	}
	return headers, nil
}

// ClearSession forgets the captured session.
func ClearSession(connectionID string) error {
	err := os.Remove(sessionPath(connectionID))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
