package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/lbatt/ledgersync"
)

// File is a Storage persisted in a folder of human-readable JSON files,
// designed to live in a private git repository.
//
// Layout:
//
//	connections/<id>.json        one file per connection
//	accounts/<id>.json           one file per account
//	balances/<account>.jsonl     one snapshot per line, append-only
//	transactions/<account>.jsonl one transaction per line, append-only
//
// A process-wide mutex serializes writers; appends additionally rely on
// O_APPEND write atomicity so a reader in another process never observes a
// torn line.
type File struct {
	mu   sync.Mutex
	root string
}

// NewFile opens (or initializes) a file store rooted at folder.
func NewFile(folder string) (*File, error) {
	for _, sub := range []string{"connections", "accounts", "balances", "transactions"} {
		if err := os.MkdirAll(filepath.Join(folder, sub), 0755); err != nil {
			return nil, &ledgersync.StorageError{Op: "init store", Err: err}
		}
	}
	return &File{root: folder}, nil
}

var _ Storage = (*File)(nil)

// path builds a path under the store root, refusing unsafe identifiers.
func (f *File) path(sub, id, ext string) (string, error) {
	if err := ledgersync.ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(f.root, sub, id+ext), nil
}

func (f *File) ListConnections() ([]*ledgersync.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listConnections()
}

func (f *File) listConnections() ([]*ledgersync.Connection, error) {
	filenames, err := filepath.Glob(filepath.Join(f.root, "connections", "*.json"))
	if err != nil {
		return nil, &ledgersync.StorageError{Op: "list connections", Err: err}
	}
	out := make([]*ledgersync.Connection, 0, len(filenames))
	for _, filename := range filenames {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, &ledgersync.StorageError{Op: "read " + filename, Err: err}
		}
		var c ledgersync.Connection
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, &ledgersync.StorageError{Op: "parse " + filename, Err: err}
		}
		out = append(out, &c)
	}
	sortConnections(out)
	return out, nil
}

func (f *File) GetConnection(idOrName string) (*ledgersync.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	connections, err := f.listConnections()
	if err != nil {
		return nil, err
	}
	for _, c := range connections {
		if c.State.ID == idOrName || c.Config.Name == idOrName {
			return c, nil
		}
	}
	return nil, fmt.Errorf("connection %q: %w", idOrName, ledgersync.ErrNotFound)
}

func (f *File) SaveConnection(c *ledgersync.Connection) error {
	path, err := f.path("connections", c.State.ID, ".json")
	if err != nil {
		return &ledgersync.StorageError{Op: "save connection", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(path, c)
}

func (f *File) DeleteConnection(id string) error {
	path, err := f.path("connections", id, ".json")
	if err != nil {
		return &ledgersync.StorageError{Op: "delete connection", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("connection %q: %w", id, ledgersync.ErrNotFound)
		}
		return &ledgersync.StorageError{Op: "delete connection", Err: err}
	}
	return nil
}

func (f *File) ListAccounts() ([]*ledgersync.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listAccounts()
}

func (f *File) listAccounts() ([]*ledgersync.Account, error) {
	filenames, err := filepath.Glob(filepath.Join(f.root, "accounts", "*.json"))
	if err != nil {
		return nil, &ledgersync.StorageError{Op: "list accounts", Err: err}
	}
	out := make([]*ledgersync.Account, 0, len(filenames))
	for _, filename := range filenames {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, &ledgersync.StorageError{Op: "read " + filename, Err: err}
		}
		var a ledgersync.Account
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, &ledgersync.StorageError{Op: "parse " + filename, Err: err}
		}
		out = append(out, &a)
	}
	sortAccounts(out)
	return out, nil
}

func (f *File) GetAccount(id string) (*ledgersync.Account, error) {
	path, err := f.path("accounts", id, ".json")
	if err != nil {
		return nil, &ledgersync.StorageError{Op: "get account", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("account %q: %w", id, ledgersync.ErrNotFound)
		}
		return nil, &ledgersync.StorageError{Op: "get account", Err: err}
	}
	var a ledgersync.Account
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ledgersync.StorageError{Op: "parse account " + id, Err: err}
	}
	return &a, nil
}

func (f *File) SaveAccount(a *ledgersync.Account) error {
	path, err := f.path("accounts", a.ID, ".json")
	if err != nil {
		return &ledgersync.StorageError{Op: "save account", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return writeJSON(path, a)
}

func (f *File) DeleteAccount(id string) error {
	path, err := f.path("accounts", id, ".json")
	if err != nil {
		return &ledgersync.StorageError{Op: "delete account", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("account %q: %w", id, ledgersync.ErrNotFound)
		}
		return &ledgersync.StorageError{Op: "delete account", Err: err}
	}
	return nil
}

func (f *File) AppendBalanceSnapshot(accountID string, s ledgersync.BalanceSnapshot) error {
	path, err := f.path("balances", accountID, ".jsonl")
	if err != nil {
		return &ledgersync.StorageError{Op: "append balances", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return appendLines(path, s)
}

func (f *File) BalanceSnapshots(accountID string) ([]ledgersync.BalanceSnapshot, error) {
	path, err := f.path("balances", accountID, ".jsonl")
	if err != nil {
		return nil, &ledgersync.StorageError{Op: "read balances", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ledgersync.BalanceSnapshot
	err = readLines(path, func(line string, i int) error {
		var s ledgersync.BalanceSnapshot
		if err := json.Unmarshal([]byte(line), &s); err != nil {
			return fmt.Errorf("parse error %s:%d: %w", path, i, err)
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, &ledgersync.StorageError{Op: "read balances", Err: err}
	}
	return out, nil
}

func (f *File) LatestBalances(accountID string) (*ledgersync.BalanceSnapshot, error) {
	snaps, err := f.BalanceSnapshots(accountID)
	if err != nil {
		return nil, err
	}
	return ledgersync.LatestSnapshot(snaps), nil
}

func (f *File) LatestBalancesForConnection(connectionID string) (map[string]ledgersync.BalanceSnapshot, error) {
	accounts, err := f.ListAccounts()
	if err != nil {
		return nil, err
	}
	out := make(map[string]ledgersync.BalanceSnapshot)
	for _, a := range accounts {
		if a.ConnectionID != connectionID {
			continue
		}
		latest, err := f.LatestBalances(a.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			out[a.ID] = *latest
		}
	}
	return out, nil
}

func (f *File) AppendTransactions(accountID string, txs []ledgersync.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	path, err := f.path("transactions", accountID, ".jsonl")
	if err != nil {
		return &ledgersync.StorageError{Op: "append transactions", Err: err}
	}
	records := make([]any, len(txs))
	for i := range txs {
		records[i] = txs[i]
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return appendLines(path, records...)
}

func (f *File) RawTransactions(accountID string) ([]ledgersync.Transaction, error) {
	path, err := f.path("transactions", accountID, ".jsonl")
	if err != nil {
		return nil, &ledgersync.StorageError{Op: "read transactions", Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ledgersync.Transaction
	err = readLines(path, func(line string, i int) error {
		var tx ledgersync.Transaction
		if err := json.Unmarshal([]byte(line), &tx); err != nil {
			return fmt.Errorf("parse error %s:%d: %w", path, i, err)
		}
		out = append(out, tx)
		return nil
	})
	if err != nil {
		return nil, &ledgersync.StorageError{Op: "read transactions", Err: err}
	}
	return out, nil
}

func (f *File) Transactions(accountID string) ([]ledgersync.Transaction, error) {
	raw, err := f.RawTransactions(accountID)
	if err != nil {
		return nil, err
	}
	return ledgersync.Canonicalize(raw), nil
}

// writeJSON writes v to path through a temp file and a rename, so a crash
// never leaves a half-written document behind.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &ledgersync.StorageError{Op: "encode " + path, Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return &ledgersync.StorageError{Op: "write " + tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &ledgersync.StorageError{Op: "rename " + tmp, Err: err}
	}
	return nil
}

// appendLines appends one JSON document per line to path, creating it if
// needed. The log is never rewritten.
func appendLines(path string, records ...any) error {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return &ledgersync.StorageError{Op: "open " + path, Err: err}
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return &ledgersync.StorageError{Op: "encode line for " + path, Err: err}
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return &ledgersync.StorageError{Op: "append " + path, Err: err}
	}
	return nil
}

// readLines feeds every non-empty line of path to fn with its 1-based line
// number. A missing file reads as empty.
func readLines(path string, fn func(line string, i int) error) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	i := 0
	for scanner.Scan() {
		i++
		txt := scanner.Text()
		if strings.TrimSpace(txt) == "" {
			continue
		}
		if err := fn(txt, i); err != nil {
			return err
		}
	}
	return scanner.Err()
}
