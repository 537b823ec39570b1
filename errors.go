package ledgersync

import (
	"errors"
	"fmt"
)

// ErrPriceMissing reports that no price could be resolved for an asset on a
// day, neither cached, nor by lookback, nor from a live source. Batch
// callers count it rather than abort on it.
var ErrPriceMissing = errors.New("price missing")

// ErrNotFound reports that a connection or account does not exist.
var ErrNotFound = errors.New("not found")

// AuthRequiredError reports that a connection cannot sync until a human
// completes a login. It is a soft, per-connection condition: a batch run
// records it and moves on.
type AuthRequiredError struct {
	Connection string
	Reason     string
	Err        error
}

func (e *AuthRequiredError) Error() string {
	msg := fmt.Sprintf("connection %q requires authentication", e.Connection)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthRequiredError) Unwrap() error { return e.Err }

// NetworkError wraps a transport failure talking to an external source.
// It is surfaced to the caller, never retried internally: the next
// scheduled cycle is the retry.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error during %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// ParseError reports a malformed record from an external source. For a
// single transaction among many it is skip-and-log; it is fatal when it
// affects fields the identity derives from.
type ParseError struct {
	Source string
	Detail string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error from %s: %s: %v", e.Source, e.Detail, e.Err)
}
func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps a failure of the persisted record of truth. It is
// fatal for the operation in progress: the store may be inconsistent.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }
