package ledgersync

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/lbatt/ledgersync/date"
)

// TxStatus is the settlement status of a transaction.
type TxStatus int

const (
	Pending TxStatus = iota
	Posted
)

func (s TxStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Posted:
		return "posted"
	default:
		return "unknown"
	}
}

// ParseTxStatus parses a string into a TxStatus.
func ParseTxStatus(s string) (TxStatus, error) {
	switch s {
	case "pending":
		return Pending, nil
	case "posted":
		return Posted, nil
	default:
		return 0, fmt.Errorf("unknown transaction status: %q", s)
	}
}

func (s TxStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *TxStatus) UnmarshalText(text []byte) error {
	v, err := ParseTxStatus(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Transaction is one financial movement reported by a vendor.
//
// ID is derived, never caller-assigned: see StableID. It must not change as
// Status transitions Pending to Posted.
type Transaction struct {
	ID          string    `json:"id"`
	Date        date.Date `json:"date"`
	Amount      Money     `json:"amount"`
	Asset       string    `json:"asset,omitempty"`
	Description string    `json:"description"`
	Status      TxStatus  `json:"status"`
	Annotations []string  `json:"annotations,omitempty"`

	// Identity candidates, in the order vendors assign them over the
	// pending-to-posted lifecycle.
	SourceID  string `json:"source_id,omitempty"`
	DerivedID string `json:"derived_id,omitempty"`
	RefNumber string `json:"ref_number,omitempty"`

	SynchronizerData map[string]string `json:"synchronizer_data,omitempty"`
}

// StableID computes the identity of a transaction from source-provided
// fields, independent of its settlement status.
//
// Priority: SourceID, then DerivedID, then RefNumber, then a content hash.
// SourceID wins because it is the earliest-assigned field present on both
// the pending and the posted variant of the same underlying event; some
// vendors only populate DerivedID once the transaction posts, so preferring
// it would split one event into two identities. The content hash is a
// deliberate, lossy last resort: two genuinely distinct transactions with
// the same date, amount, asset and description collapse into one.
func StableID(tx Transaction) string {
	if tx.SourceID != "" {
		return "src:" + tx.SourceID
	}
	if tx.DerivedID != "" {
		return "drv:" + tx.DerivedID
	}
	if tx.RefNumber != "" {
		return "ref:" + tx.RefNumber
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s",
		tx.Date, tx.Amount.Decimal(), tx.Amount.Currency(), tx.Asset, tx.Description)
	return "sha:" + hex.EncodeToString(h.Sum(nil))[:24]
}

// Identify returns a copy of txs with every ID set from StableID,
// discarding whatever the caller put there.
func Identify(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	for i, tx := range txs {
		tx.ID = StableID(tx)
		out[i] = tx
	}
	return out
}

// Canonicalize collapses a raw append log into one transaction per
// identity. For each identity the last appended record wins; distinct
// identities keep the relative order in which they were first seen.
//
// The raw log itself is the audit trail and is never mutated or compacted;
// only this read path dedups.
func Canonicalize(raw []Transaction) []Transaction {
	index := make(map[string]int)
	out := make([]Transaction, 0, len(raw))
	for _, tx := range raw {
		id := tx.ID
		if id == "" {
			id = StableID(tx)
			tx.ID = id
		}
		if i, seen := index[id]; seen {
			out[i] = tx // last write wins, position of first sighting kept
			continue
		}
		index[id] = len(out)
		out = append(out, tx)
	}
	return out
}
