package ledgersync

import "time"

// Account is a financial account discovered through a connection.
//
// ConnectionID is the source of truth for ownership; the reverse index in
// ConnectionState.AccountIDs is only a cache and may be stale.
type Account struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	ConnectionID     string            `json:"connection_id"`
	Tags             []string          `json:"tags,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	Active           bool              `json:"active"`
	SynchronizerData map[string]string `json:"synchronizer_data,omitempty"`
	// PriceStaleness overrides connection and global price staleness
	// thresholds for this account. Zero means "no override".
	PriceStaleness time.Duration `json:"price_staleness,omitempty"`
}
