package ledgersync

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that reads from TOML/JSON strings like "24h".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalText() ([]byte, error) { return []byte(time.Duration(d).String()), nil }

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(v)
	return nil
}

// RefreshConfig holds the global refresh policy. Per-connection and
// per-account overrides take precedence over these, see syncer.
type RefreshConfig struct {
	// BalanceStaleness is the maximum age of a connection's balances
	// before a sync is due.
	BalanceStaleness Duration `toml:"balance_staleness"`
	// PriceStaleness is the maximum age of cached valuation prices.
	PriceStaleness Duration `toml:"price_staleness"`
	// QuoteStaleness is how long an intraday quote stays usable.
	QuoteStaleness Duration `toml:"quote_staleness"`
	// LookbackDays bounds the backward walk for a missing close.
	LookbackDays int `toml:"lookback_days"`
	// MaxTransactions is the safety valve for paginated vendor APIs.
	MaxTransactions int `toml:"max_transactions"`
	// PageSize is the page size requested from paginated vendor APIs.
	PageSize int `toml:"page_size"`
}

// Config is the top-level TOML configuration file.
type Config struct {
	Refresh RefreshConfig `toml:"refresh"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Refresh.BalanceStaleness <= 0 {
		c.Refresh.BalanceStaleness = Duration(24 * time.Hour)
	}
	if c.Refresh.PriceStaleness <= 0 {
		c.Refresh.PriceStaleness = Duration(24 * time.Hour)
	}
	if c.Refresh.QuoteStaleness <= 0 {
		c.Refresh.QuoteStaleness = Duration(15 * time.Minute)
	}
	if c.Refresh.LookbackDays <= 0 {
		c.Refresh.LookbackDays = 7
	}
	if c.Refresh.MaxTransactions <= 0 {
		c.Refresh.MaxTransactions = 10000
	}
	if c.Refresh.PageSize <= 0 {
		c.Refresh.PageSize = 100
	}
}

// LoadConfig reads a TOML configuration file and fills in defaults.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot load config %q: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}
