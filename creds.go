package ledgersync

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// CredentialStore provides secrets (API keys, captured session material)
// to synchronizers. Implementations may be read-only, e.g. when backed by
// an agent or an environment the engine cannot write to.
type CredentialStore interface {
	// Get returns the secret stored under key, or an error if absent.
	Get(key string) (string, error)
	// Set stores a secret. Implementations that do not support writes
	// return an error; check SupportsWrite first.
	Set(key, secret string) error
	// SupportsWrite reports whether Set can succeed at all.
	SupportsWrite() bool
}

// EnvCredentials reads secrets from the environment. The key "mybank.token"
// maps to the variable LSYNC_MYBANK_TOKEN.
type EnvCredentials struct{}

var _ CredentialStore = EnvCredentials{}

func envKey(key string) string {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r - 'a' + 'A'
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, key)
	return "LSYNC_" + mapped
}

func (EnvCredentials) Get(key string) (string, error) {
	v, ok := os.LookupEnv(envKey(key))
	if !ok {
		return "", fmt.Errorf("no credential for %q: %s is not set", key, envKey(key))
	}
	return v, nil
}

func (EnvCredentials) Set(string, string) error {
	return errors.New("environment credentials are read only")
}

func (EnvCredentials) SupportsWrite() bool { return false }
