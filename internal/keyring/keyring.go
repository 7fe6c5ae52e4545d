// Package keyring keeps proxy passwords in the OS keyring, keyed by profile id.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/xabinapal/dabrowser/internal/utils"
)

const (
	// Service is the keyring service every secret is stored under.
	// The account is the profile id.
	Service = "DaBrowser proxy credentials"

	// TestKeyringEnvVar, when set to a directory path, makes DefaultStore use
	// a file-based keyring. It is meant for tests only.
	TestKeyringEnvVar = "DABROWSER_TEST_KEYRING_DIR"

	probeAccount = "__availability_check__"
)

var (
	// ErrKeyringUnavailable is returned when no secure keyring is available.
	ErrKeyringUnavailable = errors.New("secure keyring is not available on this system")
	// ErrSecretNotFound is returned when no secret is stored for a profile.
	ErrSecretNotFound = errors.New("secret not found in keyring")
	// ErrKeyringAccessDenied is returned when access to the keyring is denied.
	ErrKeyringAccessDenied = errors.New("access to keyring denied")
	// ErrEmptyKey is returned for an empty profile id.
	ErrEmptyKey = errors.New("keyring key cannot be empty")
)

// Store is a secret storage backend.
type Store interface {
	// Set stores a secret for the given profile id.
	Set(key, secret string) error
	// Get retrieves the secret for the given profile id.
	Get(key string) (string, error)
	// Delete removes the secret for the given profile id. Missing secrets are not an error.
	Delete(key string) error
	// IsAvailable checks if the backend can be used.
	IsAvailable() error
}

// DefaultStore returns the OS keyring, or a file-based store when
// DABROWSER_TEST_KEYRING_DIR is set.
func DefaultStore() Store {
	if testDir := os.Getenv(TestKeyringEnvVar); testDir != "" {
		if fileStore, err := NewFileStore(testDir); err == nil {
			return fileStore
		}
	}
	return &OSStore{}
}

// OSStore implements Store on top of the platform keyring.
type OSStore struct{}

// IsAvailable probes the keyring with a lookup of a key that never exists.
func (k *OSStore) IsAvailable() error {
	_, err := gokeyring.Get(Service, probeAccount)
	if err == nil || errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}

	errStr := err.Error()
	switch runtime.GOOS {
	case "linux":
		if utils.ContainsAny(errStr, "secret service", "dbus", "org.freedesktop.secrets") {
			return fmt.Errorf("%w: D-Bus secret service not available - please install and start gnome-keyring, kwallet, or another secret service provider", ErrKeyringUnavailable)
		}
	case "darwin":
		if utils.ContainsAny(errStr, "keychain", "security") {
			return fmt.Errorf("%w: macOS Keychain not accessible", ErrKeyringUnavailable)
		}
	case "windows":
		if utils.ContainsAny(errStr, "credential", "wincred") {
			return fmt.Errorf("%w: Windows Credential Manager not accessible", ErrKeyringUnavailable)
		}
	}

	// Operations report anything else with better context.
	return nil
}

// Set stores a proxy password.
func (k *OSStore) Set(key, secret string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := gokeyring.Set(Service, key, secret); err != nil {
		return wrapKeyringError(err, "failed to store secret")
	}
	return nil
}

// Get retrieves a proxy password.
func (k *OSStore) Get(key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	secret, err := gokeyring.Get(Service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", wrapKeyringError(err, "failed to retrieve secret")
	}
	return secret, nil
}

// Delete removes a proxy password.
func (k *OSStore) Delete(key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	err := gokeyring.Delete(Service, key)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return wrapKeyringError(err, "failed to delete secret")
	}
	return nil
}

// wrapKeyringError classifies a backend error.
func wrapKeyringError(err error, context string) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()
	switch {
	case utils.ContainsAny(errStr, "denied", "permission", "not allowed", "unauthorized"):
		return fmt.Errorf("%w: %s: %v", ErrKeyringAccessDenied, context, err)
	case utils.ContainsAny(errStr, "no keyring", "unavailable", "secret service"):
		return fmt.Errorf("%w: %s: %v", ErrKeyringUnavailable, context, err)
	}
	return fmt.Errorf("%s: %w", context, err)
}
