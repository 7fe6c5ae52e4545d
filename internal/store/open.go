package store

import (
	"context"
	"fmt"

	"github.com/xabinapal/dabrowser/internal/keyring"
)

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Open returns the store for backend at path. A non-nil secrets store wraps
// it in a SecretStore.
func Open(ctx context.Context, backend, path string, secrets keyring.Store, opts ...Option) (Store, error) {
	var s Store
	switch backend {
	case "", BackendJSON:
		s = NewJSONFileStore(path, opts...)
	case BackendSQLite:
		db, err := OpenSQLite(ctx, path, opts...)
		if err != nil {
			return nil, err
		}
		s = db
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}

	if secrets != nil {
		s = NewSecretStore(s, secrets, opts...)
	}
	return s, nil
}

// Forgetter is implemented by stores that keep per-profile secrets outside
// the profile records.
type Forgetter interface {
	Forget(id string) error
}
