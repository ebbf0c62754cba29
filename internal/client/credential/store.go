// Package credential persists the bearer token between client runs.
//
// The slot holds at most one token under the fixed name Key. FileStore keeps
// it in a local JSON document; PostgresStore keeps it in a shared table.
package credential

import (
	"context"
	"errors"
)

// Key is the canonical name of the persisted bearer token.
const Key = "access_token"

// ErrNotFound is returned by Load when no token is persisted.
var ErrNotFound = errors.New("credential not found")

// Store is the durable credential slot.
type Store interface {
	// Load returns the persisted token or ErrNotFound.
	Load(ctx context.Context) (string, error)
	// Save replaces the persisted token.
	Save(ctx context.Context, token string) error
	// Delete purges the persisted token. Deleting an empty slot is not an error.
	Delete(ctx context.Context) error
}
