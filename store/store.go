package store

import (
	"context"
	"errors"

	"github.com/rustyeddy/tradesync/account"
)

// ErrNotFound is returned when no snapshot fragment is stored for an account.
var ErrNotFound = errors.New("store: account not found")

// Store is the durable tier of the cache hierarchy, keyed by account.
// Writes replace whatever was stored for that account before.
type Store interface {
	ReadByAccount(ctx context.Context, acct string) (*account.Snapshot, error)
	WriteAll(ctx context.Context, acct string, snap *account.Snapshot) error
	Clear(ctx context.Context, acct string) error
	Close() error
}
