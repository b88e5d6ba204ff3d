// Package state defines the key-value persistence interface backing the
// venue's accounts, positions, and request nonces.
//
// The venue mirror runs on MemoryStore; PostgresStore is the durable
// variant and CachedStore wraps either with a Redis read-through cache.
// The authoritative-vs-mirror distinction is two interchangeable
// implementations of this one interface.
package state

import (
	"context"
	"errors"

	"github.com/arbz/zeroday-engine/internal/model"
)

// ErrNotFound is returned when a trader has no record of the requested kind.
var ErrNotFound = errors.New("state: not found")

// Store is the persistence interface for per-trader venue state.
// Implementations must be safe for concurrent use; read-modify-write cycles
// are serialized by the owning component (ledger, position book), not here.
type Store interface {
	// --- Accounts ---

	// GetAccount returns a trader's account, or a zero account and
	// ErrNotFound when none exists.
	GetAccount(ctx context.Context, trader string) (model.Account, error)

	// PutAccount inserts or replaces a trader's account.
	PutAccount(ctx context.Context, trader string, acc model.Account) error

	// ListAccounts returns every stored account keyed by trader.
	ListAccounts(ctx context.Context) (map[string]model.Account, error)

	// --- Positions ---

	// GetPosition returns a trader's position, or ErrNotFound.
	GetPosition(ctx context.Context, trader string) (model.Position, error)

	// PutPosition inserts or replaces a trader's position.
	PutPosition(ctx context.Context, trader string, pos model.Position) error

	// ListPositions returns every stored position keyed by trader.
	ListPositions(ctx context.Context) (map[string]model.Position, error)

	// --- Request nonces ---

	// GetNonce returns a trader's current nonce; missing traders are 0.
	GetNonce(ctx context.Context, trader string) (uint64, error)

	// PutNonce stores a trader's nonce.
	PutNonce(ctx context.Context, trader string, nonce uint64) error
}
