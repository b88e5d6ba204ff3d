// Package settle propagates confirmed venue actions to the authoritative
// ledger and keeps the off-chain mirror consistent with it.
//
// The chain contract is the system of record; the mirror exists for
// low-latency quoting. Propagation is at-least-once: the venue removes
// matched orders from its book only after a propagation call succeeds, and
// retries failed matches on the next sweep. The choice between the real
// networked propagator and the degraded local-only one is made at startup
// through this one interface, never by build tags.
package settle

import (
	"context"
	"sync/atomic"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

// LocalIDBase is the floor of the locally assigned order-id namespace.
// Authoritative ids are small sequential counters starting at 1, so local
// fallback ids above this base can never collide with them.
const LocalIDBase uint64 = 1 << 32

// Propagator is the capability the venue needs from the authoritative
// ledger. A returned error is transient: the caller keeps its local state
// and retries.
type Propagator interface {
	// Authoritative reports whether this propagator reaches a real
	// system of record. False means degraded local-only mode, which is
	// surfaced to callers rather than silently substituted.
	Authoritative() bool

	// PlaceOrder registers the order and returns the authoritative order
	// id and a transaction reference.
	PlaceOrder(ctx context.Context, order model.Order) (id uint64, txRef string, err error)

	// Match settles a cross between two resting orders at the given
	// price. The call is idempotent on the ledger side: the order pair
	// can settle at most once.
	Match(ctx context.Context, buyID, sellID uint64, price decimal.Decimal) (txRef string, err error)

	// Liquidate force-closes a trader's position at the mark price.
	Liquidate(ctx context.Context, trader string, mark decimal.Decimal) (txRef string, err error)

	// UpdateOracle pushes a mark price to the authoritative feed.
	UpdateOracle(ctx context.Context, price decimal.Decimal) (txRef string, err error)
}

// LocalSequencer is the degraded local-only propagator. It assigns
// monotonically increasing ids from the reserved local namespace and
// acknowledges every call immediately.
type LocalSequencer struct {
	next atomic.Uint64
}

// NewLocalSequencer creates a sequencer starting at LocalIDBase.
func NewLocalSequencer() *LocalSequencer {
	s := &LocalSequencer{}
	s.next.Store(LocalIDBase)
	return s
}

func (s *LocalSequencer) Authoritative() bool { return false }

func (s *LocalSequencer) PlaceOrder(_ context.Context, _ model.Order) (uint64, string, error) {
	return s.next.Add(1), "", nil
}

func (s *LocalSequencer) Match(context.Context, uint64, uint64, decimal.Decimal) (string, error) {
	return "", nil
}

func (s *LocalSequencer) Liquidate(context.Context, string, decimal.Decimal) (string, error) {
	return "", nil
}

func (s *LocalSequencer) UpdateOracle(context.Context, decimal.Decimal) (string, error) {
	return "", nil
}

// IsLocalID reports whether an order id came from the local fallback
// namespace rather than the authoritative ledger.
func IsLocalID(id uint64) bool {
	return id >= LocalIDBase
}
