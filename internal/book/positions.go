package book

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
	"github.com/arbz/zeroday-engine/internal/state"
)

// PositionBook holds one net signed position per trader. Fills and
// liquidations are the only mutations, each applied as a single
// read-modify-write under the book's mutex.
type PositionBook struct {
	mu sync.Mutex
	st state.Store
}

// NewPositionBook creates a position book backed by the given store.
func NewPositionBook(st state.Store) *PositionBook {
	return &PositionBook{st: st}
}

func (p *PositionBook) position(ctx context.Context, trader string) (model.Position, error) {
	pos, err := p.st.GetPosition(ctx, trader)
	if errors.Is(err, state.ErrNotFound) {
		return model.Position{
			Trader:     trader,
			EntryPrice: decimal.Zero,
			Qty:        decimal.Zero,
			Margin:     decimal.Zero,
		}, nil
	}
	return pos, err
}

// ApplyFill merges a fill into the trader's net position. delta is signed
// (+qty for a buy fill, -qty for a sell fill).
//
// Entry-price transitions:
//   - flat before: entry = fill price
//   - increasing |qty| in the same direction: entry becomes the
//     notional-weighted average of old and new
//   - reducing without crossing zero: entry unchanged
//   - crossing through zero: the residual opens at the fill price
//   - ending flat: entry resets to 0 (the chosen consistent policy)
func (p *PositionBook) ApplyFill(ctx context.Context, trader string, delta, price decimal.Decimal, leverage, now, expiry int64) (model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, err := p.position(ctx, trader)
	if err != nil {
		return model.Position{}, err
	}

	oldQty := pos.Qty
	newQty := oldQty.Add(delta)

	switch {
	case newQty.IsZero():
		pos.EntryPrice = decimal.Zero
	case oldQty.IsZero():
		pos.EntryPrice = price
		pos.OpenedTs = now
	case oldQty.Sign() == delta.Sign():
		// Increasing fill: notional-weighted average entry.
		oldNotional := pos.EntryPrice.Mul(oldQty.Abs())
		addNotional := price.Mul(delta.Abs())
		pos.EntryPrice = oldNotional.Add(addNotional).Div(newQty.Abs())
	case oldQty.Sign() != newQty.Sign():
		// Reduced through zero: residual is a fresh position at the
		// fill price.
		pos.EntryPrice = price
		pos.OpenedTs = now
	default:
		// Reducing fill: entry price unchanged.
	}

	pos.Qty = newQty
	pos.Leverage = leverage
	pos.ExpiryTs = expiry

	if err := p.st.PutPosition(ctx, trader, pos); err != nil {
		return model.Position{}, err
	}
	return pos, nil
}

// Close zeroes a trader's position (liquidation). The position record stays
// dormant rather than being deleted. Returns the position as it was before
// closing.
func (p *PositionBook) Close(ctx context.Context, trader string) (model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, err := p.position(ctx, trader)
	if err != nil {
		return model.Position{}, err
	}
	before := pos

	pos.Qty = decimal.Zero
	pos.EntryPrice = decimal.Zero
	pos.Margin = decimal.Zero
	if err := p.st.PutPosition(ctx, trader, pos); err != nil {
		return model.Position{}, err
	}
	return before, nil
}

// Get returns a copy of the trader's position (a flat zero position when
// none is stored).
func (p *PositionBook) Get(ctx context.Context, trader string) (model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position(ctx, trader)
}

// All returns a copy of every stored position keyed by trader.
func (p *PositionBook) All(ctx context.Context) (map[string]model.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.st.ListPositions(ctx)
}
