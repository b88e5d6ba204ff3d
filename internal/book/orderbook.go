// Package book holds the venue's resting orders and net positions.
//
// The order book is deliberately simple: two arrival-ordered queues with no
// price ordering inside a side. Matching only ever looks at the head of each
// queue, so admission order is execution order. Orders are never mutated in
// place; they leave the book either consumed in full by a confirmed match or
// discarded when found expired at the head.
package book

import (
	"sync"

	"github.com/arbz/zeroday-engine/internal/model"
)

// Resting pairs an order with its settlement-layer id. IDs assigned by the
// authoritative ledger and locally assigned fallback ids share this field but
// occupy disjoint numeric ranges. Seq is the book-wide admission sequence
// number: lower Seq means admitted earlier, which decides maker priority.
type Resting struct {
	ID            uint64
	Seq           uint64
	Authoritative bool
	Order         model.Order
}

// OrderBook is two arrival-ordered sequences of resting orders.
type OrderBook struct {
	mu      sync.Mutex
	nextSeq uint64
	buys    []Resting
	sells   []Resting
}

// NewOrderBook creates an empty book.
func NewOrderBook() *OrderBook {
	return &OrderBook{}
}

// Admit appends the order to the queue matching its side and stamps it with
// the next admission sequence number.
func (b *OrderBook) Admit(r Resting) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSeq++
	r.Seq = b.nextSeq
	if r.Order.Side == model.Buy {
		b.buys = append(b.buys, r)
	} else {
		b.sells = append(b.sells, r)
	}
}

// Heads returns copies of the head order of each side. A nil return means
// that side is empty.
func (b *OrderBook) Heads() (buy, sell *Resting) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.buys) > 0 {
		h := b.buys[0]
		buy = &h
	}
	if len(b.sells) > 0 {
		h := b.sells[0]
		sell = &h
	}
	return buy, sell
}

// DropHead removes the head of one side if its id matches. Used to discard
// an order found expired at match time. Returns false when the head changed
// underneath the caller.
func (b *OrderBook) DropHead(side model.Side, id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := &b.sells
	if side == model.Buy {
		q = &b.buys
	}
	if len(*q) == 0 || (*q)[0].ID != id {
		return false
	}
	*q = (*q)[1:]
	return true
}

// PopMatched removes both heads after a confirmed settlement, but only if
// they are still the orders the match was computed from. Both sides are
// removed in full regardless of any size difference between them.
func (b *OrderBook) PopMatched(buyID, sellID uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buys) == 0 || len(b.sells) == 0 {
		return false
	}
	if b.buys[0].ID != buyID || b.sells[0].ID != sellID {
		return false
	}
	b.buys = b.buys[1:]
	b.sells = b.sells[1:]
	return true
}

// Depth returns the number of resting orders per side.
func (b *OrderBook) Depth() (buys, sells int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buys), len(b.sells)
}
