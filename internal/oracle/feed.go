// Package oracle holds the venue's mark price.
//
// The feed keeps exactly one snapshot: the latest price, its confidence, and
// a monotonically non-decreasing timestamp. Production updates come from a
// trusted operator; for development the feed can run a deterministic drift
// simulator that mimics a live price stream.
package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

// Feed is the single-product mark price feed.
type Feed struct {
	mu     sync.Mutex
	latest model.OraclePrice
	now    func() int64
}

// NewFeed creates a feed seeded with the given starting price.
func NewFeed(start decimal.Decimal) *Feed {
	return &Feed{
		latest: model.OraclePrice{Price: start},
		now:    func() int64 { return time.Now().Unix() },
	}
}

// Update replaces the mark price. The stored timestamp never decreases even
// if the wall clock does.
func (f *Feed) Update(price decimal.Decimal) model.OraclePrice {
	f.mu.Lock()
	defer f.mu.Unlock()

	ts := f.now()
	if ts < f.latest.Ts {
		ts = f.latest.Ts
	}
	f.latest = model.OraclePrice{Price: price, Confidence: f.latest.Confidence, Ts: ts}
	return f.latest
}

// Snapshot returns the current mark price atomically. Liquidation sweeps
// take one snapshot at sweep start and evaluate every trader against it.
func (f *Feed) Snapshot() model.OraclePrice {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest
}

// Simulator drifts the mark price inside a band to mimic a live feed:
// each tick steps the price by 1..3 in the current direction, and the
// direction flips every seventh tick or when the price hits a band edge.
type Simulator struct {
	Min      decimal.Decimal
	Max      decimal.Decimal
	Interval time.Duration
}

// NewSimulator returns the default [50, 150] band stepping every 1.5s.
func NewSimulator() *Simulator {
	return &Simulator{
		Min:      decimal.NewFromInt(50),
		Max:      decimal.NewFromInt(150),
		Interval: 1500 * time.Millisecond,
	}
}

// Run drives the feed until the context is cancelled. Call in a goroutine.
func (s *Simulator) Run(ctx context.Context, f *Feed) {
	dir := decimal.NewFromInt(1)
	var tick uint64

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dir = s.step(f, tick, dir)
			tick++
		}
	}
}

// step advances the feed one tick and returns the direction for the next
// tick.
func (s *Simulator) step(f *Feed, tick uint64, dir decimal.Decimal) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()

	delta := decimal.NewFromInt(1 + int64(tick%3))
	next := f.latest.Price.Add(dir.Mul(delta))
	if next.LessThan(s.Min) {
		next = s.Min
	}
	if next.GreaterThan(s.Max) {
		next = s.Max
	}
	f.latest.Price = next
	f.latest.Ts++
	if tick%7 == 0 || next.Equal(s.Min) || next.Equal(s.Max) {
		dir = dir.Neg()
	}
	return dir
}
