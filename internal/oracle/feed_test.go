package oracle

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestUpdate_SetsPrice(t *testing.T) {
	f := NewFeed(decimal.NewFromInt(100))

	snap := f.Update(decimal.NewFromInt(120))
	if !snap.Price.Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected 120, got %s", snap.Price)
	}
	if !f.Snapshot().Price.Equal(decimal.NewFromInt(120)) {
		t.Error("snapshot must reflect the update")
	}
}

func TestUpdate_TimestampNeverDecreases(t *testing.T) {
	f := NewFeed(decimal.NewFromInt(100))

	// Simulate a clock that runs backwards.
	times := []int64{100, 50, 75}
	i := 0
	f.now = func() int64 {
		ts := times[i]
		if i < len(times)-1 {
			i++
		}
		return ts
	}

	var prev int64
	for range times {
		snap := f.Update(decimal.NewFromInt(1))
		if snap.Ts < prev {
			t.Fatalf("timestamp decreased: %d -> %d", prev, snap.Ts)
		}
		prev = snap.Ts
	}
}

func TestSimulator_StaysInBand(t *testing.T) {
	f := NewFeed(decimal.NewFromInt(100))
	s := NewSimulator()

	dir := decimal.NewFromInt(1)
	prevTs := int64(0)
	for tick := uint64(0); tick < 1000; tick++ {
		dir = s.step(f, tick, dir)

		snap := f.Snapshot()
		if snap.Price.LessThan(s.Min) || snap.Price.GreaterThan(s.Max) {
			t.Fatalf("price %s escaped band [%s, %s]", snap.Price, s.Min, s.Max)
		}
		if snap.Ts <= prevTs-1 {
			t.Fatalf("timestamp not monotonic: %d after %d", snap.Ts, prevTs)
		}
		prevTs = snap.Ts
	}
}

func TestSimulator_MovesPrice(t *testing.T) {
	f := NewFeed(decimal.NewFromInt(100))
	s := NewSimulator()

	dir := decimal.NewFromInt(1)
	moved := false
	for tick := uint64(0); tick < 20; tick++ {
		dir = s.step(f, tick, dir)
		if !f.Snapshot().Price.Equal(decimal.NewFromInt(100)) {
			moved = true
		}
	}
	if !moved {
		t.Error("simulator never moved the price")
	}
}
