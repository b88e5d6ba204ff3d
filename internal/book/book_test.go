package book

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
	"github.com/arbz/zeroday-engine/internal/state"
)

func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func resting(id uint64, side model.Side, price, qty int64) Resting {
	return Resting{
		ID: id,
		Order: model.Order{
			Trader: "t",
			Side:   side,
			Price:  d(price),
			Qty:    d(qty),
		},
	}
}

// --- OrderBook ---

func TestOrderBook_FIFOHeads(t *testing.T) {
	b := NewOrderBook()
	b.Admit(resting(1, model.Buy, 100, 10))
	b.Admit(resting(2, model.Buy, 105, 10)) // better price, but arrival order wins
	b.Admit(resting(3, model.Sell, 99, 10))

	buy, sell := b.Heads()
	if buy == nil || buy.ID != 1 {
		t.Fatalf("buy head must be the first admitted, got %+v", buy)
	}
	if sell == nil || sell.ID != 3 {
		t.Fatalf("sell head mismatch: %+v", sell)
	}
}

func TestOrderBook_HeadsEmptySides(t *testing.T) {
	b := NewOrderBook()
	buy, sell := b.Heads()
	if buy != nil || sell != nil {
		t.Error("empty book must return nil heads")
	}
}

func TestOrderBook_PopMatchedRemovesBothInFull(t *testing.T) {
	b := NewOrderBook()
	b.Admit(resting(1, model.Buy, 102, 50))
	b.Admit(resting(2, model.Sell, 98, 80))

	if !b.PopMatched(1, 2) {
		t.Fatal("expected pop to succeed")
	}
	buys, sells := b.Depth()
	if buys != 0 || sells != 0 {
		t.Errorf("both heads must be removed in full, depth %d/%d", buys, sells)
	}
}

func TestOrderBook_PopMatchedGuardsStaleIDs(t *testing.T) {
	b := NewOrderBook()
	b.Admit(resting(1, model.Buy, 100, 10))
	b.Admit(resting(2, model.Sell, 100, 10))

	if b.PopMatched(7, 2) {
		t.Error("pop with stale buy id must fail")
	}
	buys, sells := b.Depth()
	if buys != 1 || sells != 1 {
		t.Errorf("failed pop must leave book intact, depth %d/%d", buys, sells)
	}
}

func TestOrderBook_DropHead(t *testing.T) {
	b := NewOrderBook()
	b.Admit(resting(1, model.Buy, 100, 10))
	b.Admit(resting(2, model.Buy, 100, 10))

	if !b.DropHead(model.Buy, 1) {
		t.Fatal("drop head should succeed")
	}
	buy, _ := b.Heads()
	if buy.ID != 2 {
		t.Errorf("next order should surface, got id %d", buy.ID)
	}
	if b.DropHead(model.Buy, 1) {
		t.Error("dropping an id no longer at the head must fail")
	}
}

// --- PositionBook ---

func newPositions() *PositionBook {
	return NewPositionBook(state.NewMemoryStore())
}

func TestApplyFill_OpensAtFillPrice(t *testing.T) {
	p := newPositions()
	ctx := context.Background()

	pos, err := p.ApplyFill(ctx, "alice", d(100), d(50), 10, 1000, 2000)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !pos.Qty.Equal(d(100)) || !pos.EntryPrice.Equal(d(50)) {
		t.Errorf("expected qty 100 @ 50, got %s @ %s", pos.Qty, pos.EntryPrice)
	}
	if pos.OpenedTs != 1000 {
		t.Errorf("opened_ts should be set on first fill, got %d", pos.OpenedTs)
	}
}

func TestApplyFill_IncreasingIsNotionalWeighted(t *testing.T) {
	p := newPositions()
	ctx := context.Background()

	p.ApplyFill(ctx, "alice", d(100), d(50), 10, 0, 0)
	pos, _ := p.ApplyFill(ctx, "alice", d(100), d(70), 10, 0, 0)

	// (100*50 + 100*70) / 200 = 60
	if !pos.EntryPrice.Equal(d(60)) {
		t.Errorf("expected weighted entry 60, got %s", pos.EntryPrice)
	}
	if !pos.Qty.Equal(d(200)) {
		t.Errorf("expected qty 200, got %s", pos.Qty)
	}
}

func TestApplyFill_ReducingKeepsEntry(t *testing.T) {
	p := newPositions()
	ctx := context.Background()

	p.ApplyFill(ctx, "alice", d(100), d(50), 10, 0, 0)
	pos, _ := p.ApplyFill(ctx, "alice", d(-40), d(90), 10, 0, 0)

	if !pos.EntryPrice.Equal(d(50)) {
		t.Errorf("reducing fill must not move entry, got %s", pos.EntryPrice)
	}
	if !pos.Qty.Equal(d(60)) {
		t.Errorf("expected qty 60, got %s", pos.Qty)
	}
}

func TestApplyFill_FlatResetsEntry(t *testing.T) {
	p := newPositions()
	ctx := context.Background()

	p.ApplyFill(ctx, "alice", d(100), d(50), 10, 0, 0)
	pos, _ := p.ApplyFill(ctx, "alice", d(-100), d(90), 10, 0, 0)

	if !pos.Flat() {
		t.Fatalf("expected flat position, qty %s", pos.Qty)
	}
	if !pos.EntryPrice.IsZero() {
		t.Errorf("flat position must reset entry to 0, got %s", pos.EntryPrice)
	}
}

func TestApplyFill_FlipThroughZero(t *testing.T) {
	p := newPositions()
	ctx := context.Background()

	p.ApplyFill(ctx, "alice", d(100), d(50), 10, 0, 0)
	pos, _ := p.ApplyFill(ctx, "alice", d(-150), d(90), 10, 0, 0)

	if !pos.Qty.Equal(d(-50)) {
		t.Fatalf("expected short 50 after flip, got %s", pos.Qty)
	}
	if !pos.EntryPrice.Equal(d(90)) {
		t.Errorf("residual must open at the fill price, got %s", pos.EntryPrice)
	}
}

func TestApplyFill_ShortSideSymmetry(t *testing.T) {
	p := newPositions()
	ctx := context.Background()

	p.ApplyFill(ctx, "bob", d(-100), d(50), 5, 0, 0)
	pos, _ := p.ApplyFill(ctx, "bob", d(-100), d(70), 5, 0, 0)

	if !pos.Qty.Equal(d(-200)) {
		t.Fatalf("expected qty -200, got %s", pos.Qty)
	}
	if !pos.EntryPrice.Equal(d(60)) {
		t.Errorf("short weighted entry should be 60, got %s", pos.EntryPrice)
	}
}

func TestClose_ZeroesButKeepsRecord(t *testing.T) {
	p := newPositions()
	ctx := context.Background()

	p.ApplyFill(ctx, "alice", d(100), d(50), 10, 0, 0)
	before, err := p.Close(ctx, "alice")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !before.Qty.Equal(d(100)) {
		t.Errorf("close must report the pre-close position, got %s", before.Qty)
	}

	pos, _ := p.Get(ctx, "alice")
	if !pos.Flat() || !pos.EntryPrice.IsZero() {
		t.Errorf("closed position must be dormant: %+v", pos)
	}

	all, _ := p.All(ctx)
	if _, ok := all["alice"]; !ok {
		t.Error("dormant position should remain stored, not deleted")
	}
}

func TestOrderBook_AdmissionSequenceOrdersMakers(t *testing.T) {
	b := NewOrderBook()
	b.Admit(resting(7, model.Sell, 100, 10))
	b.Admit(resting(3, model.Buy, 100, 10)) // lower id, later arrival

	buy, sell := b.Heads()
	if buy == nil || sell == nil {
		t.Fatal("both heads expected")
	}
	if !(sell.Seq < buy.Seq) {
		t.Errorf("sell admitted first must carry the lower seq: sell %d, buy %d", sell.Seq, buy.Seq)
	}
}
