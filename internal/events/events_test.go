package events

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNew_PopulatesIDAndTime(t *testing.T) {
	e := New(TypeDeposit)
	if e.ID == "" {
		t.Error("expected non-empty id")
	}
	if e.At == 0 {
		t.Error("expected timestamp")
	}
	if e.Type != TypeDeposit {
		t.Errorf("expected deposit type, got %s", e.Type)
	}
}

func TestMemoryLog_AppendAndFilter(t *testing.T) {
	m := NewMemoryLog(0)
	ctx := context.Background()

	e1 := New(TypeDeposit)
	e1.Trader = "alice"
	e1.Amount = decimal.NewFromInt(100)
	m.Append(ctx, e1)

	e2 := New(TypeTrade)
	m.Append(ctx, e2)

	if len(m.Events()) != 2 {
		t.Fatalf("expected 2 events, got %d", len(m.Events()))
	}
	trades := m.OfType(TypeTrade)
	if len(trades) != 1 || trades[0].ID != e2.ID {
		t.Errorf("OfType mismatch: %+v", trades)
	}
}

func TestMemoryLog_RingEviction(t *testing.T) {
	m := NewMemoryLog(3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Append(ctx, New(TypeOracle))
	}
	if len(m.Events()) != 3 {
		t.Errorf("expected ring capped at 3, got %d", len(m.Events()))
	}
	if m.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", m.Dropped())
	}
}

func TestTee_FansOut(t *testing.T) {
	a := NewMemoryLog(0)
	b := NewMemoryLog(0)
	tee := Tee{a, b}

	tee.Append(context.Background(), New(TypeWithdraw))

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Error("tee must append to every sink")
	}
}

func TestFunc_Adapts(t *testing.T) {
	var got Event
	f := Func(func(_ context.Context, e Event) { got = e })
	e := New(TypeLiquidation)
	f.Append(context.Background(), e)
	if got.ID != e.ID {
		t.Error("func adapter must forward the event")
	}
}
