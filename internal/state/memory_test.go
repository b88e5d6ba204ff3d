package state

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

func TestMemoryStore_AccountRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.GetAccount(ctx, "alice")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	acc := model.Account{
		Collateral:   decimal.NewFromInt(1000),
		LockedMargin: decimal.NewFromInt(250),
	}
	if err := s.PutAccount(ctx, "alice", acc); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := s.GetAccount(ctx, "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Collateral.Equal(acc.Collateral) || !got.LockedMargin.Equal(acc.LockedMargin) {
		t.Errorf("round trip mismatch: %+v", got)
	}

	all, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 account, got %d", len(all))
	}
}

func TestMemoryStore_PositionRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	pos := model.Position{
		Trader:     "bob",
		EntryPrice: decimal.NewFromInt(100),
		Qty:        decimal.NewFromInt(-50),
		Leverage:   10,
		Margin:     decimal.NewFromInt(500),
	}
	if err := s.PutPosition(ctx, "bob", pos); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetPosition(ctx, "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Qty.Equal(pos.Qty) || got.Leverage != 10 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestMemoryStore_NonceDefaultsToZero(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	nonce, err := s.GetNonce(ctx, "carol")
	if err != nil || nonce != 0 {
		t.Fatalf("expected nonce 0, got %d (%v)", nonce, err)
	}
	if err := s.PutNonce(ctx, "carol", 7); err != nil {
		t.Fatalf("put: %v", err)
	}
	nonce, _ = s.GetNonce(ctx, "carol")
	if nonce != 7 {
		t.Errorf("expected nonce 7, got %d", nonce)
	}
}
