package settle

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

func TestLocalSequencer_NotAuthoritative(t *testing.T) {
	s := NewLocalSequencer()
	if s.Authoritative() {
		t.Error("local sequencer must signal degraded mode")
	}
}

func TestLocalSequencer_IDsAreMonotonicAndNamespaced(t *testing.T) {
	s := NewLocalSequencer()
	ctx := context.Background()

	var prev uint64
	for i := 0; i < 100; i++ {
		id, _, err := s.PlaceOrder(ctx, model.Order{Side: model.Buy})
		if err != nil {
			t.Fatalf("place: %v", err)
		}
		if !IsLocalID(id) {
			t.Fatalf("id %d escaped the local namespace", id)
		}
		if id <= prev {
			t.Fatalf("ids must strictly increase: %d after %d", id, prev)
		}
		prev = id
	}
}

func TestIsLocalID_AuthoritativeRangeIsDisjoint(t *testing.T) {
	// The contract assigns small sequential ids starting at 1.
	for _, id := range []uint64{1, 2, 1000, LocalIDBase - 1} {
		if IsLocalID(id) {
			t.Errorf("id %d wrongly classified as local", id)
		}
	}
	if !IsLocalID(LocalIDBase + 1) {
		t.Error("ids above the base must be local")
	}
}

func TestLocalSequencer_AcknowledgesSettlementCalls(t *testing.T) {
	s := NewLocalSequencer()
	ctx := context.Background()

	if _, err := s.Match(ctx, 1, 2, decimal.NewFromInt(100)); err != nil {
		t.Errorf("local match must succeed: %v", err)
	}
	if _, err := s.Liquidate(ctx, "alice", decimal.NewFromInt(90)); err != nil {
		t.Errorf("local liquidate must succeed: %v", err)
	}
	if _, err := s.UpdateOracle(ctx, decimal.NewFromInt(101)); err != nil {
		t.Errorf("local oracle update must succeed: %v", err)
	}
}

func TestEthConfig_Configured(t *testing.T) {
	if (EthConfig{}).Configured() {
		t.Error("empty config must not be considered configured")
	}
	cfg := EthConfig{RPCURL: "http://localhost:8545", ContractAddress: "0x01", PrivateKey: "ab"}
	if !cfg.Configured() {
		t.Error("full config must be considered configured")
	}
}
