package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/arbz/zeroday-engine/internal/model"
)

// d is a test helper for creating decimals from int64.
func d(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// --- RequiredMargin ---

func TestRequiredMargin_TenXLeverage(t *testing.T) {
	got := RequiredMargin(d(1000), d(100), 10)
	if !got.Equal(d(10_000)) {
		t.Errorf("expected 10000, got %s", got)
	}
}

func TestRequiredMargin_LeverageOneIsNotional(t *testing.T) {
	got := RequiredMargin(d(7), d(13), 1)
	if !got.Equal(d(91)) {
		t.Errorf("required_margin(q,p,1) must equal |q|*|p|, got %s", got)
	}
}

func TestRequiredMargin_ZeroLeverageClampedToOne(t *testing.T) {
	got := RequiredMargin(d(50), d(100), 0)
	if !got.Equal(d(5000)) {
		t.Errorf("leverage 0 must behave as 1, got %s", got)
	}
}

func TestRequiredMargin_MonotonicallyDecreasingInLeverage(t *testing.T) {
	prev := RequiredMargin(d(1000), d(100), 1)
	for lev := int64(2); lev <= 50; lev++ {
		cur := RequiredMargin(d(1000), d(100), lev)
		if cur.GreaterThan(prev) {
			t.Fatalf("margin increased from %s to %s at leverage %d", prev, cur, lev)
		}
		prev = cur
	}
}

func TestRequiredMargin_TruncatesTowardZero(t *testing.T) {
	// 10 * 10 / 3 = 33.33.. -> 33
	got := RequiredMargin(d(10), d(10), 3)
	if !got.Equal(d(33)) {
		t.Errorf("expected truncation to 33, got %s", got)
	}
}

func TestRequiredMargin_AbsoluteValues(t *testing.T) {
	got := RequiredMargin(d(-1000), d(-100), 10)
	if !got.Equal(d(10_000)) {
		t.Errorf("negative qty/price must not flip sign, got %s", got)
	}
}

// --- UnrealizedPnL ---

func TestUnrealizedPnL_LongGain(t *testing.T) {
	got := UnrealizedPnL(d(100), d(1000), d(110))
	if !got.Equal(d(10_000)) {
		t.Errorf("expected 10000, got %s", got)
	}
}

func TestUnrealizedPnL_Antisymmetric(t *testing.T) {
	long := UnrealizedPnL(d(100), d(1000), d(93))
	short := UnrealizedPnL(d(100), d(-1000), d(93))
	if !long.Equal(short.Neg()) {
		t.Errorf("pnl must negate for the flipped short: long=%s short=%s", long, short)
	}
}

func TestUnrealizedPnL_ShortGainOnPriceDrop(t *testing.T) {
	got := UnrealizedPnL(d(100), d(-10), d(90))
	if !got.Equal(d(100)) {
		t.Errorf("short of 10 gaining 10/unit should be +100, got %s", got)
	}
}

// --- HealthBps ---

func TestHealthBps_EvenEquity(t *testing.T) {
	// collateral 20000, locked 10000, pnl 0 -> equity 10000 -> 10000 bps.
	acc := model.Account{Collateral: d(20_000), LockedMargin: d(10_000)}
	health, atRisk := HealthBps(acc, decimal.Zero)
	if !atRisk {
		t.Fatal("locked margin > 0 must be at risk")
	}
	if !health.Equal(d(10_000)) {
		t.Errorf("expected 10000 bps (health ratio 1.0), got %s", health)
	}
}

func TestHealthBps_WithProfit(t *testing.T) {
	// entry 100, qty 1000, mark 110 -> pnl 10000 -> equity 20000 -> 20000 bps.
	acc := model.Account{Collateral: d(20_000), LockedMargin: d(10_000)}
	pnl := UnrealizedPnL(d(100), d(1000), d(110))
	health, _ := HealthBps(acc, pnl)
	if !health.Equal(d(20_000)) {
		t.Errorf("expected 20000 bps, got %s", health)
	}
}

func TestHealthBps_NoLockedMarginIsInfinite(t *testing.T) {
	acc := model.Account{Collateral: d(500), LockedMargin: decimal.Zero}
	_, atRisk := HealthBps(acc, decimal.Zero)
	if atRisk {
		t.Error("no locked margin must report not-at-risk (infinite health)")
	}
}

func TestHealthBps_ClampedAtZero(t *testing.T) {
	acc := model.Account{Collateral: d(10_000), LockedMargin: d(10_000)}
	health, atRisk := HealthBps(acc, d(-50_000))
	if !atRisk {
		t.Fatal("expected at-risk account")
	}
	if !health.IsZero() {
		t.Errorf("negative equity must clamp health to 0, got %s", health)
	}
}

func TestHealthBps_FloorRounding(t *testing.T) {
	// equity 9999, locked 30000 -> 9999*10000/30000 = 3333
	acc := model.Account{Collateral: d(39_999), LockedMargin: d(30_000)}
	health, _ := HealthBps(acc, decimal.Zero)
	if !health.Equal(d(3333)) {
		t.Errorf("expected floor to 3333 bps, got %s", health)
	}
}

// --- Engine ---

func TestEngine_FeesDefaults(t *testing.T) {
	e := NewEngine()
	// notional = 100 * 500 = 50000 -> maker 10, taker 25.
	maker, taker := e.Fees(d(100), d(500))
	if !maker.Equal(d(10)) {
		t.Errorf("maker fee: expected 10, got %s", maker)
	}
	if !taker.Equal(d(25)) {
		t.Errorf("taker fee: expected 25, got %s", taker)
	}
}

func TestEngine_FeesTruncate(t *testing.T) {
	e := NewEngine()
	// notional = 100*9 = 900 -> maker 900*2/10000 = 0.18 -> 0.
	maker, _ := e.Fees(d(100), d(9))
	if !maker.IsZero() {
		t.Errorf("sub-unit fee must truncate to 0, got %s", maker)
	}
}

func TestEngine_Liquidatable(t *testing.T) {
	e := NewEngine()
	acc := model.Account{Collateral: d(10_000), LockedMargin: d(10_000)}

	// pnl +4999 -> equity 4999 -> 4999 bps < 5000: liquidatable.
	if !e.Liquidatable(acc, d(4999)) {
		t.Error("health 4999 bps must be liquidatable at 5000 threshold")
	}
	// pnl +5000 -> equity 5000 -> exactly 5000 bps: not liquidatable.
	if e.Liquidatable(acc, d(5000)) {
		t.Error("health equal to threshold must not be liquidatable")
	}
	// No margin at risk: never liquidatable.
	flat := model.Account{Collateral: d(-100), LockedMargin: decimal.Zero}
	if e.Liquidatable(flat, decimal.Zero) {
		t.Error("account with no locked margin must never be liquidatable")
	}
}

// --- Matching math ---

func TestMidPrice(t *testing.T) {
	got := MidPrice(d(102), d(98))
	if !got.Equal(d(100)) {
		t.Errorf("midpoint of 102/98 must be 100, got %s", got)
	}
}

func TestMinQty(t *testing.T) {
	got := MinQty(d(50), d(80))
	if !got.Equal(d(50)) {
		t.Errorf("expected 50, got %s", got)
	}
	got = MinQty(d(-80), d(50))
	if !got.Equal(d(50)) {
		t.Errorf("expected magnitude comparison, got %s", got)
	}
}
