package margin

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/George-Gr/Trade-X-Pro-Global-sub004/internal/model"
)

// d is a test helper for creating decimals from float64.
func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// --- Required ---

func TestRequired_Basic(t *testing.T) {
	got, err := Required(d(1), d(50000), d(5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d(10000)) {
		t.Errorf("expected 10000, got %s", got)
	}
}

func TestRequired_NegativeSizeUsesAbs(t *testing.T) {
	got, err := Required(d(-2), d(100), d(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d(20)) {
		t.Errorf("expected 20, got %s", got)
	}
}

func TestRequired_InvalidLeverage(t *testing.T) {
	if _, err := Required(d(1), d(100), d(0)); !errors.Is(err, ErrInvalidLeverage) {
		t.Errorf("expected ErrInvalidLeverage for leverage=0, got %v", err)
	}
	if _, err := Required(d(1), d(100), d(-5)); !errors.Is(err, ErrInvalidLeverage) {
		t.Errorf("expected ErrInvalidLeverage for leverage=-5, got %v", err)
	}
}

func TestRequired_InvalidPrice(t *testing.T) {
	if _, err := Required(d(1), d(0), d(5)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice for price=0, got %v", err)
	}
}

func TestRequired_Rounding(t *testing.T) {
	// 1 * 100 / 3 = 33.3333...
	got, err := Required(d(1), d(100), d(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d(33.3333)) {
		t.Errorf("expected 33.3333 (4dp), got %s", got)
	}
}

// --- FreeMargin ---

func TestFreeMargin_Healthy(t *testing.T) {
	got, err := FreeMargin(d(100000), d(40000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d(60000)) {
		t.Errorf("expected 60000, got %s", got)
	}
}

func TestFreeMargin_NegativeNotClamped(t *testing.T) {
	got, err := FreeMargin(d(1000), d(1500))
	if !errors.Is(err, ErrNegativeFreeMargin) {
		t.Fatalf("expected ErrNegativeFreeMargin, got %v", err)
	}
	// The computed value is still returned for reporting callers.
	if !got.Equal(d(-500)) {
		t.Errorf("expected -500 alongside the error, got %s", got)
	}
}

// --- Level ---

func TestLevel_KnownValues(t *testing.T) {
	tests := []struct {
		equity, used, want float64
	}{
		{100000, 50000, 200},
		{100000, 95000, 105.26},
		{100000, 210000, 47.62},
	}
	for _, tt := range tests {
		got, err := Level(d(tt.equity), d(tt.used))
		if err != nil {
			t.Fatalf("Level(%v, %v): unexpected error: %v", tt.equity, tt.used, err)
		}
		if !got.Equal(d(tt.want)) {
			t.Errorf("Level(%v, %v) = %s, want %v", tt.equity, tt.used, got, tt.want)
		}
	}
}

func TestLevel_NoMarginUsed(t *testing.T) {
	if _, err := Level(d(100000), d(0)); !errors.Is(err, ErrNoMarginUsed) {
		t.Errorf("expected ErrNoMarginUsed for marginUsed=0, got %v", err)
	}
}

func TestLevel_StrictlyDecreasingInMarginUsed(t *testing.T) {
	equity := d(100000)
	prev, _ := Level(equity, d(10000))
	for _, used := range []float64{20000, 50000, 90000, 150000, 300000} {
		cur, err := Level(equity, d(used))
		if err != nil {
			t.Fatalf("unexpected error at used=%v: %v", used, err)
		}
		if cur.GreaterThanOrEqual(prev) {
			t.Errorf("level should strictly decrease: used=%v prev=%s cur=%s", used, prev, cur)
		}
		prev = cur
	}
}

// --- UnrealizedPnL ---

func TestUnrealizedPnL_ZeroAtEntry(t *testing.T) {
	for _, side := range []string{model.SideLong, model.SideShort} {
		for _, p := range []float64{0.5, 100, 48250.75} {
			got := UnrealizedPnL(side, d(3), d(p), d(p))
			if !got.IsZero() {
				t.Errorf("pnl at entry price should be zero: side=%s price=%v got=%s", side, p, got)
			}
		}
	}
}

func TestUnrealizedPnL_SignSymmetry(t *testing.T) {
	long := UnrealizedPnL(model.SideLong, d(2), d(100), d(110))
	short := UnrealizedPnL(model.SideShort, d(2), d(100), d(110))
	if !short.Equal(long.Neg()) {
		t.Errorf("short pnl should negate long pnl: long=%s short=%s", long, short)
	}
	if !long.Equal(d(20)) {
		t.Errorf("expected long pnl 20, got %s", long)
	}
}

// --- LiquidationPrice ---

func TestLiquidationPrice_LongBelowShortAbove(t *testing.T) {
	long, err := LiquidationPrice(model.SideLong, d(50000), d(5), d(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	short, err := LiquidationPrice(model.SideShort, d(50000), d(5), d(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Per-unit margin 10000, 90% consumable before maintenance: offset 9000.
	if !long.Equal(d(41000)) {
		t.Errorf("expected long liquidation at 41000, got %s", long)
	}
	if !short.Equal(d(59000)) {
		t.Errorf("expected short liquidation at 59000, got %s", short)
	}

	// Mirror symmetry around entry.
	entry := d(50000)
	if !entry.Sub(long).Equal(short.Sub(entry)) {
		t.Errorf("offsets should mirror: long=%s short=%s", long, short)
	}
}

func TestLiquidationPrice_InvalidInputs(t *testing.T) {
	if _, err := LiquidationPrice(model.SideLong, d(100), d(0), d(10)); !errors.Is(err, ErrInvalidLeverage) {
		t.Errorf("expected ErrInvalidLeverage, got %v", err)
	}
	if _, err := LiquidationPrice(model.SideLong, d(0), d(5), d(10)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}

// --- MaxPositionSize ---

func TestMaxPositionSize(t *testing.T) {
	got, err := MaxPositionSize(d(10000), d(5), d(100))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d(500)) {
		t.Errorf("expected 500, got %s", got)
	}
}

func TestMaxPositionSize_Invalid(t *testing.T) {
	if _, err := MaxPositionSize(d(-1), d(5), d(100)); !errors.Is(err, ErrNegativeEquity) {
		t.Errorf("expected ErrNegativeEquity, got %v", err)
	}
	if _, err := MaxPositionSize(d(100), d(5), d(0)); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}

// --- Slippage / execution price ---

func TestSlippagePercent(t *testing.T) {
	got, err := SlippagePercent(d(100), d(102))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// (2 / 101) * 100 = 1.9802, rounded to 1.98.
	if !got.Equal(d(1.98)) {
		t.Errorf("expected 1.98, got %s", got)
	}
}

func TestSlippagePercent_CrossedQuote(t *testing.T) {
	if _, err := SlippagePercent(d(102), d(100)); !errors.Is(err, ErrInvalidQuote) {
		t.Errorf("expected ErrInvalidQuote for crossed quote, got %v", err)
	}
}

func TestLiquidationSlippage_Amplifies(t *testing.T) {
	got := LiquidationSlippage(d(1))
	if !got.Equal(d(1.5)) {
		t.Errorf("expected 1.5x amplification, got %s", got)
	}
}

func TestExecutionPrice_Directional(t *testing.T) {
	bid, ask := d(99), d(101) // mid 100
	slip := d(1)              // 1%

	long, err := ExecutionPrice(model.SideLong, bid, ask, slip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	short, err := ExecutionPrice(model.SideShort, bid, ask, slip)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !long.Equal(d(99)) {
		t.Errorf("long close should be below mid: got %s", long)
	}
	if !short.Equal(d(101)) {
		t.Errorf("short close should be above mid: got %s", short)
	}
}

// --- RequiredToFree ---

func TestRequiredToFree(t *testing.T) {
	// Level 40%: margin used 20000 vs sustainable 16000 at the 50% line.
	got := RequiredToFree(d(8000), d(20000))
	if !got.Equal(d(4000)) {
		t.Errorf("expected 4000, got %s", got)
	}
}

func TestRequiredToFree_HealthyAccountIsZero(t *testing.T) {
	got := RequiredToFree(d(100000), d(50000))
	if !got.IsZero() {
		t.Errorf("expected zero for healthy account, got %s", got)
	}
}

// --- Summarize ---

func TestSummarize_StatusBands(t *testing.T) {
	tests := []struct {
		equity, used float64
		status       string
		canOpen      bool
	}{
		{100000, 50000, StatusSafe, true},      // level 200: boundary into safe
		{100000, 95000, StatusWarning, true},   // level 105.26
		{100000, 100000, StatusWarning, false}, // level 100: boundary into warning, free margin 0
		{100000, 150000, StatusCritical, false},
		{100000, 200000, StatusCritical, false}, // level 50: boundary into critical
		{100000, 210000, StatusLiquidation, false},
	}
	for _, tt := range tests {
		s := Summarize(d(tt.equity), d(tt.used))
		if s.Status != tt.status {
			t.Errorf("Summarize(%v, %v) status = %s, want %s", tt.equity, tt.used, s.Status, tt.status)
		}
		if s.CanOpenNewPosition != tt.canOpen {
			t.Errorf("Summarize(%v, %v) canOpen = %v, want %v", tt.equity, tt.used, s.CanOpenNewPosition, tt.canOpen)
		}
	}
}

func TestSummarize_BandsContiguous(t *testing.T) {
	// Walk levels upward; the status sequence must never move backwards
	// and must hit every band exactly once.
	order := map[string]int{
		StatusLiquidation: 0,
		StatusCritical:    1,
		StatusWarning:     2,
		StatusSafe:        3,
	}
	equity := d(100000)
	prevRank := -1
	seen := make(map[string]bool)
	for used := 500000.0; used >= 25000; used -= 2500 {
		s := Summarize(equity, d(used))
		rank := order[s.Status]
		if rank < prevRank {
			t.Fatalf("status went backwards at used=%v: %s", used, s.Status)
		}
		prevRank = rank
		seen[s.Status] = true
	}
	if len(seen) != 4 {
		t.Errorf("expected all 4 bands to appear, saw %v", seen)
	}
}

func TestSummarize_NoMarginUsed(t *testing.T) {
	s := Summarize(d(5000), d(0))
	if !s.NoMarginUsed {
		t.Error("expected NoMarginUsed")
	}
	if s.Status != StatusSafe {
		t.Errorf("zero margin used should be safe, got %s", s.Status)
	}
	if !s.CanOpenNewPosition {
		t.Error("positive equity with no margin used should allow new positions")
	}
}

// --- PositionValue / Notional ---

func TestPositionValue(t *testing.T) {
	got := PositionValue(d(-3), d(150))
	if !got.Equal(d(450)) {
		t.Errorf("expected 450, got %s", got)
	}
}

func TestNotional_ContractSize(t *testing.T) {
	got := Notional(d(2), d(1.1), d(100000))
	if !got.Equal(d(220000)) {
		t.Errorf("expected 220000, got %s", got)
	}
}
