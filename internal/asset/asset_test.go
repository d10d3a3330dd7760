package asset

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func TestLookup_KnownSymbol(t *testing.T) {
	table := DefaultTable()

	cfg := table.Lookup("BTC-USD")
	if cfg.Class != ClassCrypto {
		t.Errorf("class = %s, want crypto", cfg.Class)
	}
	if !cfg.Leverage.Equal(d(5)) {
		t.Errorf("leverage = %s, want 5", cfg.Leverage)
	}
	if !cfg.MaintenanceMarginRatio.Equal(d(15)) {
		t.Errorf("maintenance ratio = %s, want 15", cfg.MaintenanceMarginRatio)
	}
}

func TestLookup_UnknownSymbolFallsBack(t *testing.T) {
	table := DefaultTable()

	cfg := table.Lookup("DOGE-USD")
	if cfg.Symbol != "DOGE-USD" {
		t.Errorf("fallback must carry the requested symbol, got %s", cfg.Symbol)
	}
	if cfg.Class != ClassForex {
		t.Errorf("fallback class = %s, want forex", cfg.Class)
	}
	if !cfg.Leverage.Equal(d(10)) {
		t.Errorf("fallback leverage = %s, want 10", cfg.Leverage)
	}
	if !cfg.MaintenanceMarginRatio.Equal(d(10)) {
		t.Errorf("fallback maintenance ratio = %s, want 10", cfg.MaintenanceMarginRatio)
	}
	if !cfg.ContractSize.Equal(d(1)) {
		t.Errorf("fallback contract size = %s, want 1", cfg.ContractSize)
	}
}

func TestNewTable_NormalizesContractSize(t *testing.T) {
	table := NewTable([]Config{
		{Symbol: "X", Class: ClassIndex, Leverage: d(10), ContractSize: decimal.Zero},
	}, nil)

	if !table.Lookup("X").ContractSize.Equal(d(1)) {
		t.Errorf("zero contract size must normalize to 1, got %s", table.Lookup("X").ContractSize)
	}
}

func TestCarryRateFor(t *testing.T) {
	table := DefaultTable()

	crypto := table.CarryRateFor(ClassCrypto)
	if !crypto.LongAnnualPct.Equal(d(10.95)) || !crypto.ShortAnnualPct.Equal(d(10.95)) {
		t.Errorf("crypto carry = %s/%s, want 10.95/10.95",
			crypto.LongAnnualPct, crypto.ShortAnnualPct)
	}

	// Unknown classes fall back to the forex table.
	unknown := table.CarryRateFor("bonds")
	forex := table.CarryRateFor(ClassForex)
	if !unknown.LongAnnualPct.Equal(forex.LongAnnualPct) ||
		!unknown.ShortAnnualPct.Equal(forex.ShortAnnualPct) {
		t.Errorf("unknown class carry = %s/%s, want forex fallback %s/%s",
			unknown.LongAnnualPct, unknown.ShortAnnualPct,
			forex.LongAnnualPct, forex.ShortAnnualPct)
	}
}

func TestCarryRateFor_NoForexTable(t *testing.T) {
	table := NewTable(nil, map[string]CarryRate{
		ClassCrypto: {LongAnnualPct: d(10), ShortAnnualPct: d(10)},
	})

	r := table.CarryRateFor("bonds")
	if !r.LongAnnualPct.IsZero() || !r.ShortAnnualPct.IsZero() {
		t.Errorf("expected zero carry without a forex fallback, got %s/%s",
			r.LongAnnualPct, r.ShortAnnualPct)
	}
}

func TestDailyRate(t *testing.T) {
	// 10.95% annual divides evenly: 10.95/365/100 = 0.0003.
	got := DailyRate(d(10.95))
	if !got.Equal(d(0.0003)) {
		t.Errorf("DailyRate(10.95) = %s, want 0.0003", got)
	}
	if !DailyRate(decimal.Zero).IsZero() {
		t.Error("DailyRate(0) must be zero")
	}
}
