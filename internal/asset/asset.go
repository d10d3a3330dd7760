// Package asset holds per-symbol trading configuration (leverage caps,
// maintenance margin, quantity bounds) and per-class overnight carry rates.
//
// Tables are immutable lookup structures injected into the engine, never
// ambient globals. Unknown symbols fall back to a conservative default that
// never permits more risk than the default itself.
package asset

import (
	"github.com/shopspring/decimal"
)

// Asset classes.
const (
	ClassForex  = "forex"
	ClassCrypto = "crypto"
	ClassIndex  = "index"
	ClassMetal  = "metal"
	ClassEnergy = "energy"
)

// Config is the per-symbol trading configuration.
type Config struct {
	Symbol                 string          `json:"symbol"`
	Class                  string          `json:"class"`
	Leverage               decimal.Decimal `json:"leverage"`
	MaintenanceMarginRatio decimal.Decimal `json:"maintenance_margin_ratio"` // percent
	MinQuantity            decimal.Decimal `json:"min_quantity"`
	MaxQuantity            decimal.Decimal `json:"max_quantity"`
	ContractSize           decimal.Decimal `json:"contract_size"`
}

// CarryRate is the annualized overnight financing rate for one asset class,
// in percent, split by position side.
type CarryRate struct {
	LongAnnualPct  decimal.Decimal `json:"long_annual_pct"`
	ShortAnnualPct decimal.Decimal `json:"short_annual_pct"`
}

// Table is an immutable symbol → Config lookup with a documented default.
type Table struct {
	configs    map[string]Config
	carryRates map[string]CarryRate
	fallback   Config
}

// DefaultConfig is the conservative fallback applied to unknown symbols:
// 10x leverage, 10% maintenance margin, contract size 1, forex carry table.
func DefaultConfig(symbol string) Config {
	return Config{
		Symbol:                 symbol,
		Class:                  ClassForex,
		Leverage:               decimal.NewFromInt(10),
		MaintenanceMarginRatio: decimal.NewFromInt(10),
		MinQuantity:            decimal.NewFromFloat(0.01),
		MaxQuantity:            decimal.NewFromInt(100),
		ContractSize:           decimal.NewFromInt(1),
	}
}

// NewTable builds a lookup table from per-symbol configs and per-class carry
// rates. Non-positive contract sizes normalize to 1.
func NewTable(configs []Config, carryRates map[string]CarryRate) *Table {
	t := &Table{
		configs:    make(map[string]Config, len(configs)),
		carryRates: make(map[string]CarryRate, len(carryRates)),
	}
	for _, c := range configs {
		if c.ContractSize.LessThanOrEqual(decimal.Zero) {
			c.ContractSize = decimal.NewFromInt(1)
		}
		t.configs[c.Symbol] = c
	}
	for class, r := range carryRates {
		t.carryRates[class] = r
	}
	return t
}

// Lookup returns the configuration for a symbol, falling back to the
// conservative default for unknown symbols.
func (t *Table) Lookup(symbol string) Config {
	if c, ok := t.configs[symbol]; ok {
		return c
	}
	return DefaultConfig(symbol)
}

// CarryRateFor returns the carry rate table for an asset class, falling back
// to the forex table for unknown classes. The forex fallback is inherited
// behavior, preserved explicitly; it is not a statement of risk policy for
// non-forex instruments.
func (t *Table) CarryRateFor(class string) CarryRate {
	if r, ok := t.carryRates[class]; ok {
		return r
	}
	if r, ok := t.carryRates[ClassForex]; ok {
		return r
	}
	return CarryRate{}
}

// DailyRate converts an annualized percentage to a daily fractional rate:
// annual / 365 / 100.
func DailyRate(annualPct decimal.Decimal) decimal.Decimal {
	return annualPct.Div(decimal.NewFromInt(365)).Div(decimal.NewFromInt(100))
}

// DefaultTable returns the engine's built-in symbol and carry-rate tables.
// Deployments override these via configuration; tests use them as-is.
func DefaultTable() *Table {
	configs := []Config{
		{Symbol: "BTC-USD", Class: ClassCrypto, Leverage: decimal.NewFromInt(5),
			MaintenanceMarginRatio: decimal.NewFromInt(15),
			MinQuantity:            decimal.NewFromFloat(0.001), MaxQuantity: decimal.NewFromInt(10),
			ContractSize: decimal.NewFromInt(1)},
		{Symbol: "ETH-USD", Class: ClassCrypto, Leverage: decimal.NewFromInt(5),
			MaintenanceMarginRatio: decimal.NewFromInt(15),
			MinQuantity:            decimal.NewFromFloat(0.01), MaxQuantity: decimal.NewFromInt(100),
			ContractSize: decimal.NewFromInt(1)},
		{Symbol: "EUR-USD", Class: ClassForex, Leverage: decimal.NewFromInt(30),
			MaintenanceMarginRatio: decimal.NewFromInt(5),
			MinQuantity:            decimal.NewFromFloat(0.01), MaxQuantity: decimal.NewFromInt(500),
			ContractSize: decimal.NewFromInt(100000)},
		{Symbol: "GBP-USD", Class: ClassForex, Leverage: decimal.NewFromInt(30),
			MaintenanceMarginRatio: decimal.NewFromInt(5),
			MinQuantity:            decimal.NewFromFloat(0.01), MaxQuantity: decimal.NewFromInt(500),
			ContractSize: decimal.NewFromInt(100000)},
		{Symbol: "XAU-USD", Class: ClassMetal, Leverage: decimal.NewFromInt(20),
			MaintenanceMarginRatio: decimal.NewFromInt(8),
			MinQuantity:            decimal.NewFromFloat(0.01), MaxQuantity: decimal.NewFromInt(50),
			ContractSize: decimal.NewFromInt(100)},
		{Symbol: "SPX500", Class: ClassIndex, Leverage: decimal.NewFromInt(20),
			MaintenanceMarginRatio: decimal.NewFromInt(8),
			MinQuantity:            decimal.NewFromFloat(0.1), MaxQuantity: decimal.NewFromInt(100),
			ContractSize: decimal.NewFromInt(10)},
	}

	carryRates := map[string]CarryRate{
		ClassForex:  {LongAnnualPct: decimal.NewFromFloat(2.5), ShortAnnualPct: decimal.NewFromFloat(1.5)},
		ClassCrypto: {LongAnnualPct: decimal.NewFromFloat(10.95), ShortAnnualPct: decimal.NewFromFloat(10.95)},
		ClassIndex:  {LongAnnualPct: decimal.NewFromFloat(3.0), ShortAnnualPct: decimal.NewFromFloat(1.0)},
		ClassMetal:  {LongAnnualPct: decimal.NewFromFloat(2.0), ShortAnnualPct: decimal.NewFromFloat(2.0)},
		ClassEnergy: {LongAnnualPct: decimal.NewFromFloat(4.0), ShortAnnualPct: decimal.NewFromFloat(3.0)},
	}

	return NewTable(configs, carryRates)
}
