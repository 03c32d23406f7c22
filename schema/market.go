// Package schema defines the wire-level data model of the Citro exchange API.
//
// All monetary fields travel as decimal strings end-to-end and are held as
// exact decimals; binary floating point never touches them.
package schema

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Category identifies the traded asset class. Only spot is exposed on this
// surface.
type Category string

// CategorySpot is the spot asset class.
const CategorySpot Category = "SPOT"

// Market carries the per-symbol trading rules published by the markets method.
// Instances are produced by the metadata cache and read-only everywhere else.
type Market struct {
	Symbol              string          `json:"symbol"`
	BaseCurrency        string          `json:"base_currency"`
	QuoteCurrency       string          `json:"quote_currency"`
	TradeBasePrecision  int             `json:"trade_base_precision"`
	TradeQuotePrecision int             `json:"trade_quote_precision"`
	QuoteTickSize       decimal.Decimal `json:"quote_tick_size"`
	MinOrderQty         decimal.Decimal `json:"min_order_qty"`
	MaxOrderQty         decimal.Decimal `json:"max_order_qty"`
	MinOrderAmt         decimal.Decimal `json:"min_order_amt"`
	MaxOrderAmt         decimal.Decimal `json:"max_order_amt"`
	TakerCommission     decimal.Decimal `json:"taker_commission"`
	MakerCommission     decimal.Decimal `json:"maker_commission"`
}

// NormalizeSymbol canonicalises a BASE/QUOTE pair for use as a lookup key.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Validate checks that the market metadata is internally coherent.
func (m Market) Validate() error {
	if NormalizeSymbol(m.Symbol) == "" {
		return fmt.Errorf("market: symbol required")
	}
	if !strings.Contains(m.Symbol, "/") {
		return fmt.Errorf("market %s: symbol must be BASE/QUOTE", m.Symbol)
	}
	if m.TradeBasePrecision < 0 || m.TradeQuotePrecision < 0 {
		return fmt.Errorf("market %s: negative precision", m.Symbol)
	}
	if m.QuoteTickSize.Sign() < 0 {
		return fmt.Errorf("market %s: negative tick size", m.Symbol)
	}
	if m.MaxOrderQty.Sign() > 0 && m.MinOrderQty.GreaterThan(m.MaxOrderQty) {
		return fmt.Errorf("market %s: min_order_qty exceeds max_order_qty", m.Symbol)
	}
	if m.MaxOrderAmt.Sign() > 0 && m.MinOrderAmt.GreaterThan(m.MaxOrderAmt) {
		return fmt.Errorf("market %s: min_order_amt exceeds max_order_amt", m.Symbol)
	}
	return nil
}
