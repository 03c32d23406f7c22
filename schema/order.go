package schema

import (
	"github.com/shopspring/decimal"
)

// Side identifies the direction of an order.
type Side string

const (
	// SideBuy buys BASE with QUOTE.
	SideBuy Side = "buy"
	// SideSell sells BASE for QUOTE.
	SideSell Side = "sell"
)

// Valid reports whether the side is recognised.
func (s Side) Valid() bool {
	switch s {
	case SideBuy, SideSell:
		return true
	default:
		return false
	}
}

// OrderType identifies the execution style of an order.
type OrderType string

const (
	// OrderTypeMarket executes immediately against the book.
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit rests at the given price.
	OrderTypeLimit OrderType = "limit"
	// OrderTypeStopLimit places a limit order once the stop price trades.
	OrderTypeStopLimit OrderType = "stop_limit"
)

// Valid reports whether the order type is recognised.
func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopLimit:
		return true
	default:
		return false
	}
}

// OrderRequest is a proposed order prior to submission. Exactly one of Amount
// (BASE units) and Total (QUOTE units) must be set; the validator enforces
// this along with the per-market precision and min/max rules.
type OrderRequest struct {
	Symbol        string           `json:"symbol"`
	Side          Side             `json:"side"`
	Type          OrderType        `json:"type"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Total         *decimal.Decimal `json:"total,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	StopPrice     *decimal.Decimal `json:"stop_price,omitempty"`
	ClientOrderID string           `json:"client_order_id,omitempty"`
}

// Order is the read-only projection of a server-owned order, obtained from
// responses or subscription frames.
type Order struct {
	ID             string           `json:"id"`
	Symbol         string           `json:"symbol"`
	Side           Side             `json:"side"`
	Type           OrderType        `json:"type"`
	Status         OrderStatus      `json:"status"`
	OriginalAmount decimal.Decimal  `json:"original_amount"`
	Amount         decimal.Decimal  `json:"amount"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	StopPriceGTE   *decimal.Decimal `json:"stop_price_gte,omitempty"`
	StopPriceLTE   *decimal.Decimal `json:"stop_price_lte,omitempty"`
	Fee            decimal.Decimal  `json:"fee"`
	VWAP           decimal.Decimal  `json:"vwap"`
	CreatedAt      int64            `json:"created_at"`
	UpdatedAt      int64            `json:"updated_at"`
}
