// Package orders validates proposed orders against per-symbol market rules
// before submission. Rejections use the same error-code vocabulary as the
// server so callers handle local and remote failures uniformly.
package orders

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/citrohq/citro-go/errs"
	"github.com/citrohq/citro-go/internal/numeric"
	"github.com/citrohq/citro-go/schema"
)

// MetadataSource supplies market rules no staler than its configured bound.
// The markets cache implements it.
type MetadataSource interface {
	Lookup(ctx context.Context, symbol string) (schema.Market, error)
}

// Normalized is a validated order together with the quantities derived during
// validation.
type Normalized struct {
	Request schema.OrderRequest
	Market  schema.Market

	// Amount is the resulting BASE quantity. For limit orders specified by
	// Total it is floor(total/price, trade_base_precision); for market orders
	// without a reference price it is zero when only Total was given.
	Amount decimal.Decimal

	// Notional is the resulting QUOTE value, zero when no price is known.
	Notional decimal.Decimal

	// DerivedFromTotal marks that Amount was computed from Total.
	DerivedFromTotal bool
}

// Option adjusts a single validation.
type Option func(*options)

type options struct {
	referencePrice *decimal.Decimal
}

// WithReferencePrice supplies a best-effort execution price for market-order
// quantity and notional checks. Without it those checks are deferred to the
// server, whose invalid_order_value/no_market_offers verdict is
// authoritative.
func WithReferencePrice(price decimal.Decimal) Option {
	return func(o *options) {
		o.referencePrice = &price
	}
}

// Validator checks orders against cached market metadata.
type Validator struct {
	source MetadataSource
}

// NewValidator constructs a validator reading rules from source.
func NewValidator(source MetadataSource) *Validator {
	return &Validator{source: source}
}

// Validate runs the full check sequence and returns the normalized order.
func (v *Validator) Validate(ctx context.Context, req schema.OrderRequest, opts ...Option) (Normalized, error) {
	var cfg options
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	market, err := v.source.Lookup(ctx, req.Symbol)
	if err != nil {
		return Normalized{}, err
	}

	if !req.Side.Valid() {
		return Normalized{}, invalidParams("side must be buy or sell")
	}
	if !req.Type.Valid() {
		return Normalized{}, invalidParams(fmt.Sprintf("unknown order type %q", req.Type))
	}

	if (req.Amount == nil) == (req.Total == nil) {
		return Normalized{}, invalidParams("exactly one of amount and total must be set")
	}
	if req.Amount != nil && req.Amount.Sign() <= 0 {
		return Normalized{}, invalidParams("amount must be positive")
	}
	if req.Total != nil && req.Total.Sign() <= 0 {
		return Normalized{}, invalidParams("total must be positive")
	}

	if req.Type == schema.OrderTypeLimit || req.Type == schema.OrderTypeStopLimit {
		if req.Price == nil || req.Price.Sign() <= 0 {
			return Normalized{}, invalidParams(fmt.Sprintf("%s orders require price > 0", req.Type))
		}
	}
	if req.Type == schema.OrderTypeStopLimit {
		if req.StopPrice == nil || req.StopPrice.Sign() <= 0 {
			return Normalized{}, invalidParams("stop_limit orders require stop_price > 0")
		}
	}

	if req.Price != nil && req.Type != schema.OrderTypeMarket {
		if err := checkPrice(*req.Price, market); err != nil {
			return Normalized{}, err
		}
	}

	// Market orders have no client-known execution price; a caller-supplied
	// reference price enables best-effort quantity and notional checks.
	pricingRef := req.Price
	if req.Type == schema.OrderTypeMarket {
		pricingRef = cfg.referencePrice
	}

	normalized := Normalized{Request: req, Market: market}
	switch {
	case req.Amount != nil:
		normalized.Amount = *req.Amount
	case pricingRef != nil:
		normalized.Amount = numeric.DivFloor(*req.Total, *pricingRef, market.TradeBasePrecision)
		normalized.DerivedFromTotal = true
	default:
		// Total-only market order with no reference price: amount and
		// notional checks are the server's call.
		return normalized, nil
	}

	if numeric.FractionalDigits(normalized.Amount) > market.TradeBasePrecision {
		return Normalized{}, invalidOrderValue(fmt.Sprintf(
			"amount %s exceeds base precision %d", normalized.Amount, market.TradeBasePrecision))
	}
	if normalized.DerivedFromTotal && normalized.Amount.Sign() <= 0 {
		return Normalized{}, invalidOrderValue(fmt.Sprintf(
			"total %s is below one base step at price %s", req.Total, pricingRef))
	}

	if err := checkRange(normalized.Amount, market.MinOrderQty, market.MaxOrderQty, "quantity"); err != nil {
		return Normalized{}, err
	}

	if pricingRef != nil {
		normalized.Notional = normalized.Amount.Mul(*pricingRef)
		if err := checkRange(normalized.Notional, market.MinOrderAmt, market.MaxOrderAmt, "notional"); err != nil {
			return Normalized{}, err
		}
	}
	return normalized, nil
}

func checkPrice(price decimal.Decimal, market schema.Market) error {
	if numeric.FractionalDigits(price) > market.TradeQuotePrecision {
		return invalidOrderValue(fmt.Sprintf(
			"price %s exceeds quote precision %d", price, market.TradeQuotePrecision))
	}
	if !numeric.IsMultipleOf(price, market.QuoteTickSize) {
		return invalidOrderValue(fmt.Sprintf(
			"price %s is not a multiple of tick size %s", price, market.QuoteTickSize))
	}
	return nil
}

func checkRange(value, min, max decimal.Decimal, what string) error {
	if min.Sign() > 0 && value.LessThan(min) {
		return invalidOrderValue(fmt.Sprintf("%s %s below minimum %s", what, value, min))
	}
	if max.Sign() > 0 && value.GreaterThan(max) {
		return invalidOrderValue(fmt.Sprintf("%s %s above maximum %s", what, value, max))
	}
	return nil
}

func invalidParams(msg string) error {
	return errs.FromAPICode(errs.APIInvalidParams, "",
		errs.WithOp("orders.validate"), errs.WithMessage(msg))
}

func invalidOrderValue(msg string) error {
	return errs.FromAPICode(errs.APIInvalidOrderValue, "",
		errs.WithOp("orders.validate"), errs.WithMessage(msg))
}
