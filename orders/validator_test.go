package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/citrohq/citro-go/errs"
	"github.com/citrohq/citro-go/schema"
)

type staticSource map[string]schema.Market

func (s staticSource) Lookup(_ context.Context, symbol string) (schema.Market, error) {
	m, ok := s[schema.NormalizeSymbol(symbol)]
	if !ok {
		return schema.Market{}, errs.FromAPICode(errs.APIInvalidPair, "")
	}
	return m, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func btcMarket() schema.Market {
	return schema.Market{
		Symbol:              "BTC/USDT",
		BaseCurrency:        "BTC",
		QuoteCurrency:       "USDT",
		TradeBasePrecision:  6,
		TradeQuotePrecision: 2,
		QuoteTickSize:       dec("0.01"),
		MinOrderQty:         dec("0.0001"),
		MaxOrderQty:         dec("100"),
		MinOrderAmt:         dec("10"),
		MaxOrderAmt:         dec("1000000"),
	}
}

func newTestValidator() *Validator {
	return NewValidator(staticSource{"BTC/USDT": btcMarket()})
}

func limitBuy() schema.OrderRequest {
	return schema.OrderRequest{
		Symbol: "BTC/USDT",
		Side:   schema.SideBuy,
		Type:   schema.OrderTypeLimit,
		Amount: decPtr("0.5"),
		Price:  decPtr("65000.00"),
	}
}

func TestValidateAcceptsWellFormedLimit(t *testing.T) {
	normalized, err := newTestValidator().Validate(context.Background(), limitBuy())
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !normalized.Amount.Equal(dec("0.5")) {
		t.Fatalf("unexpected amount: %s", normalized.Amount)
	}
	if !normalized.Notional.Equal(dec("32500")) {
		t.Fatalf("unexpected notional: %s", normalized.Notional)
	}
	if normalized.DerivedFromTotal {
		t.Fatal("amount was given directly")
	}
}

func TestValidateUnknownPair(t *testing.T) {
	req := limitBuy()
	req.Symbol = "DOGE/USDT"
	_, err := newTestValidator().Validate(context.Background(), req)
	if !errs.HasAPICode(err, errs.APIInvalidPair) {
		t.Fatalf("expected invalid_pair, got %v", err)
	}
}

func TestValidateAmountTotalExclusivity(t *testing.T) {
	v := newTestValidator()

	req := limitBuy()
	req.Total = decPtr("100")
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("amount and total together must be invalid_params, got %v", err)
	}

	req = limitBuy()
	req.Amount = nil
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("neither amount nor total must be invalid_params, got %v", err)
	}
}

func TestValidateRejectsNonPositiveQuantities(t *testing.T) {
	v := newTestValidator()

	req := limitBuy()
	req.Amount = decPtr("0")
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("zero amount must be invalid_params, got %v", err)
	}

	req = limitBuy()
	req.Amount = nil
	req.Total = decPtr("-5")
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("negative total must be invalid_params, got %v", err)
	}
}

func TestValidatePriceTickGrid(t *testing.T) {
	v := newTestValidator()

	req := limitBuy()
	req.Price = decPtr("100.00")
	if _, err := v.Validate(context.Background(), req); err != nil {
		t.Fatalf("price on the 0.01 grid should pass: %v", err)
	}

	req.Price = decPtr("100.005")
	_, err := v.Validate(context.Background(), req)
	if !errs.HasAPICode(err, errs.APIInvalidOrderValue) {
		t.Fatalf("off-grid price must be invalid_order_value, got %v", err)
	}
}

func TestValidateRequiresPriceForLimit(t *testing.T) {
	req := limitBuy()
	req.Price = nil
	_, err := newTestValidator().Validate(context.Background(), req)
	if !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("limit without price must be invalid_params, got %v", err)
	}
}

func TestValidateStopLimitRequiresStopPrice(t *testing.T) {
	req := limitBuy()
	req.Type = schema.OrderTypeStopLimit
	_, err := newTestValidator().Validate(context.Background(), req)
	if !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("stop_limit without stop_price must be invalid_params, got %v", err)
	}

	req.StopPrice = decPtr("64000.00")
	if _, err := newTestValidator().Validate(context.Background(), req); err != nil {
		t.Fatalf("well-formed stop_limit should pass: %v", err)
	}
}

func TestValidateDerivesAmountFromTotal(t *testing.T) {
	req := limitBuy()
	req.Amount = nil
	req.Total = decPtr("500")
	req.Price = decPtr("65000.00")

	normalized, err := newTestValidator().Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !normalized.DerivedFromTotal {
		t.Fatal("amount should be marked as derived")
	}
	// floor(500/65000, 6): never rounds up past what the total can buy.
	if normalized.Amount.String() != "0.007692" {
		t.Fatalf("derived amount %s, want 0.007692", normalized.Amount)
	}
}

func TestValidateQuantityBounds(t *testing.T) {
	v := newTestValidator()

	req := limitBuy()
	req.Amount = decPtr("0.00005")
	req.Price = decPtr("1000000.00")
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidOrderValue) {
		t.Fatalf("below min quantity must be invalid_order_value, got %v", err)
	}

	req = limitBuy()
	req.Amount = decPtr("150")
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidOrderValue) {
		t.Fatalf("above max quantity must be invalid_order_value, got %v", err)
	}
}

func TestValidateNotionalBounds(t *testing.T) {
	req := limitBuy()
	req.Amount = decPtr("0.0001")
	req.Price = decPtr("1000.00") // notional 0.1 < min 10
	_, err := newTestValidator().Validate(context.Background(), req)
	if !errs.HasAPICode(err, errs.APIInvalidOrderValue) {
		t.Fatalf("below min notional must be invalid_order_value, got %v", err)
	}
}

func TestValidateAmountPrecision(t *testing.T) {
	req := limitBuy()
	req.Amount = decPtr("0.1234567")
	_, err := newTestValidator().Validate(context.Background(), req)
	if !errs.HasAPICode(err, errs.APIInvalidOrderValue) {
		t.Fatalf("amount past base precision must be invalid_order_value, got %v", err)
	}
}

func TestValidateMarketOrderTotalOnlyDeferred(t *testing.T) {
	req := schema.OrderRequest{
		Symbol: "BTC/USDT",
		Side:   schema.SideBuy,
		Type:   schema.OrderTypeMarket,
		Total:  decPtr("500"),
	}
	normalized, err := newTestValidator().Validate(context.Background(), req)
	if err != nil {
		t.Fatalf("total-only market order without reference price defers to the server: %v", err)
	}
	if !normalized.Amount.IsZero() {
		t.Fatalf("no amount can be derived without a price, got %s", normalized.Amount)
	}
}

func TestValidateMarketOrderWithReferencePrice(t *testing.T) {
	req := schema.OrderRequest{
		Symbol: "BTC/USDT",
		Side:   schema.SideBuy,
		Type:   schema.OrderTypeMarket,
		Total:  decPtr("500"),
	}
	normalized, err := newTestValidator().Validate(context.Background(), req,
		WithReferencePrice(dec("65000")))
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if normalized.Amount.String() != "0.007692" {
		t.Fatalf("derived amount %s, want 0.007692", normalized.Amount)
	}

	// With a reference price the notional bound applies client-side.
	req.Total = decPtr("5")
	_, err = newTestValidator().Validate(context.Background(), req,
		WithReferencePrice(dec("65000")))
	if !errs.HasAPICode(err, errs.APIInvalidOrderValue) {
		t.Fatalf("below min notional must be invalid_order_value, got %v", err)
	}
}

func TestValidateMarketOrderPriceNotTickChecked(t *testing.T) {
	// Reference prices are advisory; the tick grid only binds explicit prices.
	req := schema.OrderRequest{
		Symbol: "BTC/USDT",
		Side:   schema.SideSell,
		Type:   schema.OrderTypeMarket,
		Amount: decPtr("0.5"),
	}
	if _, err := newTestValidator().Validate(context.Background(), req,
		WithReferencePrice(dec("65000.123"))); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidateRejectsUnknownSideAndType(t *testing.T) {
	v := newTestValidator()

	req := limitBuy()
	req.Side = "hold"
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("unknown side must be invalid_params, got %v", err)
	}

	req = limitBuy()
	req.Type = "iceberg"
	if _, err := v.Validate(context.Background(), req); !errs.HasAPICode(err, errs.APIInvalidParams) {
		t.Fatalf("unknown type must be invalid_params, got %v", err)
	}
}
