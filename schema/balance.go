package schema

import (
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Balance reports the funds held for a single coin. The server maintains the
// invariant total = available + in_orders; decoding verifies it so a drifting
// projection is caught at the boundary.
type Balance struct {
	Coin      string          `json:"coin"`
	InOrders  decimal.Decimal `json:"in_orders"`
	Available decimal.Decimal `json:"available"`
	Total     decimal.Decimal `json:"total"`
	AssetType string          `json:"asset_type"`
}

type balanceWire Balance

// UnmarshalJSON decodes a balance and checks the total invariant.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var wire balanceWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.AssetType == "" {
		wire.AssetType = string(CategorySpot)
	}
	sum := wire.Available.Add(wire.InOrders)
	if !wire.Total.Equal(sum) {
		return fmt.Errorf("balance %s: total %s != available %s + in_orders %s",
			wire.Coin, wire.Total, wire.Available, wire.InOrders)
	}
	*b = Balance(wire)
	return nil
}
