package rpc

import (
	"context"

	"github.com/citrohq/citro-go/schema"
)

// AccountService wraps the private account methods.
type AccountService struct {
	client *Client
}

// NewAccountService constructs the service on top of the transport.
func NewAccountService(client *Client) *AccountService {
	return &AccountService{client: client}
}

type walletsParams struct {
	AssetType string `json:"asset_type"`
}

// Wallets lists the SPOT balances of the authenticated account.
func (s *AccountService) Wallets(ctx context.Context) ([]schema.Balance, error) {
	result, err := s.client.Call(ctx, MethodWallets, walletsParams{AssetType: string(schema.CategorySpot)})
	if err != nil {
		return nil, err
	}
	var balances []schema.Balance
	if err := result.Decode(&balances); err != nil {
		return nil, err
	}
	return balances, nil
}
