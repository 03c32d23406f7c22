package rpc

import (
	"context"

	"github.com/citrohq/citro-go/schema"
)

// MarketsService wraps the public market-data methods. It satisfies
// markets.Fetcher so the metadata cache can refresh through it.
type MarketsService struct {
	client *Client
}

// NewMarketsService constructs the service on top of the transport.
func NewMarketsService(client *Client) *MarketsService {
	return &MarketsService{client: client}
}

type marketsParams struct {
	Category schema.Category `json:"category"`
	Symbols  []string        `json:"symbols,omitempty"`
}

// FetchMarkets lists trading rules for the given symbols, or all symbols when
// none are given.
func (s *MarketsService) FetchMarkets(ctx context.Context, category schema.Category, symbols ...string) ([]schema.Market, error) {
	result, err := s.client.Call(ctx, MethodMarkets, marketsParams{Category: category, Symbols: symbols})
	if err != nil {
		return nil, err
	}
	var markets []schema.Market
	if err := result.Decode(&markets); err != nil {
		return nil, err
	}
	return markets, nil
}

type orderbookParams struct {
	Symbol string `json:"symbol"`
	Depth  int    `json:"depth,omitempty"`
}

// Orderbook returns a point-in-time book snapshot for symbol.
func (s *MarketsService) Orderbook(ctx context.Context, symbol string, depth int) (schema.BookUpdate, error) {
	result, err := s.client.Call(ctx, MethodOrderbook, orderbookParams{Symbol: symbol, Depth: depth})
	if err != nil {
		return schema.BookUpdate{}, err
	}
	var book schema.BookUpdate
	if err := result.Decode(&book); err != nil {
		return schema.BookUpdate{}, err
	}
	return book, nil
}

type klinesParams struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit,omitempty"`
}

// Klines returns recent OHLCV rows for symbol at the given interval.
func (s *MarketsService) Klines(ctx context.Context, symbol, interval string, limit int) ([]schema.Kline, error) {
	result, err := s.client.Call(ctx, MethodKlines, klinesParams{Symbol: symbol, Interval: interval, Limit: limit})
	if err != nil {
		return nil, err
	}
	var klines []schema.Kline
	if err := result.Decode(&klines); err != nil {
		return nil, err
	}
	return klines, nil
}

type coinsParams struct {
	Symbols []string `json:"symbols,omitempty"`
}

// Tickers returns the latest ticker rows for the given symbols.
func (s *MarketsService) Tickers(ctx context.Context, symbols ...string) ([]schema.Ticker, error) {
	result, err := s.client.Call(ctx, MethodCoins, coinsParams{Symbols: symbols})
	if err != nil {
		return nil, err
	}
	var tickers []schema.Ticker
	if err := result.Decode(&tickers); err != nil {
		return nil, err
	}
	return tickers, nil
}
