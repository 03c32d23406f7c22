package rpc

import (
	"context"
	"io"
	"net/http"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/citrohq/citro-go/schema"
)

func TestFetchMarkets(t *testing.T) {
	var gotParams marketsParams
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req wireRequest
		_ = json.Unmarshal(body, &req)
		raw, _ := json.Marshal(req.Params)
		_ = json.Unmarshal(raw, &gotParams)
		respond(w, wireResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(
			`[{"symbol":"BTC/USDT","base_currency":"BTC","quote_currency":"USDT",` +
				`"trade_base_precision":6,"trade_quote_precision":2,"quote_tick_size":"0.01",` +
				`"min_order_qty":"0.0001","max_order_qty":"100","min_order_amt":"10","max_order_amt":"1000000",` +
				`"taker_commission":"0.001","maker_commission":"0.0008"}]`)})
	})

	markets, err := NewMarketsService(client).FetchMarkets(context.Background(), schema.CategorySpot, "BTC/USDT")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotParams.Category != schema.CategorySpot || len(gotParams.Symbols) != 1 {
		t.Fatalf("unexpected params: %+v", gotParams)
	}
	if len(markets) != 1 || markets[0].Symbol != "BTC/USDT" {
		t.Fatalf("unexpected markets: %+v", markets)
	}
	if markets[0].QuoteTickSize.String() != "0.01" {
		t.Fatalf("tick size must decode exactly, got %s", markets[0].QuoteTickSize)
	}
}

func TestOrderbookSnapshot(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req wireRequest
		_ = json.Unmarshal(body, &req)
		respond(w, wireResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(
			`{"symbol":"BTC/USDT","sequence":42,"bids":[["65000.00","0.5"]],"asks":[["65001.00","0.3"]]}`)})
	})

	book, err := NewMarketsService(client).Orderbook(context.Background(), "BTC/USDT", 10)
	if err != nil {
		t.Fatalf("orderbook: %v", err)
	}
	if book.Sequence != 42 || len(book.Bids) != 1 || book.Bids[0].Price != "65000.00" {
		t.Fatalf("unexpected book: %+v", book)
	}
}

func TestWallets(t *testing.T) {
	var gotParams walletsParams
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req wireRequest
		_ = json.Unmarshal(body, &req)
		if req.Method != MethodWallets {
			t.Errorf("unexpected method %q", req.Method)
		}
		raw, _ := json.Marshal(req.Params)
		_ = json.Unmarshal(raw, &gotParams)
		respond(w, wireResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(
			`[{"coin":"BTC","available":"0.5","in_orders":"0.25","total":"0.75"}]`)})
	})

	balances, err := NewAccountService(client).Wallets(context.Background())
	if err != nil {
		t.Fatalf("wallets: %v", err)
	}
	if gotParams.AssetType != "SPOT" {
		t.Fatalf("unexpected asset type: %q", gotParams.AssetType)
	}
	if len(balances) != 1 || balances[0].Coin != "BTC" || balances[0].Total.String() != "0.75" {
		t.Fatalf("unexpected balances: %+v", balances)
	}
}

func TestWalletsRejectsDriftedBalance(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req wireRequest
		_ = json.Unmarshal(body, &req)
		respond(w, wireResponse{JSONRPC: "2.0", ID: req.ID, Result: json.RawMessage(
			`[{"coin":"BTC","available":"0.5","in_orders":"0.25","total":"1"}]`)})
	})

	if _, err := NewAccountService(client).Wallets(context.Background()); err == nil {
		t.Fatal("drifted totals must fail decoding")
	}
}
