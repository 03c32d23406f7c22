package rpc

// RPC method names exposed by the exchange.
const (
	MethodMarkets       = "markets"
	MethodOrderbook     = "orderbook"
	MethodKlines        = "klines"
	MethodCoins         = "coins"
	MethodWallets       = "wallets"
	MethodCreateOrder   = "create_order"
	MethodCancelOrder   = "cancel_order"
	MethodGetOrder      = "get_order"
	MethodOrdersHistory = "orders_history"
)

// privateMethods lists the methods that require signed headers.
var privateMethods = map[string]struct{}{
	MethodWallets:       {},
	MethodCreateOrder:   {},
	MethodCancelOrder:   {},
	MethodGetOrder:      {},
	MethodOrdersHistory: {},
}

// Private reports whether method requires authentication headers.
func Private(method string) bool {
	_, ok := privateMethods[method]
	return ok
}
