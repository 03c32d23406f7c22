// Package stream owns the websocket connection to the Citro exchange: channel
// registry, private-command signing, reconnect with resubscribe, and frame
// dispatch.
package stream

import (
	"strings"
)

// Family identifies a subscription channel family. The outbound command is
// "subscribe.<family>" while inbound data frames carry the bare family name
// as their method; the two differ by design.
type Family string

const (
	// FamilyWallets streams balance changes (private).
	FamilyWallets Family = "wallets"
	// FamilyOrderbook streams order-book snapshots and deltas.
	FamilyOrderbook Family = "orderbook"
	// FamilyKlines streams OHLCV rows.
	FamilyKlines Family = "klines"
	// FamilyCoins streams ticker rows.
	FamilyCoins Family = "coins"
)

// Valid reports whether the family is recognised.
func (f Family) Valid() bool {
	switch f {
	case FamilyWallets, FamilyOrderbook, FamilyKlines, FamilyCoins:
		return true
	default:
		return false
	}
}

// Private reports whether subscribing requires signed commands.
func (f Family) Private() bool {
	return f == FamilyWallets
}

func (f Family) subscribeCommand() string   { return "subscribe." + string(f) }
func (f Family) unsubscribeCommand() string { return "unsubscribe." + string(f) }

// ChannelKey identifies a subscription locally. It is derived from the
// method/params of inbound frames, never from subscription_id: the server
// reissues ids on every reconnect, so they cannot key the registry.
type ChannelKey struct {
	Family   Family
	Symbol   string
	Interval string
}

// Wallets is the private balance channel.
func Wallets() ChannelKey {
	return ChannelKey{Family: FamilyWallets}
}

// Orderbook keys the order-book channel for symbol.
func Orderbook(symbol string) ChannelKey {
	return ChannelKey{Family: FamilyOrderbook, Symbol: normalizeSymbol(symbol)}
}

// Klines keys the kline channel for symbol at interval.
func Klines(symbol, interval string) ChannelKey {
	return ChannelKey{Family: FamilyKlines, Symbol: normalizeSymbol(symbol), Interval: strings.TrimSpace(interval)}
}

// Coins keys the ticker channel for symbol.
func Coins(symbol string) ChannelKey {
	return ChannelKey{Family: FamilyCoins, Symbol: normalizeSymbol(symbol)}
}

func (k ChannelKey) String() string {
	parts := []string{string(k.Family)}
	if k.Symbol != "" {
		parts = append(parts, k.Symbol)
	}
	if k.Interval != "" {
		parts = append(parts, k.Interval)
	}
	return strings.Join(parts, "|")
}

func (k ChannelKey) valid() bool {
	if !k.Family.Valid() {
		return false
	}
	switch k.Family {
	case FamilyKlines:
		return k.Symbol != "" && k.Interval != ""
	case FamilyOrderbook, FamilyCoins:
		return k.Symbol != ""
	default:
		return true
	}
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
