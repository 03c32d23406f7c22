package stream

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/citrohq/citro-go/schema"
)

type walletPayload struct {
	Type     string           `json:"type"`
	Balances []schema.Balance `json:"balances"`
}

// WalletMirror tracks account balances from the wallets channel. Snapshot
// frames replace the full listing; delta frames upsert individual coins. The
// total = available + in_orders invariant is enforced by the Balance decoder.
type WalletMirror struct {
	mu       sync.RWMutex
	balances map[string]schema.Balance
}

// NewWalletMirror constructs an empty mirror.
func NewWalletMirror() *WalletMirror {
	return &WalletMirror{balances: make(map[string]schema.Balance)}
}

// Handler adapts the mirror to a subscription callback.
func (m *WalletMirror) Handler() Handler {
	return func(frame Frame) {
		_ = m.Apply(frame)
	}
}

// Apply merges one wallets frame into the mirror.
func (m *WalletMirror) Apply(frame Frame) error {
	var payload walletPayload
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		return fmt.Errorf("wallet mirror: decode frame: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if frame.Snapshot {
		m.balances = make(map[string]schema.Balance, len(payload.Balances))
	}
	for _, balance := range payload.Balances {
		m.balances[normalizeCoin(balance.Coin)] = balance
	}
	return nil
}

// Balance returns the tracked balance for coin.
func (m *WalletMirror) Balance(coin string) (schema.Balance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	balance, ok := m.balances[normalizeCoin(coin)]
	return balance, ok
}

// All lists the tracked balances sorted by coin.
func (m *WalletMirror) All() []schema.Balance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]schema.Balance, 0, len(m.balances))
	for _, balance := range m.balances {
		out = append(out, balance)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coin < out[j].Coin })
	return out
}

func normalizeCoin(coin string) string {
	return strings.ToUpper(strings.TrimSpace(coin))
}
