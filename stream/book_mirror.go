package stream

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/citrohq/citro-go/schema"
)

// BookMirror maintains a local order book from the orderbook channel.
// Snapshot frames replace the book; delta frames mutate it, with stale or
// pre-snapshot sequences dropped.
type BookMirror struct {
	mu          sync.Mutex
	depth       int
	initialized bool
	bids        map[string]decimal.Decimal
	asks        map[string]decimal.Decimal
	lastSeq     uint64
	symbol      string
}

// NewBookMirror constructs a mirror limited to depth price levels per side
// (<=0 keeps full depth).
func NewBookMirror(depth int) *BookMirror {
	return &BookMirror{
		depth: depth,
		bids:  make(map[string]decimal.Decimal),
		asks:  make(map[string]decimal.Decimal),
	}
}

// Handler adapts the mirror to a subscription callback; decode errors are
// swallowed because a handler cannot return them, so callers needing strict
// handling should call Apply themselves.
func (m *BookMirror) Handler() Handler {
	return func(frame Frame) {
		_ = m.Apply(frame)
	}
}

// Apply merges one orderbook frame into the mirror.
func (m *BookMirror) Apply(frame Frame) error {
	var update schema.BookUpdate
	if err := json.Unmarshal(frame.Data, &update); err != nil {
		return fmt.Errorf("book mirror: decode frame: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if frame.Snapshot {
		m.resetLocked()
		if err := m.replaceSideLocked(m.bids, update.Bids); err != nil {
			return err
		}
		if err := m.replaceSideLocked(m.asks, update.Asks); err != nil {
			return err
		}
		m.initialized = true
		m.lastSeq = update.Sequence
		m.symbol = update.Symbol
		return nil
	}

	if !m.initialized {
		// Deltas before the first snapshot have no base to apply to.
		return nil
	}
	if update.Sequence != 0 && update.Sequence <= m.lastSeq {
		return nil
	}
	if err := m.applySideLocked(m.bids, update.Bids); err != nil {
		return err
	}
	if err := m.applySideLocked(m.asks, update.Asks); err != nil {
		return err
	}
	if update.Sequence != 0 {
		m.lastSeq = update.Sequence
	}
	return nil
}

// Initialized reports whether a snapshot has been applied.
func (m *BookMirror) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}

// Snapshot returns the current book with bids descending and asks ascending.
func (m *BookMirror) Snapshot() schema.BookUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return schema.BookUpdate{
		Symbol:   m.symbol,
		Sequence: m.lastSeq,
		Bids:     m.sortedSideLocked(m.bids, true),
		Asks:     m.sortedSideLocked(m.asks, false),
	}
}

// Best returns the top of book, with ok false while either side is empty.
func (m *BookMirror) Best() (bid, ask schema.PriceLevel, ok bool) {
	snapshot := m.Snapshot()
	if len(snapshot.Bids) == 0 || len(snapshot.Asks) == 0 {
		return schema.PriceLevel{}, schema.PriceLevel{}, false
	}
	return snapshot.Bids[0], snapshot.Asks[0], true
}

func (m *BookMirror) resetLocked() {
	for price := range m.bids {
		delete(m.bids, price)
	}
	for price := range m.asks {
		delete(m.asks, price)
	}
	m.initialized = false
	m.lastSeq = 0
}

func (m *BookMirror) replaceSideLocked(target map[string]decimal.Decimal, levels []schema.PriceLevel) error {
	for price := range target {
		delete(target, price)
	}
	return m.applySideLocked(target, levels)
}

func (m *BookMirror) applySideLocked(target map[string]decimal.Decimal, levels []schema.PriceLevel) error {
	for _, level := range levels {
		priceKey := strings.TrimSpace(level.Price)
		if priceKey == "" {
			continue
		}
		qtyStr := strings.TrimSpace(level.Quantity)
		if qtyStr == "" {
			delete(target, priceKey)
			continue
		}
		qty, err := decimal.NewFromString(qtyStr)
		if err != nil {
			return fmt.Errorf("book mirror: level quantity %q: %w", qtyStr, err)
		}
		if qty.Sign() <= 0 {
			delete(target, priceKey)
			continue
		}
		target[priceKey] = qty
	}
	return nil
}

func (m *BookMirror) sortedSideLocked(source map[string]decimal.Decimal, isBid bool) []schema.PriceLevel {
	if len(source) == 0 {
		return nil
	}
	type level struct {
		price decimal.Decimal
		qty   decimal.Decimal
		key   string
	}
	levels := make([]level, 0, len(source))
	for key, qty := range source {
		price, err := decimal.NewFromString(key)
		if err != nil {
			continue
		}
		levels = append(levels, level{price: price, qty: qty, key: key})
	}
	sort.Slice(levels, func(i, j int) bool {
		cmp := levels[i].price.Cmp(levels[j].price)
		if cmp == 0 {
			return levels[i].key < levels[j].key
		}
		if isBid {
			return cmp > 0
		}
		return cmp < 0
	})
	limit := len(levels)
	if m.depth > 0 && limit > m.depth {
		limit = m.depth
	}
	out := make([]schema.PriceLevel, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, schema.PriceLevel{
			Price:    levels[i].key,
			Quantity: levels[i].qty.String(),
		})
	}
	return out
}
