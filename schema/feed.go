package schema

import (
	json "github.com/goccy/go-json"
)

// PriceLevel is one [price, quantity] pair of an order book side, both legs
// carried as decimal strings.
type PriceLevel struct {
	Price    string
	Quantity string
}

// MarshalJSON renders the level in the wire's two-element array form.
func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{l.Price, l.Quantity})
}

// UnmarshalJSON decodes the wire's two-element array form.
func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	l.Price = pair[0]
	l.Quantity = pair[1]
	return nil
}

// BookUpdate is one order-book frame from the orderbook channel. Snapshot
// frames carry the full book; delta frames carry changed levels where a zero
// quantity removes the level. Sequence orders frames within a connection.
type BookUpdate struct {
	Symbol   string       `json:"symbol"`
	Sequence uint64       `json:"sequence"`
	Bids     []PriceLevel `json:"bids"`
	Asks     []PriceLevel `json:"asks"`
}

// Kline is one OHLCV row from the klines channel.
type Kline struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	OpenTime int64  `json:"open_time"`
	Open     string `json:"open"`
	High     string `json:"high"`
	Low      string `json:"low"`
	Close    string `json:"close"`
	Volume   string `json:"volume"`
	Closed   bool   `json:"closed"`
}

// Ticker is one row from the coins channel.
type Ticker struct {
	Symbol    string `json:"symbol"`
	Last      string `json:"last"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	Volume24h string `json:"volume_24h"`
	Change24h string `json:"change_24h"`
	Timestamp int64  `json:"timestamp"`
}
