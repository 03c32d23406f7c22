package stream

import (
	json "github.com/goccy/go-json"
)

// channelParams is the params object exchanged on subscribe commands and
// echoed back on data frames.
type channelParams struct {
	Symbol   string `json:"symbol,omitempty"`
	Interval string `json:"interval,omitempty"`
}

func (k ChannelKey) params() channelParams {
	return channelParams{Symbol: k.Symbol, Interval: k.Interval}
}

// commandFrame is an outbound command. Private commands carry the
// authentication fields; Sign covers the byte-exact serialized
// {params, command} object, which reuses the same Params bytes embedded here.
type commandFrame struct {
	Command    string          `json:"command"`
	Params     json.RawMessage `json:"params"`
	APIKey     string          `json:"api_key,omitempty"`
	Timestamp  string          `json:"timestamp,omitempty"`
	RecvWindow string          `json:"recv_window,omitempty"`
	Sign       string          `json:"sign,omitempty"`
}

// signedPayload is the object the signature is computed over.
type signedPayload struct {
	Params  json.RawMessage `json:"params"`
	Command string          `json:"command"`
}

// inboundFrame is any message from the server: an ACK
// {subscription_id, response}, a data frame
// {subscription_id, method, params, data}, or an error.
type inboundFrame struct {
	SubscriptionID string          `json:"subscription_id,omitempty"`
	Response       string          `json:"response,omitempty"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Error          *frameError     `json:"error,omitempty"`
}

type frameError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Frame is one inbound data frame routed to a subscriber. Snapshot frames
// replace local state; delta frames mutate it.
type Frame struct {
	Key            ChannelKey
	SubscriptionID string
	Snapshot       bool
	Data           json.RawMessage
}

type frameTypeProbe struct {
	Type string `json:"type"`
}

// frameKey derives the registry key from the echoed method and params.
func frameKey(method string, rawParams json.RawMessage) (ChannelKey, bool) {
	family := Family(method)
	if !family.Valid() {
		return ChannelKey{}, false
	}
	var params channelParams
	if len(rawParams) > 0 {
		if err := json.Unmarshal(rawParams, &params); err != nil {
			return ChannelKey{}, false
		}
	}
	key := ChannelKey{
		Family:   family,
		Symbol:   normalizeSymbol(params.Symbol),
		Interval: params.Interval,
	}
	if !key.valid() {
		return ChannelKey{}, false
	}
	return key, true
}
