// Package signing implements request authentication for the Citro API.
//
// Both the HTTP transport and the websocket manager sign the exact bytes they
// transmit: the signature covers timestamp + api_key + recv_window + payload,
// where payload is the serialized request body (HTTP) or the serialized
// {params, command} object (websocket). Callers must capture the payload bytes
// once and reuse them verbatim after signing; re-marshalling between signing
// and sending breaks authentication non-deterministically.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Sign computes the lowercase hex HMAC-SHA256 signature over the exact
// concatenation timestamp + apiKey + recvWindow + payload. It is a pure
// function and safe for concurrent use.
func Sign(secret, timestamp, apiKey, recvWindow string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(apiKey))
	mac.Write([]byte(recvWindow))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Timestamp renders the clock reading as the millisecond string the exchange
// expects in X-CITRO-TIMESTAMP and websocket command frames.
func Timestamp(clock func() time.Time) string {
	if clock == nil {
		clock = time.Now
	}
	return strconv.FormatInt(clock().UnixMilli(), 10)
}

// RecvWindow renders a recv-window duration as the millisecond string carried
// on the wire.
func RecvWindow(window time.Duration) string {
	return strconv.FormatInt(window.Milliseconds(), 10)
}
