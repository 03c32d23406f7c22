// Package rpc implements the JSON-RPC-over-HTTP transport for the Citro
// exchange, including request signing, batching, and error classification.
package rpc

import (
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/citrohq/citro-go/errs"
)

const jsonrpcVersion = "2.0"

// Request is one JSON-RPC call. Callers that need to correlate responses must
// set a unique ID; the transport fills in a UUID when it is empty.
type Request struct {
	Method string
	Params any
	ID     string
}

type wireRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id,omitempty"`
}

type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
	ID      string          `json:"id,omitempty"`
}

// Result is the outcome of one JSON-RPC call. Batch execution is not atomic,
// so each entry carries its own error.
type Result struct {
	ID  string
	Raw json.RawMessage
	Err error
}

// Decode unmarshals the result payload into v, or returns the call's error.
func (r Result) Decode(v any) error {
	if r.Err != nil {
		return r.Err
	}
	if len(r.Raw) == 0 {
		return fmt.Errorf("rpc: empty result for id %q", r.ID)
	}
	if err := json.Unmarshal(r.Raw, v); err != nil {
		return fmt.Errorf("rpc: decode result for id %q: %w", r.ID, err)
	}
	return nil
}

func (e *wireError) toErr(op string, httpStatus int) error {
	if e == nil {
		return nil
	}
	return errs.FromAPICode(e.Code, e.Message,
		errs.WithOp(op), errs.WithHTTP(httpStatus))
}
