// Package errs provides structured error types shared across the citro-go client.
package errs

import (
	"errors"
	"strconv"
	"strings"
)

// Class groups wire-level error codes by how callers should handle them.
type Class string

const (
	// ClassAuth covers API-key, signature, and recv-window rejections.
	ClassAuth Class = "auth"
	// ClassValidation covers malformed or out-of-range request parameters.
	ClassValidation Class = "validation"
	// ClassResourceState covers operations that are invalid for the current
	// state of the referenced entity.
	ClassResourceState Class = "resource_state"
	// ClassCapacity covers balance and liquidity shortfalls.
	ClassCapacity Class = "capacity"
	// ClassTransient covers server-side failures that may succeed on retry.
	ClassTransient Class = "transient"
	// ClassNetwork covers transport failures below the protocol layer.
	ClassNetwork Class = "network"
	// ClassUnknown captures codes the client does not recognize.
	ClassUnknown Class = "unknown"
)

// Wire-level error codes returned by the exchange. The local validator emits
// the same vocabulary so callers branch on one set of codes.
const (
	APIAuthRequired      = "auth_required"
	APIInvalidSignature  = "invalid_signature"
	APIRecvWindowExpired = "recv_window_expired"

	APIInvalidParams      = "invalid_params"
	APIInvalidPair        = "invalid_pair"
	APIInvalidOrderValue  = "invalid_order_value"
	APIValidationError    = "validation_error"
	APIPageOutOfRange     = "page_out_of_range"
	APIPageSizeOutOfRange = "page_size_out_of_range"

	APIOrderNotFound         = "order_not_found"
	APIOrderAlreadyFulfilled = "order_already_fulfilled"
	APIOrderAlreadyCanceled  = "order_already_canceled"
	APIOrderIsMarket         = "order_is_market"
	APIPermissionDenied      = "permission_denied"

	APINotEnoughAmount      = "not_enough_amount"
	APINotFoundCoinsForHold = "not_found_coins_for_hold"
	APINoMarketOffers       = "no_market_offers"

	APIInternalServerError = "internal_server_error"
	APIRateLimited         = "rate_limited"
)

var classByAPICode = map[string]Class{
	APIAuthRequired:      ClassAuth,
	APIInvalidSignature:  ClassAuth,
	APIRecvWindowExpired: ClassAuth,

	APIInvalidParams:      ClassValidation,
	APIInvalidPair:        ClassValidation,
	APIInvalidOrderValue:  ClassValidation,
	APIValidationError:    ClassValidation,
	APIPageOutOfRange:     ClassValidation,
	APIPageSizeOutOfRange: ClassValidation,

	APIOrderNotFound:         ClassResourceState,
	APIOrderAlreadyFulfilled: ClassResourceState,
	APIOrderAlreadyCanceled:  ClassResourceState,
	APIOrderIsMarket:         ClassResourceState,
	APIPermissionDenied:      ClassResourceState,

	APINotEnoughAmount:      ClassCapacity,
	APINotFoundCoinsForHold: ClassCapacity,
	APINoMarketOffers:       ClassCapacity,

	APIInternalServerError: ClassTransient,
	APIRateLimited:         ClassTransient,
}

// Classify maps a wire-level error code onto its handling class.
func Classify(apiCode string) Class {
	if class, ok := classByAPICode[strings.TrimSpace(apiCode)]; ok {
		return class
	}
	return ClassUnknown
}

// E captures structured error information produced across the citro-go stack.
type E struct {
	Op          string
	Class       Class
	APICode     string
	HTTP        int
	Message     string
	RawMsg      string
	Remediation string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the given handling class.
func New(class Class, opts ...Option) *E {
	e := &E{Class: class}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// FromAPICode constructs an envelope from a wire-level error code, deriving
// the handling class from the taxonomy.
func FromAPICode(apiCode, rawMsg string, opts ...Option) *E {
	code := strings.TrimSpace(apiCode)
	base := []Option{WithAPICode(code), WithRawMessage(rawMsg)}
	return New(Classify(code), append(base, opts...)...)
}

// WithOp records the operation that produced the error, e.g. "rpc.call".
func WithOp(op string) Option {
	trimmed := strings.TrimSpace(op)
	return func(e *E) {
		e.Op = trimmed
	}
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithRemediation attaches remediation guidance to the error.
func WithRemediation(remediation string) Option {
	trimmed := strings.TrimSpace(remediation)
	return func(e *E) {
		e.Remediation = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithAPICode captures the wire-level error code verbatim.
func WithAPICode(code string) Option {
	trimmed := strings.TrimSpace(code)
	return func(e *E) {
		e.APICode = trimmed
	}
}

// WithRawMessage captures the server error message verbatim.
func WithRawMessage(msg string) Option {
	return func(e *E) {
		e.RawMsg = msg
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	if op := strings.TrimSpace(e.Op); op != "" {
		parts = append(parts, "op="+op)
	}

	class := strings.TrimSpace(string(e.Class))
	if class == "" {
		class = string(ClassUnknown)
	}
	parts = append(parts, "class="+class)

	if e.APICode != "" {
		parts = append(parts, "api_code="+e.APICode)
	}
	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.Remediation != "" {
		parts = append(parts, "remediation="+strconv.Quote(e.Remediation))
	}
	if e.RawMsg != "" {
		parts = append(parts, "raw_msg="+strconv.Quote(e.RawMsg))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// AsE extracts a structured envelope from an error chain.
func AsE(err error) (*E, bool) {
	var e *E
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// ClassOf returns the handling class of err, or ClassUnknown when err carries
// no envelope.
func ClassOf(err error) Class {
	if e, ok := AsE(err); ok {
		return e.Class
	}
	return ClassUnknown
}

// Retryable reports whether err may succeed if the request is retried.
// Only transient server failures and network faults qualify; auth and
// validation rejections will fail the same way every time.
func Retryable(err error) bool {
	switch ClassOf(err) {
	case ClassTransient, ClassNetwork:
		return true
	default:
		return false
	}
}

// HasAPICode reports whether err carries the given wire-level code.
func HasAPICode(err error, apiCode string) bool {
	e, ok := AsE(err)
	return ok && e.APICode == apiCode
}
