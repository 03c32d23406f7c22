package errs

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassifyCoversTaxonomy(t *testing.T) {
	cases := map[string]Class{
		APIAuthRequired:         ClassAuth,
		APIInvalidSignature:     ClassAuth,
		APIRecvWindowExpired:    ClassAuth,
		APIInvalidParams:        ClassValidation,
		APIInvalidPair:          ClassValidation,
		APIInvalidOrderValue:    ClassValidation,
		APIPageOutOfRange:       ClassValidation,
		APIOrderNotFound:        ClassResourceState,
		APIOrderAlreadyCanceled: ClassResourceState,
		APIOrderIsMarket:        ClassResourceState,
		APINotEnoughAmount:      ClassCapacity,
		APINoMarketOffers:       ClassCapacity,
		APIInternalServerError:  ClassTransient,
		APIRateLimited:          ClassTransient,
		"something_new":         ClassUnknown,
	}
	for code, want := range cases {
		if got := Classify(code); got != want {
			t.Errorf("Classify(%q) = %q, want %q", code, got, want)
		}
	}
}

func TestFromAPICodeBuildsEnvelope(t *testing.T) {
	err := FromAPICode(APIOrderAlreadyFulfilled, "order 42 already fulfilled",
		WithOp("rpc.cancel_order"), WithHTTP(400))

	if err.Class != ClassResourceState {
		t.Fatalf("expected resource_state class, got %q", err.Class)
	}
	if err.APICode != APIOrderAlreadyFulfilled {
		t.Fatalf("expected api code preserved, got %q", err.APICode)
	}
	out := err.Error()
	for _, want := range []string{"op=rpc.cancel_order", "class=resource_state", "api_code=order_already_fulfilled", "http=400"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in error string: %s", want, out)
		}
	}
}

func TestRetryableOnlyForTransientAndNetwork(t *testing.T) {
	if !Retryable(FromAPICode(APIInternalServerError, "")) {
		t.Fatal("internal_server_error should be retryable")
	}
	if !Retryable(FromAPICode(APIRateLimited, "")) {
		t.Fatal("rate_limited should be retryable")
	}
	if !Retryable(New(ClassNetwork, WithCause(errors.New("dial tcp: refused")))) {
		t.Fatal("network failures should be retryable")
	}
	for _, code := range []string{APIInvalidSignature, APIRecvWindowExpired, APIInvalidParams, APIOrderNotFound, APINotEnoughAmount} {
		if Retryable(FromAPICode(code, "")) {
			t.Fatalf("%s must not be retryable", code)
		}
	}
}

func TestUnwrapAndAs(t *testing.T) {
	cause := errors.New("socket closed")
	err := fmt.Errorf("call failed: %w", New(ClassNetwork, WithCause(cause)))

	e, ok := AsE(err)
	if !ok {
		t.Fatal("expected envelope in chain")
	}
	if !errors.Is(err, cause) {
		t.Fatal("expected cause reachable through Unwrap")
	}
	if e.Class != ClassNetwork {
		t.Fatalf("expected network class, got %q", e.Class)
	}
}

func TestHasAPICode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", FromAPICode(APIOrderIsMarket, ""))
	if !HasAPICode(err, APIOrderIsMarket) {
		t.Fatal("expected HasAPICode to see through wrapping")
	}
	if HasAPICode(err, APIOrderNotFound) {
		t.Fatal("unexpected code match")
	}
	if HasAPICode(errors.New("plain"), APIOrderIsMarket) {
		t.Fatal("plain errors carry no api code")
	}
}

func TestNilErrorString(t *testing.T) {
	var e *E
	if got := e.Error(); got != "<nil>" {
		t.Fatalf("expected <nil> string for nil error, got %q", got)
	}
}
