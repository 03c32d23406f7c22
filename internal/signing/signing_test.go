package signing

import (
	"strconv"
	"testing"
	"time"
)

func TestSignDeterministic(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","method":"wallets","id":"1"}`)
	first := Sign("secret", "1700000000000", "key", "5000", payload)
	second := Sign("secret", "1700000000000", "key", "5000", payload)
	if first != second {
		t.Fatalf("same inputs must sign identically: %s vs %s", first, second)
	}
	if len(first) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(first))
	}
}

func TestSignSensitiveToEveryByte(t *testing.T) {
	payload := []byte(`{"jsonrpc":"2.0","method":"wallets","id":"1"}`)
	base := Sign("secret", "1700000000000", "key", "5000", payload)

	mutated := append([]byte(nil), payload...)
	mutated[len(mutated)-2] = '2'
	if Sign("secret", "1700000000000", "key", "5000", mutated) == base {
		t.Fatal("single-byte payload change must change the signature")
	}
	if Sign("secret", "1700000000001", "key", "5000", payload) == base {
		t.Fatal("timestamp change must change the signature")
	}
	if Sign("other", "1700000000000", "key", "5000", payload) == base {
		t.Fatal("secret change must change the signature")
	}
	if Sign("secret", "1700000000000", "key2", "5000", payload) == base {
		t.Fatal("api key change must change the signature")
	}
	if Sign("secret", "1700000000000", "key", "6000", payload) == base {
		t.Fatal("recv window change must change the signature")
	}
}

func TestSignConcatenationOrder(t *testing.T) {
	// The signature covers timestamp+apiKey+recvWindow+payload as one byte
	// string; shifting bytes between fields must not collide.
	a := Sign("s", "12", "3", "4", []byte("5"))
	b := Sign("s", "1", "23", "4", []byte("5"))
	if a != b {
		t.Fatal("signature is defined over the concatenated byte string")
	}
}

func TestTimestampMilliseconds(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	got := Timestamp(func() time.Time { return at })
	if got != "1700000000123" {
		t.Fatalf("Timestamp = %q", got)
	}
	if _, err := strconv.ParseInt(Timestamp(nil), 10, 64); err != nil {
		t.Fatalf("default clock timestamp not numeric: %v", err)
	}
}

func TestRecvWindow(t *testing.T) {
	if got := RecvWindow(5 * time.Second); got != "5000" {
		t.Fatalf("RecvWindow = %q, want 5000", got)
	}
}
