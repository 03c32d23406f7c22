package stream

import (
	"testing"

	json "github.com/goccy/go-json"
)

func walletFrame(snapshot bool, data string) Frame {
	return Frame{Key: Wallets(), Snapshot: snapshot, Data: json.RawMessage(data)}
}

func TestWalletMirrorSnapshotReplaces(t *testing.T) {
	mirror := NewWalletMirror()
	if err := mirror.Apply(walletFrame(true,
		`{"type":"snapshot","balances":[`+
			`{"coin":"BTC","available":"1","in_orders":"0","total":"1"},`+
			`{"coin":"ETH","available":"5","in_orders":"5","total":"10"}]}`)); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
	if got := len(mirror.All()); got != 2 {
		t.Fatalf("expected 2 balances, got %d", got)
	}

	if err := mirror.Apply(walletFrame(true,
		`{"type":"snapshot","balances":[{"coin":"USDT","available":"100","in_orders":"0","total":"100"}]}`)); err != nil {
		t.Fatalf("apply second snapshot: %v", err)
	}
	if _, ok := mirror.Balance("BTC"); ok {
		t.Fatal("a snapshot must replace the full listing")
	}
	if balance, ok := mirror.Balance("usdt"); !ok || balance.Total.String() != "100" {
		t.Fatalf("unexpected balance: %+v %v", balance, ok)
	}
}

func TestWalletMirrorDeltaUpserts(t *testing.T) {
	mirror := NewWalletMirror()
	if err := mirror.Apply(walletFrame(true,
		`{"type":"snapshot","balances":[{"coin":"BTC","available":"1","in_orders":"0","total":"1"}]}`)); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
	if err := mirror.Apply(walletFrame(false,
		`{"balances":[{"coin":"BTC","available":"0.5","in_orders":"0.5","total":"1"},`+
			`{"coin":"ETH","available":"2","in_orders":"0","total":"2"}]}`)); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	btc, ok := mirror.Balance("BTC")
	if !ok || btc.Available.String() != "0.5" || btc.InOrders.String() != "0.5" {
		t.Fatalf("delta should update BTC: %+v", btc)
	}
	if _, ok := mirror.Balance("ETH"); !ok {
		t.Fatal("delta should insert ETH")
	}
	if got := len(mirror.All()); got != 2 {
		t.Fatalf("expected 2 balances, got %d", got)
	}
}

func TestWalletMirrorRejectsDriftedBalance(t *testing.T) {
	mirror := NewWalletMirror()
	err := mirror.Apply(walletFrame(false,
		`{"balances":[{"coin":"BTC","available":"1","in_orders":"1","total":"3"}]}`))
	if err == nil {
		t.Fatal("the balance invariant is enforced at decode time")
	}
}

func TestWalletMirrorAllSorted(t *testing.T) {
	mirror := NewWalletMirror()
	if err := mirror.Apply(walletFrame(true,
		`{"type":"snapshot","balances":[`+
			`{"coin":"USDT","available":"1","in_orders":"0","total":"1"},`+
			`{"coin":"BTC","available":"1","in_orders":"0","total":"1"},`+
			`{"coin":"ETH","available":"1","in_orders":"0","total":"1"}]}`)); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
	all := mirror.All()
	if all[0].Coin != "BTC" || all[1].Coin != "ETH" || all[2].Coin != "USDT" {
		t.Fatalf("balances must sort by coin: %+v", all)
	}
}
