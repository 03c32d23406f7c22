package stream

import (
	"testing"

	json "github.com/goccy/go-json"
)

func bookFrame(snapshot bool, data string) Frame {
	return Frame{
		Key:      Orderbook("BTC/USDT"),
		Snapshot: snapshot,
		Data:     json.RawMessage(data),
	}
}

func TestBookMirrorSnapshotReplaces(t *testing.T) {
	mirror := NewBookMirror(0)
	if mirror.Initialized() {
		t.Fatal("mirror starts uninitialized")
	}

	err := mirror.Apply(bookFrame(true,
		`{"symbol":"BTC/USDT","sequence":10,"bids":[["100","1"],["99","2"]],"asks":[["101","1"]]}`))
	if err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
	if !mirror.Initialized() {
		t.Fatal("snapshot should initialize the mirror")
	}

	err = mirror.Apply(bookFrame(true,
		`{"symbol":"BTC/USDT","sequence":20,"bids":[["98","5"]],"asks":[["102","3"]]}`))
	if err != nil {
		t.Fatalf("apply second snapshot: %v", err)
	}
	book := mirror.Snapshot()
	if len(book.Bids) != 1 || book.Bids[0].Price != "98" {
		t.Fatalf("snapshot must replace, not merge: %+v", book.Bids)
	}
	if book.Sequence != 20 {
		t.Fatalf("unexpected sequence: %d", book.Sequence)
	}
}

func TestBookMirrorDeltaMutates(t *testing.T) {
	mirror := NewBookMirror(0)
	if err := mirror.Apply(bookFrame(true,
		`{"symbol":"BTC/USDT","sequence":10,"bids":[["100","1"],["99","2"]],"asks":[["101","1"]]}`)); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	// Update one level, delete another with a zero quantity, add a third.
	if err := mirror.Apply(bookFrame(false,
		`{"symbol":"BTC/USDT","sequence":11,"bids":[["100","3"],["99","0"],["98","4"]]}`)); err != nil {
		t.Fatalf("apply delta: %v", err)
	}
	book := mirror.Snapshot()
	if len(book.Bids) != 2 {
		t.Fatalf("expected 2 bids after delta, got %+v", book.Bids)
	}
	if book.Bids[0].Price != "100" || book.Bids[0].Quantity != "3" {
		t.Fatalf("top bid should be updated: %+v", book.Bids[0])
	}
	if book.Bids[1].Price != "98" {
		t.Fatalf("new level should be inserted: %+v", book.Bids[1])
	}
}

func TestBookMirrorDropsStaleSequences(t *testing.T) {
	mirror := NewBookMirror(0)
	if err := mirror.Apply(bookFrame(true,
		`{"symbol":"BTC/USDT","sequence":10,"bids":[["100","1"]],"asks":[["101","1"]]}`)); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
	if err := mirror.Apply(bookFrame(false,
		`{"symbol":"BTC/USDT","sequence":9,"bids":[["100","9"]]}`)); err != nil {
		t.Fatalf("apply stale delta: %v", err)
	}
	if got := mirror.Snapshot().Bids[0].Quantity; got != "1" {
		t.Fatalf("stale delta must be dropped, got quantity %s", got)
	}
}

func TestBookMirrorIgnoresDeltasBeforeSnapshot(t *testing.T) {
	mirror := NewBookMirror(0)
	if err := mirror.Apply(bookFrame(false,
		`{"symbol":"BTC/USDT","sequence":5,"bids":[["100","1"]]}`)); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if mirror.Initialized() {
		t.Fatal("a delta must not initialize the mirror")
	}
	if got := len(mirror.Snapshot().Bids); got != 0 {
		t.Fatalf("pre-snapshot deltas have no base, got %d bids", got)
	}
}

func TestBookMirrorOrderingAndDepth(t *testing.T) {
	mirror := NewBookMirror(2)
	if err := mirror.Apply(bookFrame(true,
		`{"symbol":"BTC/USDT","sequence":1,`+
			`"bids":[["99","1"],["101","1"],["100","1"]],`+
			`"asks":[["103","1"],["102","1"],["104","1"]]}`)); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}
	book := mirror.Snapshot()
	if len(book.Bids) != 2 || book.Bids[0].Price != "101" || book.Bids[1].Price != "100" {
		t.Fatalf("bids must be descending and depth-limited: %+v", book.Bids)
	}
	if len(book.Asks) != 2 || book.Asks[0].Price != "102" || book.Asks[1].Price != "103" {
		t.Fatalf("asks must be ascending and depth-limited: %+v", book.Asks)
	}

	bid, ask, ok := mirror.Best()
	if !ok || bid.Price != "101" || ask.Price != "102" {
		t.Fatalf("unexpected top of book: %+v %+v %v", bid, ask, ok)
	}
}
