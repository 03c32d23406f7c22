package schema

import "testing"

func TestOrderStatusLifecycle(t *testing.T) {
	path := []OrderStatus{
		OrderStatusCreated,
		OrderStatusPlaced,
		OrderStatusInOrderBook,
		OrderStatusPartiallyFulfilled,
		OrderStatusFulfilled,
	}
	for i := 0; i < len(path)-1; i++ {
		if !path[i].CanTransition(path[i+1]) {
			t.Fatalf("%s -> %s should be legal", path[i], path[i+1])
		}
	}
}

func TestMarketOrderSkipsBook(t *testing.T) {
	if !OrderStatusCreated.CanTransition(OrderStatusFulfilled) {
		t.Fatal("market orders resolve straight from created to fulfilled")
	}
}

func TestCancellationReachableFromNonTerminal(t *testing.T) {
	for _, s := range []OrderStatus{
		OrderStatusCreated, OrderStatusPlaced,
		OrderStatusInOrderBook, OrderStatusPartiallyFulfilled,
	} {
		if !s.CanTransition(OrderStatusMarkedForCancel) {
			t.Errorf("%s should allow marked_for_cancel", s)
		}
		if !s.CanTransition(OrderStatusCanceled) {
			t.Errorf("%s should allow canceled", s)
		}
	}
}

func TestMarkedForCancelMayStillFill(t *testing.T) {
	if !OrderStatusMarkedForCancel.CanTransition(OrderStatusFulfilled) {
		t.Fatal("a fill can race the cancel request")
	}
	if !OrderStatusMarkedForCancel.CanTransition(OrderStatusCanceled) {
		t.Fatal("marked_for_cancel -> canceled should be legal")
	}
}

func TestTerminalStatesAreFinal(t *testing.T) {
	for _, s := range []OrderStatus{OrderStatusFulfilled, OrderStatusCompleted, OrderStatusCanceled} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		for next := range orderStatusTransitions {
			if next != s && s.CanTransition(next) {
				t.Errorf("terminal %s must not move to %s", s, next)
			}
		}
	}
}

func TestSameStateAlwaysAllowed(t *testing.T) {
	for s := range orderStatusTransitions {
		if !s.CanTransition(s) {
			t.Errorf("repeated %s frame should be harmless", s)
		}
	}
}

func TestIllegalTransitions(t *testing.T) {
	cases := [][2]OrderStatus{
		{OrderStatusCreated, OrderStatusInOrderBook},
		{OrderStatusPlaced, OrderStatusPartiallyFulfilled},
		{OrderStatusCanceled, OrderStatusPlaced},
		{OrderStatusFulfilled, OrderStatusCanceled},
	}
	for _, c := range cases {
		if c[0].CanTransition(c[1]) {
			t.Errorf("%s -> %s must be rejected", c[0], c[1])
		}
	}
}

func TestValid(t *testing.T) {
	if !OrderStatusPlaced.Valid() {
		t.Fatal("placed should be valid")
	}
	if OrderStatus("open").Valid() {
		t.Fatal("unknown statuses are invalid")
	}
}
