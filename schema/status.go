package schema

// OrderStatus is the closed enumeration of server-side order states.
type OrderStatus string

const (
	// OrderStatusCreated means the order was accepted but not yet placed.
	OrderStatusCreated OrderStatus = "created"
	// OrderStatusPlaced means the order passed server-side validation.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusInOrderBook means the order rests in the book.
	OrderStatusInOrderBook OrderStatus = "in_order_book"
	// OrderStatusPartiallyFulfilled means part of the order has traded.
	OrderStatusPartiallyFulfilled OrderStatus = "partially_fulfilled"
	// OrderStatusFulfilled means the full amount traded.
	OrderStatusFulfilled OrderStatus = "fulfilled"
	// OrderStatusCompleted means the order finished with settlement applied.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusMarkedForCancel means cancellation was requested.
	OrderStatusMarkedForCancel OrderStatus = "marked_for_cancel"
	// OrderStatusCanceled means the order was removed without (further) fills.
	OrderStatusCanceled OrderStatus = "canceled"
)

// Valid reports whether the status is part of the enumeration.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusTransitions[s]
	return ok
}

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFulfilled, OrderStatusCompleted, OrderStatusCanceled:
		return true
	default:
		return false
	}
}

// Cancellation is a side transition reachable from every non-terminal state;
// market orders skip the book-resident states and resolve straight to
// fulfilled.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusCreated: {
		OrderStatusPlaced, OrderStatusFulfilled,
		OrderStatusMarkedForCancel, OrderStatusCanceled,
	},
	OrderStatusPlaced: {
		OrderStatusInOrderBook, OrderStatusFulfilled,
		OrderStatusMarkedForCancel, OrderStatusCanceled,
	},
	OrderStatusInOrderBook: {
		OrderStatusPartiallyFulfilled, OrderStatusFulfilled, OrderStatusCompleted,
		OrderStatusMarkedForCancel, OrderStatusCanceled,
	},
	OrderStatusPartiallyFulfilled: {
		OrderStatusPartiallyFulfilled, OrderStatusFulfilled, OrderStatusCompleted,
		OrderStatusMarkedForCancel, OrderStatusCanceled,
	},
	OrderStatusMarkedForCancel: {
		OrderStatusCanceled, OrderStatusFulfilled, OrderStatusCompleted,
	},
	OrderStatusFulfilled: {},
	OrderStatusCompleted: {},
	OrderStatusCanceled:  {},
}

// CanTransition reports whether moving from s to next is legal. Staying in
// the same state is always allowed so repeated frames are harmless.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s == next {
		return true
	}
	allowed, ok := orderStatusTransitions[s]
	if !ok {
		return false
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}
