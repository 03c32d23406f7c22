package rpc

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/citrohq/citro-go/errs"
	"github.com/citrohq/citro-go/orders"
	"github.com/citrohq/citro-go/schema"
)

const (
	minPage     = 1
	minPageSize = 1
	maxPageSize = 100
)

// TradingService wraps the private order methods. Every order passes local
// validation before any bytes are sent.
type TradingService struct {
	client    *Client
	validator *orders.Validator
}

// NewTradingService constructs the service on top of the transport and
// validator.
func NewTradingService(client *Client, validator *orders.Validator) *TradingService {
	return &TradingService{client: client, validator: validator}
}

// CreateOrder validates req and submits it. Server-side capacity rejections
// (not_enough_amount, no_market_offers) surface as-is.
func (s *TradingService) CreateOrder(ctx context.Context, req schema.OrderRequest, opts ...orders.Option) (schema.Order, error) {
	if _, err := s.validator.Validate(ctx, req, opts...); err != nil {
		return schema.Order{}, err
	}
	if req.ClientOrderID == "" {
		req.ClientOrderID = uuid.NewString()
	}
	result, err := s.client.Call(ctx, MethodCreateOrder, req)
	if err != nil {
		return schema.Order{}, err
	}
	return decodeOrder(result)
}

// OrderResult is the per-entry outcome of a batch submission.
type OrderResult struct {
	Order schema.Order
	Err   error
}

// CreateOrders submits up to 10 orders as one signed batch. Execution is not
// atomic: entries fail or succeed independently and each result carries its
// own error. Entries failing local validation are not sent at all.
func (s *TradingService) CreateOrders(ctx context.Context, reqs []schema.OrderRequest, opts ...orders.Option) ([]OrderResult, error) {
	if len(reqs) == 0 || len(reqs) > maxBatchSize {
		return nil, errs.FromAPICode(errs.APIInvalidParams, "",
			errs.WithOp("rpc.create_orders"),
			errs.WithMessage(fmt.Sprintf("batch size must be 1-%d, got %d", maxBatchSize, len(reqs))))
	}

	results := make([]OrderResult, len(reqs))
	batch := make([]Request, 0, len(reqs))
	indexByID := make(map[string]int, len(reqs))
	for i := range reqs {
		req := reqs[i]
		if _, err := s.validator.Validate(ctx, req, opts...); err != nil {
			results[i] = OrderResult{Err: err}
			continue
		}
		if req.ClientOrderID == "" {
			req.ClientOrderID = uuid.NewString()
		}
		id := uuid.NewString()
		indexByID[id] = i
		batch = append(batch, Request{Method: MethodCreateOrder, Params: req, ID: id})
	}
	if len(batch) == 0 {
		return results, nil
	}

	replies, err := s.client.CallBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	for _, reply := range replies {
		i, ok := indexByID[reply.ID]
		if !ok {
			continue
		}
		if reply.Err != nil {
			results[i] = OrderResult{Err: reply.Err}
			continue
		}
		order, decodeErr := decodeOrder(reply)
		results[i] = OrderResult{Order: order, Err: decodeErr}
	}
	return results, nil
}

type orderIDParams struct {
	OrderID string `json:"order_id"`
}

// CancelOrder requests cancellation of an open order. Cancelling an order
// already marked_for_cancel succeeds; cancelling a fulfilled or market order
// surfaces the server's resource-state rejection.
func (s *TradingService) CancelOrder(ctx context.Context, orderID string) (schema.Order, error) {
	result, err := s.client.Call(ctx, MethodCancelOrder, orderIDParams{OrderID: orderID})
	if err != nil {
		return schema.Order{}, err
	}
	return decodeOrder(result)
}

// GetOrder fetches the current projection of an order.
func (s *TradingService) GetOrder(ctx context.Context, orderID string) (schema.Order, error) {
	result, err := s.client.Call(ctx, MethodGetOrder, orderIDParams{OrderID: orderID})
	if err != nil {
		return schema.Order{}, err
	}
	return decodeOrder(result)
}

// OrdersQuery filters a paginated order-history listing.
type OrdersQuery struct {
	Symbol   string             `json:"symbol,omitempty"`
	Status   schema.OrderStatus `json:"status,omitempty"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// ListOrders returns one page of order history. Page bounds are checked
// client-side with the server's own error codes.
func (s *TradingService) ListOrders(ctx context.Context, query OrdersQuery) ([]schema.Order, error) {
	if query.Page < minPage {
		return nil, errs.FromAPICode(errs.APIPageOutOfRange, "",
			errs.WithOp("rpc.orders_history"),
			errs.WithMessage(fmt.Sprintf("page must be >= %d, got %d", minPage, query.Page)))
	}
	if query.PageSize < minPageSize || query.PageSize > maxPageSize {
		return nil, errs.FromAPICode(errs.APIPageSizeOutOfRange, "",
			errs.WithOp("rpc.orders_history"),
			errs.WithMessage(fmt.Sprintf("page_size must be %d-%d, got %d", minPageSize, maxPageSize, query.PageSize)))
	}
	result, err := s.client.Call(ctx, MethodOrdersHistory, query)
	if err != nil {
		return nil, err
	}
	var listed []schema.Order
	if err := result.Decode(&listed); err != nil {
		return nil, err
	}
	for _, order := range listed {
		if err := checkOrderProjection(order); err != nil {
			return nil, err
		}
	}
	return listed, nil
}

// decodeOrder parses an order projection and rejects malformed server state
// at the boundary.
func decodeOrder(result Result) (schema.Order, error) {
	if result.Err != nil {
		return schema.Order{}, result.Err
	}
	var order schema.Order
	if err := json.Unmarshal(result.Raw, &order); err != nil {
		return schema.Order{}, fmt.Errorf("rpc: decode order: %w", err)
	}
	if err := checkOrderProjection(order); err != nil {
		return schema.Order{}, err
	}
	return order, nil
}

func checkOrderProjection(order schema.Order) error {
	if !order.Status.Valid() {
		return errs.FromAPICode(errs.APIValidationError, "",
			errs.WithOp("rpc.decode_order"),
			errs.WithMessage(fmt.Sprintf("order %s: unknown status %q", order.ID, order.Status)))
	}
	if order.StopPriceGTE != nil && order.StopPriceLTE != nil {
		return errs.FromAPICode(errs.APIValidationError, "",
			errs.WithOp("rpc.decode_order"),
			errs.WithMessage(fmt.Sprintf("order %s: stop_price_gte and stop_price_lte are mutually exclusive", order.ID)))
	}
	return nil
}
