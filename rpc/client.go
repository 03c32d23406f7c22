package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/citrohq/citro-go/config"
	"github.com/citrohq/citro-go/errs"
	"github.com/citrohq/citro-go/internal/observability"
	"github.com/citrohq/citro-go/internal/signing"
	"github.com/citrohq/citro-go/ratelimit"
)

const (
	jsonrpcPath  = "/public/v1/jsonrpc"
	maxBatchSize = 10

	headerAPIKey     = "X-CITRO-API-KEY"
	headerTimestamp  = "X-CITRO-TIMESTAMP"
	headerRecvWindow = "X-CITRO-RECV-WINDOW"
	headerSignature  = "X-CITRO-SIGNATURE"
)

// Client sends single and batched JSON-RPC requests over HTTP. Calls may run
// concurrently; they serialize only on the shared rate gate.
type Client struct {
	httpClient *http.Client
	endpoint   string
	creds      config.Credentials
	recvWindow time.Duration
	maxRetries int
	gate       *ratelimit.Gate
	clock      func() time.Time
	newID      func() string
	metrics    *clientMetrics
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithClock overrides the timestamp source used for signing, primarily for
// testing.
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithIDGenerator overrides the default UUID request-id generator.
func WithIDGenerator(newID func() string) ClientOption {
	return func(c *Client) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewClient constructs a transport from settings and a shared rate gate.
func NewClient(cfg config.Settings, gate *ratelimit.Gate, opts ...ClientOption) *Client {
	if gate == nil {
		gate = ratelimit.NewGate(cfg.RateLimit.Baseline, cfg.RateLimit.Burst,
			ratelimit.WithPenalty(cfg.RateLimit.Penalty))
	}
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		endpoint:   strings.TrimRight(cfg.Endpoints.RESTBaseURL, "/") + jsonrpcPath,
		creds:      cfg.Credentials,
		recvWindow: cfg.RecvWindow,
		maxRetries: cfg.MaxRetries,
		gate:       gate,
		clock:      time.Now,
		newID:      uuid.NewString,
		metrics:    newClientMetrics(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Gate exposes the shared rate gate.
func (c *Client) Gate() *ratelimit.Gate { return c.gate }

// Call sends a single JSON-RPC request and returns its result. A UUID id is
// generated when req carries none, so the response can always be correlated.
func (c *Client) Call(ctx context.Context, method string, params any) (Result, error) {
	return c.CallWithID(ctx, Request{Method: method, Params: params})
}

// CallWithID sends a single JSON-RPC request with the caller's id.
func (c *Client) CallWithID(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Method) == "" {
		return Result{}, errs.FromAPICode(errs.APIInvalidParams, "",
			errs.WithOp("rpc.call"), errs.WithMessage("method required"))
	}
	if req.ID == "" {
		req.ID = c.newID()
	}

	var result Result
	err := c.withRetry(ctx, "rpc.call", func() error {
		body, err := json.Marshal(wireRequest{
			JSONRPC: jsonrpcVersion,
			Method:  req.Method,
			Params:  req.Params,
			ID:      req.ID,
		})
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		raw, status, err := c.post(ctx, "rpc.call", req.Method, body, Private(req.Method))
		if err != nil {
			return err
		}
		var resp wireResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		result = Result{ID: resp.ID, Raw: resp.Result, Err: resp.Error.toErr("rpc.call", status)}
		if result.Err != nil && errs.Retryable(result.Err) {
			return result.Err
		}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, result.Err
}

// CallBatch sends up to 10 requests as one HTTP call. The whole payload is
// signed once and consumes one rate-limit token. Execution is not atomic: the
// server may fulfill some entries and fail others, and responses arrive in
// any order, so every entry must carry a unique id.
func (c *Client) CallBatch(ctx context.Context, reqs []Request) ([]Result, error) {
	if len(reqs) == 0 || len(reqs) > maxBatchSize {
		return nil, errs.FromAPICode(errs.APIInvalidParams, "",
			errs.WithOp("rpc.call_batch"),
			errs.WithMessage(fmt.Sprintf("batch size must be 1-%d, got %d", maxBatchSize, len(reqs))))
	}
	wires := make([]wireRequest, len(reqs))
	seen := make(map[string]struct{}, len(reqs))
	private := false
	for i, req := range reqs {
		if strings.TrimSpace(req.Method) == "" {
			return nil, errs.FromAPICode(errs.APIInvalidParams, "",
				errs.WithOp("rpc.call_batch"),
				errs.WithMessage(fmt.Sprintf("entry %d: method required", i)))
		}
		id := req.ID
		if id == "" {
			id = c.newID()
		}
		if _, dup := seen[id]; dup {
			return nil, errs.FromAPICode(errs.APIInvalidParams, "",
				errs.WithOp("rpc.call_batch"),
				errs.WithMessage(fmt.Sprintf("duplicate request id %q", id)))
		}
		seen[id] = struct{}{}
		wires[i] = wireRequest{JSONRPC: jsonrpcVersion, Method: req.Method, Params: req.Params, ID: id}
		if Private(req.Method) {
			private = true
		}
	}

	var results []Result
	err := c.withRetry(ctx, "rpc.call_batch", func() error {
		body, err := json.Marshal(wires)
		if err != nil {
			return fmt.Errorf("marshal batch: %w", err)
		}
		raw, status, err := c.post(ctx, "rpc.call_batch", "batch", body, private)
		if err != nil {
			return err
		}
		var resps []wireResponse
		if err := json.Unmarshal(raw, &resps); err != nil {
			return fmt.Errorf("decode batch response: %w", err)
		}
		byID := make(map[string]wireResponse, len(resps))
		for _, resp := range resps {
			byID[resp.ID] = resp
		}
		results = make([]Result, len(wires))
		for i, wire := range wires {
			resp, ok := byID[wire.ID]
			if !ok {
				results[i] = Result{ID: wire.ID, Err: errs.New(errs.ClassUnknown,
					errs.WithOp("rpc.call_batch"),
					errs.WithMessage(fmt.Sprintf("no response for id %q", wire.ID)))}
				continue
			}
			results[i] = Result{ID: wire.ID, Raw: resp.Result, Err: resp.Error.toErr("rpc.call_batch", status)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// post sends body to the JSON-RPC endpoint after acquiring a rate token,
// signing the exact body bytes when private. Tokens are not refunded on
// cancellation.
func (c *Client) post(ctx context.Context, op, method string, body []byte, private bool) ([]byte, int, error) {
	waitStart := c.clock()
	if err := c.gate.Acquire(ctx); err != nil {
		return nil, 0, errs.New(errs.ClassNetwork,
			errs.WithOp(op), errs.WithMessage("rate gate wait aborted"), errs.WithCause(err))
	}
	c.metrics.recordGateWait(ctx, method, c.clock().Sub(waitStart))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if private {
		timestamp := signing.Timestamp(c.clock)
		window := signing.RecvWindow(c.recvWindow)
		httpReq.Header.Set(headerAPIKey, c.creds.APIKey)
		httpReq.Header.Set(headerTimestamp, timestamp)
		httpReq.Header.Set(headerRecvWindow, window)
		httpReq.Header.Set(headerSignature,
			signing.Sign(c.creds.APISecret, timestamp, c.creds.APIKey, window, body))
	}

	start := c.clock()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.recordRequest(ctx, method, "network_error", c.clock().Sub(start))
		return nil, 0, errs.New(errs.ClassNetwork,
			errs.WithOp(op), errs.WithMessage("http request failed"), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.gate.Penalize()
		c.metrics.recordRequest(ctx, method, "rate_limited", c.clock().Sub(start))
		return nil, resp.StatusCode, errs.FromAPICode(errs.APIRateLimited, "",
			errs.WithOp(op), errs.WithHTTP(resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, errs.New(errs.ClassNetwork,
			errs.WithOp(op), errs.WithMessage("read response body"), errs.WithCause(err))
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		c.metrics.recordRequest(ctx, method, "server_error", c.clock().Sub(start))
		return nil, resp.StatusCode, errs.FromAPICode(errs.APIInternalServerError,
			strings.TrimSpace(string(raw)),
			errs.WithOp(op), errs.WithHTTP(resp.StatusCode))
	}
	c.metrics.recordRequest(ctx, method, "ok", c.clock().Sub(start))
	observability.Log().Debug("rpc response",
		observability.Field{Key: "method", Value: method},
		observability.Field{Key: "status", Value: resp.StatusCode})
	return raw, resp.StatusCode, nil
}

// withRetry re-runs attempt on transient and network failures with bounded
// exponential backoff. Signed attempts pick up a fresh timestamp each time;
// auth and validation failures are never retried.
func (c *Client) withRetry(ctx context.Context, op string, attempt func() error) error {
	backoffCfg := backoff.NewExponentialBackOff()
	backoffCfg.InitialInterval = 200 * time.Millisecond
	backoffCfg.MaxInterval = 5 * time.Second

	tries := c.maxRetries
	if tries < 1 {
		tries = 1
	}
	var lastErr error
	for i := 0; i < tries; i++ {
		lastErr = attempt()
		if lastErr == nil {
			return nil
		}
		if !errs.Retryable(lastErr) || i == tries-1 {
			return lastErr
		}
		sleep := backoffCfg.NextBackOff()
		if sleep == backoff.Stop {
			return lastErr
		}
		observability.Log().Debug("rpc retry",
			observability.Field{Key: "op", Value: op},
			observability.Field{Key: "attempt", Value: i + 1},
			observability.Field{Key: "backoff", Value: sleep.String()})
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(sleep):
		}
	}
	return lastErr
}
