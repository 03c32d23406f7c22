// Package client wires the citro-go components into one ready-to-use client.
package client

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/citrohq/citro-go/config"
	"github.com/citrohq/citro-go/internal/telemetry"
	"github.com/citrohq/citro-go/markets"
	"github.com/citrohq/citro-go/orders"
	"github.com/citrohq/citro-go/ratelimit"
	"github.com/citrohq/citro-go/rpc"
	"github.com/citrohq/citro-go/stream"
)

// Client bundles the transport, metadata cache, validator, typed services,
// and the websocket subscription manager behind one construction site.
type Client struct {
	cfg       config.Settings
	gate      *ratelimit.Gate
	transport *rpc.Client
	cache     *markets.Cache
	validator *orders.Validator
	markets   *rpc.MarketsService
	account   *rpc.AccountService
	trading   *rpc.TradingService
	stream    *stream.Manager

	telemetryShutdown func(context.Context) error
}

// Option adjusts client construction.
type Option func(*builder)

type builder struct {
	rpcOpts    []rpc.ClientOption
	streamOpts []stream.ManagerOption
	gateOpts   []ratelimit.GateOption
}

// WithRPCOptions forwards options to the JSON-RPC transport.
func WithRPCOptions(opts ...rpc.ClientOption) Option {
	return func(b *builder) {
		b.rpcOpts = append(b.rpcOpts, opts...)
	}
}

// WithStreamOptions forwards options to the subscription manager.
func WithStreamOptions(opts ...stream.ManagerOption) Option {
	return func(b *builder) {
		b.streamOpts = append(b.streamOpts, opts...)
	}
}

// WithGateOptions forwards options to the rate gate.
func WithGateOptions(opts ...ratelimit.GateOption) Option {
	return func(b *builder) {
		b.gateOpts = append(b.gateOpts, opts...)
	}
}

// New constructs a client from settings. The rate gate is created once and
// shared by reference across every transport call.
func New(ctx context.Context, cfg config.Settings, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var b builder
	for _, opt := range opts {
		if opt != nil {
			opt(&b)
		}
	}

	telemetryShutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	gateOpts := append([]ratelimit.GateOption{ratelimit.WithPenalty(cfg.RateLimit.Penalty)}, b.gateOpts...)
	gate := ratelimit.NewGate(cfg.RateLimit.Baseline, cfg.RateLimit.Burst, gateOpts...)
	transport := rpc.NewClient(cfg, gate, b.rpcOpts...)
	marketsService := rpc.NewMarketsService(transport)
	cache := markets.NewCache(marketsService, markets.WithMaxAge(cfg.MarketsMaxAge))
	validator := orders.NewValidator(cache)

	c := &Client{
		cfg:               cfg,
		gate:              gate,
		transport:         transport,
		cache:             cache,
		validator:         validator,
		markets:           marketsService,
		account:           rpc.NewAccountService(transport),
		trading:           rpc.NewTradingService(transport, validator),
		stream:            stream.NewManager(cfg, b.streamOpts...),
		telemetryShutdown: telemetryShutdown,
	}
	return c, nil
}

// RPC exposes the raw JSON-RPC transport for methods without a typed wrapper.
func (c *Client) RPC() *rpc.Client { return c.transport }

// Markets exposes the public market-data methods.
func (c *Client) Markets() *rpc.MarketsService { return c.markets }

// Account exposes the private account methods.
func (c *Client) Account() *rpc.AccountService { return c.account }

// Trading exposes the private order methods.
func (c *Client) Trading() *rpc.TradingService { return c.trading }

// MetadataCache exposes the market metadata cache.
func (c *Client) MetadataCache() *markets.Cache { return c.cache }

// Validator exposes the order validator.
func (c *Client) Validator() *orders.Validator { return c.validator }

// Stream exposes the websocket subscription manager. Call its Start before
// subscribing when live data is needed.
func (c *Client) Stream() *stream.Manager { return c.stream }

// Close tears down the stream and telemetry, aggregating shutdown errors.
func (c *Client) Close(ctx context.Context) error {
	var result *multierror.Error
	if c.stream != nil {
		c.stream.Close()
	}
	if c.telemetryShutdown != nil {
		if err := c.telemetryShutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("telemetry shutdown: %w", err))
		}
	}
	return result.ErrorOrNil()
}
