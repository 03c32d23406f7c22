// Package ratelimit gates outbound HTTP calls behind a shared token bucket.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultBaseline is the sustained request rate per second.
	DefaultBaseline = 5
	// DefaultBurst is the extra capacity on top of the baseline.
	DefaultBurst = 5
	// DefaultPenalty is the backoff window applied after an HTTP 429.
	DefaultPenalty = time.Second
)

// Gate is a token bucket shared by reference across all transport calls.
// Tokens are spent when a request is sent and never refunded: rate limiting
// reflects requests sent, not responses received.
type Gate struct {
	limiter *rate.Limiter
	penalty time.Duration

	mu           sync.Mutex
	penaltyUntil time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithPenalty overrides the backoff window applied by Penalize.
func WithPenalty(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.penalty = d
		}
	}
}

// WithClock overrides the gate's time source, primarily for testing.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) GateOption {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// NewGate constructs a gate refilling at baseline tokens per second with
// capacity baseline+burst.
func NewGate(baseline float64, burst int, opts ...GateOption) *Gate {
	if baseline <= 0 {
		baseline = DefaultBaseline
	}
	if burst < 0 {
		burst = DefaultBurst
	}
	capacity := int(baseline) + burst
	if capacity < 1 {
		capacity = 1
	}
	g := &Gate{
		limiter: rate.NewLimiter(rate.Limit(baseline), capacity),
		penalty: DefaultPenalty,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Acquire blocks until a token is available or ctx is done. Requests are
// queued, never dropped.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.waitPenalty(ctx); err != nil {
		return err
	}
	now := g.now()
	reservation := g.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return fmt.Errorf("ratelimit: request exceeds bucket capacity")
	}
	delay := reservation.DelayFrom(now)
	if delay <= 0 {
		return nil
	}
	if err := g.sleep(ctx, delay); err != nil {
		reservation.CancelAt(g.now())
		return fmt.Errorf("ratelimit: acquire canceled: %w", err)
	}
	return nil
}

// Penalize drains the bucket and refuses new acquisitions for the penalty
// window. The transport calls it on HTTP 429, where Retry-After is not
// guaranteed.
func (g *Gate) Penalize() {
	now := g.now()
	if tokens := int(g.limiter.TokensAt(now)); tokens > 0 {
		g.limiter.AllowN(now, tokens)
	}
	g.mu.Lock()
	until := now.Add(g.penalty)
	if until.After(g.penaltyUntil) {
		g.penaltyUntil = until
	}
	g.mu.Unlock()
}

func (g *Gate) waitPenalty(ctx context.Context) error {
	for {
		g.mu.Lock()
		until := g.penaltyUntil
		g.mu.Unlock()
		now := g.now()
		if !now.Before(until) {
			return nil
		}
		if err := g.sleep(ctx, until.Sub(now)); err != nil {
			return fmt.Errorf("ratelimit: penalty wait canceled: %w", err)
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
