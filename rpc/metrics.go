package rpc

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type clientMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	gateWait metric.Float64Histogram
}

func newClientMetrics() *clientMetrics {
	meter := otel.Meter("citro.rpc")
	cm := new(clientMetrics)

	cm.requests, _ = meter.Int64Counter("citro_rpc_requests",
		metric.WithDescription("JSON-RPC requests sent, by method and outcome"),
		metric.WithUnit("{request}"))

	cm.latency, _ = meter.Float64Histogram("citro_rpc_latency",
		metric.WithDescription("JSON-RPC round-trip latency"),
		metric.WithUnit("ms"))

	cm.gateWait, _ = meter.Float64Histogram("citro_rpc_gate_wait",
		metric.WithDescription("Time spent waiting on the client-side rate gate"),
		metric.WithUnit("ms"))

	return cm
}

func (cm *clientMetrics) recordRequest(ctx context.Context, method, outcome string, elapsed time.Duration) {
	if cm == nil || cm.requests == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("outcome", outcome),
	)
	cm.requests.Add(ctx, 1, attrs)
	if cm.latency != nil {
		cm.latency.Record(ctx, float64(elapsed.Milliseconds()), attrs)
	}
}

func (cm *clientMetrics) recordGateWait(ctx context.Context, method string, waited time.Duration) {
	if cm == nil || cm.gateWait == nil {
		return
	}
	cm.gateWait.Record(ctx, float64(waited.Milliseconds()),
		metric.WithAttributes(attribute.String("method", method)))
}
