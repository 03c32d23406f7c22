package stream

import (
	"context"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type managerMetrics struct {
	connects    metric.Int64Counter
	disconnects metric.Int64Counter
	frames      metric.Int64Counter
	activeSubs  metric.Int64ObservableGauge

	active atomic.Int64
}

func newManagerMetrics() *managerMetrics {
	meter := otel.Meter("citro.stream")
	mm := new(managerMetrics)

	mm.connects, _ = meter.Int64Counter("citro_stream_connects",
		metric.WithDescription("Websocket connections established, including reconnects"),
		metric.WithUnit("{connection}"))

	mm.disconnects, _ = meter.Int64Counter("citro_stream_disconnects",
		metric.WithDescription("Websocket connections lost"),
		metric.WithUnit("{connection}"))

	mm.frames, _ = meter.Int64Counter("citro_stream_frames",
		metric.WithDescription("Data frames dispatched to subscribers"),
		metric.WithUnit("{frame}"))

	mm.activeSubs, _ = meter.Int64ObservableGauge("citro_stream_active_subscriptions",
		metric.WithDescription("Channels currently acknowledged by the server"),
		metric.WithUnit("{channel}"),
		metric.WithInt64Callback(func(_ context.Context, observer metric.Int64Observer) error {
			observer.Observe(mm.active.Load())
			return nil
		}))

	return mm
}

func (mm *managerMetrics) recordConnect(ctx context.Context) {
	if mm == nil || mm.connects == nil {
		return
	}
	mm.connects.Add(ctx, 1)
}

func (mm *managerMetrics) recordDisconnect(ctx context.Context) {
	if mm == nil || mm.disconnects == nil {
		return
	}
	mm.disconnects.Add(ctx, 1)
}

func (mm *managerMetrics) recordFrame(ctx context.Context, family string, snapshot bool) {
	if mm == nil || mm.frames == nil {
		return
	}
	kind := "delta"
	if snapshot {
		kind = "snapshot"
	}
	mm.frames.Add(ctx, 1, metric.WithAttributes(
		attribute.String("family", family),
		attribute.String("kind", kind),
	))
}

func (mm *managerMetrics) setActiveSubscriptions(count int) {
	if mm == nil {
		return
	}
	mm.active.Store(int64(count))
}
