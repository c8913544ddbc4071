package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/webitel/notification-relay/internal/domain/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/webitel/notification-relay/internal/service"

// DispatcherMiddleware implements [DECORATOR_PATTERN] to add observability
// to the dispatch path without touching business logic.
type DispatcherMiddleware struct {
	Next   Dispatcher
	Logger *slog.Logger
	Tracer trace.Tracer

	requests  metric.Int64Counter
	delivered metric.Int64Counter
	duration  metric.Float64Histogram
}

// NewDispatcherMiddleware wraps next with spans, counters and timing logs. Instruments
// come from the global providers, which are no-ops until telemetry is configured.
func NewDispatcherMiddleware(next Dispatcher, logger *slog.Logger) (Dispatcher, error) {
	meter := otel.Meter(instrumentationName)

	requests, err := meter.Int64Counter("relay.dispatch.requests",
		metric.WithDescription("Dispatch requests by type and result"))
	if err != nil {
		return nil, err
	}
	delivered, err := meter.Int64Counter("relay.dispatch.delivered_tenants",
		metric.WithDescription("Tenants reached by immediate dispatches"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("relay.dispatch.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Time spent handling a dispatch request"))
	if err != nil {
		return nil, err
	}

	return &DispatcherMiddleware{
		Next:      next,
		Logger:    logger,
		Tracer:    otel.Tracer(instrumentationName),
		requests:  requests,
		delivered: delivered,
		duration:  duration,
	}, nil
}

func (m *DispatcherMiddleware) Dispatch(ctx context.Context, req *model.DispatchRequest) (*model.DispatchResult, error) {
	ctx, span := m.Tracer.Start(ctx, "Dispatcher.Dispatch", trace.WithAttributes(
		attribute.String("notification.type", string(req.Type)),
		attribute.Int("notification.targets", len(req.TargetKeys)),
		attribute.Int64("notification.delay_ms", req.Delay.Milliseconds()),
	))
	defer span.End()

	start := time.Now()
	res, err := m.Next.Dispatch(ctx, req)
	elapsed := time.Since(start)

	outcome := "ok"
	switch {
	case err != nil:
		outcome = "rejected"
	case res.Scheduled:
		outcome = "scheduled"
	}
	attrs := metric.WithAttributes(
		attribute.String("type", string(req.Type)),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		m.Logger.Warn("DISPATCH_REJECTED",
			"type", req.Type,
			"err", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("dispatch.id", res.ID),
		attribute.Bool("dispatch.scheduled", res.Scheduled),
		attribute.Int("dispatch.delivered", len(res.Delivered)),
		attribute.Int("dispatch.unreachable", len(res.Unreachable)),
	)
	if !res.Scheduled {
		m.delivered.Add(ctx, int64(len(res.Delivered)), metric.WithAttributes(attribute.String("type", string(req.Type))))
	}

	m.Logger.Debug("DISPATCH_HANDLED",
		"dispatch_id", res.ID,
		"scheduled", res.Scheduled,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

func (m *DispatcherMiddleware) Broadcast(ctx context.Context, req *model.BroadcastRequest) *model.BroadcastResult {
	ctx, span := m.Tracer.Start(ctx, "Dispatcher.Broadcast")
	defer span.End()

	res := m.Next.Broadcast(ctx, req)
	span.SetAttributes(attribute.Int("broadcast.connections", res.Connections))
	return res
}

func (m *DispatcherMiddleware) Outcome(id string) (*model.DispatchResult, bool) {
	return m.Next.Outcome(id)
}
