package resolver

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "mcp-food-resolver/resolver"

const (
	outcomeCacheHit  = "cache_hit"
	outcomeAccepted  = "accepted"
	outcomeFallback  = "fallback"
	outcomeExhausted = "exhausted"
	outcomeInvalid   = "invalid"
	outcomeCanceled  = "canceled"

	attemptSuccess     = "success"
	attemptRejected    = "rejected"
	attemptError       = "error"
	attemptRateLimited = "rate_limited"
)

type metrics struct {
	resolutions metric.Int64Counter
	attempts    metric.Int64Counter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(meterName)
	}

	resolutions, err := meter.Int64Counter("food_resolver.resolutions",
		metric.WithDescription("Resolution requests by final outcome"),
		metric.WithUnit("{resolution}"),
	)
	if err != nil {
		return nil, err
	}
	attempts, err := meter.Int64Counter("food_resolver.provider_attempts",
		metric.WithDescription("Provider calls by source and outcome"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}
	return &metrics{resolutions: resolutions, attempts: attempts}, nil
}

// The caller's ctx may already be canceled; recording must still happen.
func (m *metrics) resolution(ctx context.Context, outcome string) {
	m.resolutions.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) attempt(ctx context.Context, source, outcome string) {
	m.attempts.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}
