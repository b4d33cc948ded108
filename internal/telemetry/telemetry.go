// Package telemetry sets up the OpenTelemetry meter provider used for the
// resolver's counters.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

const exportInterval = 30 * time.Second

type Config struct {
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // host:port of an OTLP/gRPC collector; empty disables export
	Insecure       bool
}

// Provider owns the meter provider. A disabled Provider hands out no-op
// meters and its Shutdown does nothing.
type Provider struct {
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "telemetry")

	if cfg.OTLPEndpoint == "" {
		logger.DebugContext(ctx, "metrics export disabled")
		return &Provider{meter: noop.NewMeterProvider().Meter(cfg.ServiceName)}, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create metric exporter: %w", err)
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
	)

	logger.InfoContext(ctx, "metrics export enabled", "endpoint", cfg.OTLPEndpoint, "insecure", cfg.Insecure)
	return &Provider{
		meterProvider: mp,
		meter:         mp.Meter(cfg.ServiceName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}, nil
}

func (p *Provider) Meter() metric.Meter {
	return p.meter
}

// Shutdown flushes pending metrics.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider == nil {
		return nil
	}
	return p.meterProvider.Shutdown(ctx)
}
