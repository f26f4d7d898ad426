// Package telemetry exposes OpenTelemetry metrics for the ACL engine:
// decision counts and latency, and mutation counts, exported through the
// Prometheus reader.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// Config holds the telemetry configuration.
type Config struct {
	// ServiceName is the name of the service (e.g. "warden").
	ServiceName string

	// ServiceVersion is the version of the service.
	ServiceVersion string

	// Environment is the deployment environment (e.g. "production").
	Environment string

	// Enabled determines if telemetry is active. A disabled provider is a
	// no-op and safe to wire everywhere.
	Enabled bool
}

// DefaultConfig returns a default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "warden",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Enabled:        true,
	}
}

// Provider manages the OpenTelemetry meter provider and the engine's
// metric instruments.
type Provider struct {
	config        Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter

	decisionCounter  metric.Int64Counter
	mutationCounter  metric.Int64Counter
	decisionDuration metric.Float64Histogram
}

// NewProvider creates a new telemetry provider.
func NewProvider(cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{config: cfg}, nil
	}

	p := &Provider{config: cfg}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, err
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter(cfg.ServiceName)

	if err := p.initMetrics(); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *Provider) initMetrics() error {
	var err error

	p.decisionCounter, err = p.meter.Int64Counter(
		"warden.decision.total",
		metric.WithDescription("Total number of access decisions"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.mutationCounter, err = p.meter.Int64Counter(
		"warden.mutation.total",
		metric.WithDescription("Total number of ACL mutations"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	p.decisionDuration, err = p.meter.Float64Histogram(
		"warden.decision.duration",
		metric.WithDescription("Access decision duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Shutdown gracefully shuts down the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.meterProvider != nil {
		return p.meterProvider.Shutdown(ctx)
	}
	return nil
}

// Meter returns the meter instance.
func (p *Provider) Meter() metric.Meter {
	if p.meter == nil {
		return otel.Meter(p.config.ServiceName)
	}
	return p.meter
}

// RecordDecision records one access decision.
func (p *Provider) RecordDecision(ctx context.Context, resourceType string, allowed bool, elapsed time.Duration) {
	if p.decisionCounter == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	p.decisionCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("resource_type", resourceType),
			attribute.String("outcome", outcome),
		),
	)
	p.decisionDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(
			attribute.String("resource_type", resourceType),
		),
	)
}

// RecordMutation records one mutating ACL operation.
func (p *Provider) RecordMutation(ctx context.Context, op, resourceType string, err error) {
	if p.mutationCounter == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	p.mutationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("op", op),
			attribute.String("resource_type", resourceType),
			attribute.String("status", status),
		),
	)
}
