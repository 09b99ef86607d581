package otel

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	serviceName    = "splitlab"
	serviceVersion = "1.0.0"
)

// Exporter exports engine activity counters to an OTEL Collector.
type Exporter struct {
	provider         *sdkmetric.MeterProvider
	meter            metric.Meter
	assignmentsTotal metric.Int64Counter
	conversionsTotal metric.Float64Counter
	ignoredTotal     metric.Int64Counter
	flagsTotal       metric.Int64Counter
}

// NewExporter creates a new OTEL metrics exporter.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, fmt.Errorf("OTEL exporter is disabled or endpoint not configured")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	assignmentsTotal, err := meter.Int64Counter(
		"splitlab_assignments_total",
		metric.WithDescription("Total first-exposure variant assignments"),
		metric.WithUnit("{assignment}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating assignments counter: %w", err)
	}

	conversionsTotal, err := meter.Float64Counter(
		"splitlab_conversions_total",
		metric.WithDescription("Total conversion value recorded"),
		metric.WithUnit("{conversion}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating conversions counter: %w", err)
	}

	ignoredTotal, err := meter.Int64Counter(
		"splitlab_ignored_conversions_total",
		metric.WithDescription("Conversion calls silently ignored, by reason"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ignored counter: %w", err)
	}

	flagsTotal, err := meter.Int64Counter(
		"splitlab_flags_total",
		metric.WithDescription("Advisory underperforming flags raised"),
		metric.WithUnit("{flag}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating flags counter: %w", err)
	}

	return &Exporter{
		provider:         provider,
		meter:            meter,
		assignmentsTotal: assignmentsTotal,
		conversionsTotal: conversionsTotal,
		ignoredTotal:     ignoredTotal,
		flagsTotal:       flagsTotal,
	}, nil
}

func (e *Exporter) RecordAssignment(ctx context.Context, experimentID, variantID string) {
	e.assignmentsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("variant_id", variantID),
	))
}

func (e *Exporter) RecordConversion(ctx context.Context, experimentID, variantID, metricName string, value float64) {
	e.conversionsTotal.Add(ctx, value, metric.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("variant_id", variantID),
		attribute.String("metric", metricName),
	))
}

func (e *Exporter) RecordIgnoredConversion(ctx context.Context, reason string) {
	e.ignoredTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
	))
}

func (e *Exporter) RecordFlag(ctx context.Context, experimentID, variantID string) {
	e.flagsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("experiment_id", experimentID),
		attribute.String("variant_id", variantID),
	))
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
