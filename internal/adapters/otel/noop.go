package otel

import "context"

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) RecordAssignment(ctx context.Context, experimentID, variantID string) {}

func (e *NoOpExporter) RecordConversion(ctx context.Context, experimentID, variantID, metric string, value float64) {
}

func (e *NoOpExporter) RecordIgnoredConversion(ctx context.Context, reason string) {}

func (e *NoOpExporter) RecordFlag(ctx context.Context, experimentID, variantID string) {}

func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}
