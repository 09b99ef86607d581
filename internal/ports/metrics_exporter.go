package ports

import "context"

// MetricsExporter exports engine activity counters to an external metrics
// backend. Implementations must be safe for concurrent use and must never
// fail a caller's request path.
type MetricsExporter interface {
	RecordAssignment(ctx context.Context, experimentID, variantID string)
	RecordConversion(ctx context.Context, experimentID, variantID, metric string, value float64)
	RecordIgnoredConversion(ctx context.Context, reason string)
	RecordFlag(ctx context.Context, experimentID, variantID string)
	Close(ctx context.Context) error
}
