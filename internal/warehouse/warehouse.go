// Package warehouse provides the columnar log store collaborator used by
// ingest (C8, durable persistence) and the anomaly engine (C7, rule
// evaluation queries).
package warehouse

import (
	"context"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// Warehouse is the columnar store contract: durable LogEntry persistence
// plus the aggregate queries the anomaly engine's statistical and
// threshold rules need.
type Warehouse interface {
	// Insert persists a normalized log entry.
	Insert(ctx context.Context, entry logmodel.LogEntry) error
	// CountErrors counts rows with level=Error for service within [from, to).
	CountErrors(ctx context.Context, service string, from, to time.Time) (int64, error)
	// TotalCount counts all rows for service within [from, to).
	TotalCount(ctx context.Context, service string, from, to time.Time) (int64, error)
	// PerMinuteErrorCounts buckets error counts per minute within
	// [from, to), for statistical baseline/stddev computation.
	PerMinuteErrorCounts(ctx context.Context, service string, from, to time.Time) ([]int64, error)
	// DistinctServices lists every distinct service name known to the
	// warehouse, for rules whose service pattern is "*".
	DistinctServices(ctx context.Context) ([]string, error)
	// Ping verifies the warehouse is reachable, for internal/health.
	Ping(ctx context.Context) error
}

// Metric evaluates a logmodel.Metric over a window for one service.
func Metric(ctx context.Context, w Warehouse, metric logmodel.Metric, service string, from, to time.Time) (float64, error) {
	switch metric {
	case logmodel.MetricErrorCount:
		n, err := w.CountErrors(ctx, service, from, to)
		return float64(n), err
	case logmodel.MetricLogVolume:
		n, err := w.TotalCount(ctx, service, from, to)
		return float64(n), err
	case logmodel.MetricErrorRate:
		errs, err := w.CountErrors(ctx, service, from, to)
		if err != nil {
			return 0, err
		}
		total, err := w.TotalCount(ctx, service, from, to)
		if err != nil {
			return 0, err
		}
		if total == 0 {
			return 0, nil
		}
		return (float64(errs) / float64(total)) * 100, nil
	default:
		return 0, nil
	}
}
