package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/logai/logai/internal/logmodel"
)

// ClickHouseWarehouse persists log entries into a MergeTree-like `logs`
// table, ordered by (service, timestamp) and partitioned by month.
type ClickHouseWarehouse struct {
	conn   driver.Conn
	logger *zap.Logger
}

// ClickHouseOptions configures the connection.
type ClickHouseOptions struct {
	Addr     string
	Database string
	Username string
	Password string
}

// NewClickHouseWarehouse opens a connection and ensures the `logs` table
// exists.
func NewClickHouseWarehouse(ctx context.Context, opts ClickHouseOptions, logger *zap.Logger) (*ClickHouseWarehouse, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse connect failed: %w", err)
	}

	w := &ClickHouseWarehouse{conn: conn, logger: logger}
	if err := w.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *ClickHouseWarehouse) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS logs (
	id String,
	timestamp DateTime64(3),
	level String,
	service String,
	message String,
	raw String,
	trace_id String,
	span_id String,
	error_category String,
	fields String,
	ingested_at DateTime64(3)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(timestamp)
ORDER BY (service, timestamp)`

	return w.conn.Exec(ctx, ddl)
}

func (w *ClickHouseWarehouse) Insert(ctx context.Context, entry logmodel.LogEntry) error {
	fieldsJSON, err := json.Marshal(entry.Fields)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	return w.conn.Exec(ctx,
		`INSERT INTO logs (id, timestamp, level, service, message, raw, trace_id, span_id, error_category, fields, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, entry.Severity.String(), entry.Service, entry.Message,
		entry.Raw, entry.TraceID, entry.SpanID, string(entry.ErrorCategory), string(fieldsJSON), entry.IngestedAt,
	)
}

func (w *ClickHouseWarehouse) CountErrors(ctx context.Context, service string, from, to time.Time) (int64, error) {
	return w.count(ctx, "level = 'ERROR'", service, from, to)
}

func (w *ClickHouseWarehouse) TotalCount(ctx context.Context, service string, from, to time.Time) (int64, error) {
	return w.count(ctx, "1 = 1", service, from, to)
}

func (w *ClickHouseWarehouse) count(ctx context.Context, predicate, service string, from, to time.Time) (int64, error) {
	query := fmt.Sprintf(
		`SELECT count() FROM logs WHERE %s AND timestamp >= ? AND timestamp < ? %s`,
		predicate, serviceClause(),
	)

	var n uint64
	row := w.conn.QueryRow(ctx, query, from, to, service, normalizeService(service))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("clickhouse count query failed: %w", err)
	}
	return int64(n), nil
}

// serviceClause returns the bound-parameter predicate matching any
// service when the caller's normalized service argument is empty.
func serviceClause() string {
	return "AND (service = ? OR ? = '')"
}

// normalizeService maps the wildcard "*" to "", the sentinel serviceClause
// treats as "match any service".
func normalizeService(service string) string {
	if service == "*" {
		return ""
	}
	return service
}

func (w *ClickHouseWarehouse) PerMinuteErrorCounts(ctx context.Context, service string, from, to time.Time) ([]int64, error) {
	query := fmt.Sprintf(
		`SELECT count() FROM logs WHERE level = 'ERROR' AND timestamp >= ? AND timestamp < ? %s
		 GROUP BY toStartOfMinute(timestamp) ORDER BY toStartOfMinute(timestamp)`,
		serviceClause(),
	)

	rows, err := w.conn.Query(ctx, query, from, to, service, normalizeService(service))
	if err != nil {
		return nil, fmt.Errorf("clickhouse per-minute query failed: %w", err)
	}
	defer rows.Close()

	var counts []int64
	for rows.Next() {
		var n uint64
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("clickhouse per-minute scan failed: %w", err)
		}
		counts = append(counts, int64(n))
	}
	return counts, rows.Err()
}

func (w *ClickHouseWarehouse) DistinctServices(ctx context.Context) ([]string, error) {
	rows, err := w.conn.Query(ctx, `SELECT DISTINCT service FROM logs ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("clickhouse distinct services query failed: %w", err)
	}
	defer rows.Close()

	var services []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("clickhouse distinct services scan failed: %w", err)
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (w *ClickHouseWarehouse) Ping(ctx context.Context) error {
	return w.conn.Ping(ctx)
}
