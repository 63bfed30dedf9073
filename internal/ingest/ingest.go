// Package ingest implements the Ingest Fan-out (C8): the structured and
// raw-batch front ends that normalize logs and publish them on the bus,
// and the downstream worker that persists and indexes them.
package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/bus"
	"github.com/logai/logai/internal/errors"
	"github.com/logai/logai/internal/ingest/parsers"
	"github.com/logai/logai/internal/logmodel"
	"github.com/logai/logai/internal/metrics"
)

// BatchResult reports how a raw-batch ingest call fared. Publish failures
// do not count against ParseSuccesses: a line that parsed but failed to
// publish is still a parse success.
type BatchResult struct {
	Total          int
	ParseSuccesses int
	ParseFailures  int
}

// Front is the ingest front end: normalize-then-publish for a single
// structured entry, or parse-then-normalize-then-publish for a raw batch.
type Front struct {
	publisher bus.Publisher
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// New builds an ingest front end publishing onto bus.IngestTopic.
func New(publisher bus.Publisher, logger *zap.Logger) *Front {
	return &Front{publisher: publisher, logger: logger}
}

// SetMetrics attaches a metrics tracker. Optional: a Front with no tracker
// attached simply records nothing.
func (f *Front) SetMetrics(m *metrics.Metrics) { f.metrics = m }

// IngestOne normalizes and publishes a single structured entry.
func (f *Front) IngestOne(ctx context.Context, raw logmodel.RawLogEntry) (logmodel.LogEntry, error) {
	entry, err := logmodel.FromRaw(raw, time.Now())
	if err != nil {
		return logmodel.LogEntry{}, errors.NewParseError(err.Error())
	}
	if err := f.publisher.Publish(ctx, bus.IngestTopic, entry); err != nil {
		return logmodel.LogEntry{}, errors.NewInternalError(err.Error())
	}
	return entry, nil
}

// IngestBatch looks up the named parser, parses each line, overrides its
// service, normalizes it, and publishes it. A line that fails to parse is
// skipped and counted as a parse failure; the batch continues.
func (f *Front) IngestBatch(ctx context.Context, format, service string, lines []string) (BatchResult, error) {
	parser, ok := parsers.Lookup(format)
	if !ok {
		return BatchResult{}, errors.NewUnknownFormat(format)
	}

	result := BatchResult{Total: len(lines)}
	now := time.Now()

	for _, line := range lines {
		raw, err := parser.Parse(line)
		if err != nil {
			result.ParseFailures++
			f.logger.Debug("line failed to parse", zap.String("format", format), zap.Error(err))
			if f.metrics != nil {
				f.metrics.RecordIngestParseError()
			}
			continue
		}
		raw.Service = service
		result.ParseSuccesses++

		entry, err := logmodel.FromRaw(raw, now)
		if err != nil {
			f.logger.Warn("normalization failed", zap.String("format", format), zap.Error(err))
			continue
		}
		if err := f.publisher.Publish(ctx, bus.IngestTopic, entry); err != nil {
			f.logger.Warn("publish failed", zap.String("format", format), zap.Error(err))
		}
	}

	return result, nil
}
