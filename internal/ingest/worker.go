package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/bus"
	"github.com/logai/logai/internal/llmclient"
	"github.com/logai/logai/internal/logmodel"
	"github.com/logai/logai/internal/tracing"
	"github.com/logai/logai/internal/vectorindex"
	"github.com/logai/logai/internal/warehouse"
)

// Worker is the bus subscriber downstream of the ingest front end: it
// persists every delivered entry into the warehouse and indexes its
// embedding for semantic retrieval.
type Worker struct {
	warehouse warehouse.Warehouse
	index     vectorindex.Index
	llm       llmclient.Client
	logger    *zap.Logger
}

// NewWorker builds an ingest worker.
func NewWorker(w warehouse.Warehouse, index vectorindex.Index, llm llmclient.Client, logger *zap.Logger) *Worker {
	return &Worker{warehouse: w, index: index, llm: llm, logger: logger}
}

// Subscribe registers the worker against the ingest topic.
func (w *Worker) Subscribe(ctx context.Context, sub bus.Subscriber) (func(), error) {
	return sub.Subscribe(ctx, bus.IngestTopic, w.handle)
}

// handle persists and indexes one entry. Warehouse and index failures are
// logged and never returned: the subscription loop must keep running
// regardless of a single entry's fate.
func (w *Worker) handle(ctx context.Context, entry logmodel.LogEntry) error {
	ctx, span := tracing.ComponentSpan(ctx, "ingest_worker")
	defer span.End()

	if err := w.warehouse.Insert(ctx, entry); err != nil {
		w.logger.Warn("warehouse insert failed", zap.String("log_id", entry.ID), zap.Error(err))
		tracing.RecordError(span, err)
	}

	text := embeddingText(entry)
	vector, err := w.llm.Embed(ctx, text)
	if err != nil {
		w.logger.Warn("embedding failed", zap.String("log_id", entry.ID), zap.Error(err))
		tracing.RecordError(span, err)
		return nil
	}

	point := vectorindex.Point{
		ID:     entry.ID,
		Vector: vector,
		Payload: vectorindex.Payload{
			LogID:         entry.ID,
			Service:       entry.Service,
			Level:         entry.Severity.String(),
			Message:       entry.Message,
			Timestamp:     entry.Timestamp.Format(time.RFC3339),
			TimestampUnix: entry.Timestamp.Unix(),
		},
	}
	if err := w.index.Upsert(ctx, []vectorindex.Point{point}); err != nil {
		w.logger.Warn("index upsert failed", zap.String("log_id", entry.ID), zap.Error(err))
		tracing.RecordError(span, err)
		return nil
	}

	tracing.SetSuccess(span)
	return nil
}

// embeddingText builds the canonical textual form an entry is embedded
// from: "service:<s> level:<L> <message>".
func embeddingText(entry logmodel.LogEntry) string {
	return fmt.Sprintf("service:%s level:%s %s", entry.Service, entry.Severity.String(), entry.Message)
}
