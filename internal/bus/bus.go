// Package bus provides the message-bus collaborator used to hand off
// ingested log entries from the ingest front end (C8) to its downstream
// worker. Building a production bus server is a spec Non-goal; only an
// in-memory reference client ships here.
package bus

import (
	"context"

	"github.com/logai/logai/internal/logmodel"
)

// IngestTopic is the fixed topic name log entries are published under.
const IngestTopic = "logs.ingest"

// Publisher hands a normalized log entry to the bus.
type Publisher interface {
	Publish(ctx context.Context, topic string, entry logmodel.LogEntry) error
}

// Handler processes one delivered log entry. Returning an error does not
// stop the subscription loop; a failing handler is logged and skipped so
// later entries still get delivered.
type Handler func(ctx context.Context, entry logmodel.LogEntry) error

// Subscriber registers a Handler against a topic.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handler Handler) (unsubscribe func(), err error)
}

// Bus is the combined contract, for collaborators that both publish and
// subscribe (the in-memory reference implementation, used directly by
// ingest in tests and single-process deployments).
type Bus interface {
	Publisher
	Subscriber
	Ping(ctx context.Context) error
}
