package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/logmodel"
)

// MemoryBus is an in-process reference bus: Publish synchronously invokes
// every registered handler for the topic. Delivery is unordered across
// topics and best-effort within one.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]*subscription
	logger   *zap.Logger
}

type subscription struct {
	id      int
	handler Handler
}

// NewMemoryBus creates an empty in-memory bus.
func NewMemoryBus(logger *zap.Logger) *MemoryBus {
	return &MemoryBus{handlers: make(map[string][]*subscription), logger: logger}
}

func (b *MemoryBus) Publish(ctx context.Context, topic string, entry logmodel.LogEntry) error {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.handlers[topic]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.handler(ctx, entry); err != nil {
			b.logger.Warn("bus handler failed", zap.String("topic", topic), zap.Error(err))
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler Handler) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := len(b.handlers[topic])
	sub := &subscription{id: id, handler: handler}
	b.handlers[topic] = append(b.handlers[topic], sub)

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.handlers[topic]
		for i, s := range subs {
			if s == sub {
				b.handlers[topic] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
	}
	return unsubscribe, nil
}

func (b *MemoryBus) Ping(context.Context) error { return nil }
