package notify

import (
	"context"
	"sync"

	"github.com/logai/logai/internal/logmodel"
)

// MemorySink records every notification in-process, for tests and
// local/dev runs where no webhook is configured.
type MemorySink struct {
	mu     sync.Mutex
	alerts []logmodel.ActiveAlert
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (m *MemorySink) Notify(_ context.Context, alert logmodel.ActiveAlert) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerts = append(m.alerts, alert)
	return nil
}

// Sent returns a copy of every alert delivered so far.
func (m *MemorySink) Sent() []logmodel.ActiveAlert {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logmodel.ActiveAlert(nil), m.alerts...)
}
