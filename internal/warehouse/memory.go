package warehouse

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// MemoryWarehouse is an in-process reference implementation, used for
// tests and local/dev runs where no real warehouse is configured.
type MemoryWarehouse struct {
	mu      sync.RWMutex
	entries []logmodel.LogEntry
}

// NewMemoryWarehouse creates an empty in-memory warehouse.
func NewMemoryWarehouse() *MemoryWarehouse {
	return &MemoryWarehouse{}
}

func (m *MemoryWarehouse) Insert(_ context.Context, entry logmodel.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *MemoryWarehouse) inWindow(e logmodel.LogEntry, service string, from, to time.Time) bool {
	if service != "" && service != "*" && e.Service != service {
		return false
	}
	return !e.Timestamp.Before(from) && e.Timestamp.Before(to)
}

func (m *MemoryWarehouse) CountErrors(_ context.Context, service string, from, to time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, e := range m.entries {
		if m.inWindow(e, service, from, to) && e.Severity == logmodel.SeverityError {
			n++
		}
	}
	return n, nil
}

func (m *MemoryWarehouse) TotalCount(_ context.Context, service string, from, to time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, e := range m.entries {
		if m.inWindow(e, service, from, to) {
			n++
		}
	}
	return n, nil
}

// PerMinuteErrorCounts buckets by truncated minute across [from, to).
func (m *MemoryWarehouse) PerMinuteErrorCounts(_ context.Context, service string, from, to time.Time) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	buckets := make(map[int64]int64)
	for _, e := range m.entries {
		if !m.inWindow(e, service, from, to) || e.Severity != logmodel.SeverityError {
			continue
		}
		minute := e.Timestamp.Truncate(time.Minute).Unix()
		buckets[minute]++
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	counts := make([]int64, len(keys))
	for i, k := range keys {
		counts[i] = buckets[k]
	}
	return counts, nil
}

func (m *MemoryWarehouse) DistinctServices(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for _, e := range m.entries {
		seen[e.Service] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryWarehouse) Ping(context.Context) error { return nil }
