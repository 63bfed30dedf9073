package vectorindex

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// MemoryIndex is an in-process reference implementation, used for tests
// and local/dev runs where no real vector database is configured.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string]Point
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{points: make(map[string]Point)}
}

func (m *MemoryIndex) Upsert(_ context.Context, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, vector []float32, filter Filter, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.points))
	for _, p := range m.points {
		if !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, Hit{Payload: p.Payload, Score: cosineSimilarity(vector, p.Vector)})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryIndex) Scroll(_ context.Context, filter Filter, limit int) ([]Hit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, 0, len(m.points))
	for _, p := range m.points {
		if !matches(p.Payload, filter) {
			continue
		}
		hits = append(hits, Hit{Payload: p.Payload})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Payload.TimestampUnix > hits[j].Payload.TimestampUnix })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryIndex) Ping(context.Context) error { return nil }

func matches(p Payload, f Filter) bool {
	if f.Service != "" && p.Service != f.Service {
		return false
	}
	if f.Level != "" && p.Level != f.Level {
		return false
	}
	if f.From != nil || f.To != nil {
		ts := time.Unix(p.TimestampUnix, 0).UTC()
		if f.From != nil && ts.Before(*f.From) {
			return false
		}
		if f.To != nil && ts.After(*f.To) {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
