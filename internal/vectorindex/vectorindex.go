// Package vectorindex provides the dense retrieval collaborator used by
// the Retrieval Orchestrator (C2): a 384-dim, cosine-distance nearest
// neighbor index over log embeddings.
package vectorindex

import (
	"context"
	"time"
)

// CollectionName is the fixed collection every Index implementation stores
// log embeddings under.
const CollectionName = "log_embeddings"

// Dim is the fixed embedding dimensionality, matching llmclient.EmbeddingDim.
const Dim = 384

// Payload is the metadata stored alongside a vector, projected back on
// search/scroll hits.
type Payload struct {
	LogID         string `json:"log_id"`
	Service       string `json:"service"`
	Level         string `json:"level"`
	Message       string `json:"message"`
	Timestamp     string `json:"timestamp"`      // RFC3339
	TimestampUnix int64  `json:"timestamp_unix"`
}

// Point is one vector plus its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is a search/scroll result: a payload plus its similarity score (for
// Search) or 0 (for Scroll, which is unranked).
type Hit struct {
	Payload Payload
	Score   float64
}

// Filter narrows a Search or Scroll by service/level/time window. Every
// field is optional; the zero value matches everything.
type Filter struct {
	Service string
	Level   string
	From    *time.Time
	To      *time.Time
}

// Index is the vector-index collaborator contract.
type Index interface {
	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error
	// Search performs a cosine-similarity nearest-neighbor query, returning
	// up to limit hits ordered by descending score.
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error)
	// Scroll performs an unranked, filter-only listing, for the
	// time-window fallback when dense search returns no hits.
	Scroll(ctx context.Context, filter Filter, limit int) ([]Hit, error)
	// Ping verifies the index is reachable, for internal/health.
	Ping(ctx context.Context) error
}
