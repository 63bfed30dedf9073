// Package session implements the Session Store (C5): per-session chat
// history, cached evidence, and bounded retention, owned exclusively by
// the Chat Controller.
package session

import (
	"context"
	"time"

	"github.com/logai/logai/internal/logmodel"
)

// maxHistory bounds ChatSession.History; when exceeded the oldest pair
// (one user turn, one assistant turn) is evicted.
const maxHistory = 20

// Snapshot is a read-only clone of a ChatSession, safe to use without
// holding the store's lock.
type Snapshot struct {
	ID           string
	History      []logmodel.ChatTurn
	LastEvidence []string
	LastQuery    string
	Turns        int
	CreatedAt    time.Time
}

// Info summarizes a session for introspection.
type Info struct {
	Turns             int
	LastEvidenceCount int
	AgeSeconds        float64
}

// Store maps session id to ChatSession. MemoryStore guards its map with one
// RWMutex (readers run in parallel, writers are exclusive); RedisStore
// serializes AppendTurn with an optimistic WATCH transaction.
type Store interface {
	// GetOrCreate inserts a fresh session for id if absent.
	GetOrCreate(ctx context.Context, id string) error
	// ReadSnapshot clones history, last evidence, last query, and turn count.
	ReadSnapshot(ctx context.Context, id string) (Snapshot, error)
	// AppendTurn pushes a user/assistant turn pair, updates the evidence
	// cache and last query, and evicts the oldest pair if history exceeds
	// maxHistory entries.
	AppendTurn(ctx context.Context, id, userMsg, assistantMsg string, evidence []string, query string) error
	// Info reports turn count, cached-evidence size, and session age.
	Info(ctx context.Context, id string) (Info, error)
	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
