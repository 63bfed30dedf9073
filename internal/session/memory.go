package session

import (
	"context"
	"sync"
	"time"

	"github.com/logai/logai/internal/errors"
	"github.com/logai/logai/internal/logmodel"
)

// MemoryStore is the default Store: a single process-wide map guarded by
// one RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*logmodel.ChatSession
}

// NewMemoryStore builds an empty in-process session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*logmodel.ChatSession)}
}

func (s *MemoryStore) GetOrCreate(_ context.Context, id string) error {
	s.mu.RLock()
	_, exists := s.sessions[id]
	s.mu.RUnlock()
	if exists {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.sessions[id]; exists {
		return nil
	}
	s.sessions[id] = &logmodel.ChatSession{ID: id, CreatedAt: time.Now().UTC()}
	return nil
}

func (s *MemoryStore) ReadSnapshot(_ context.Context, id string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Snapshot{}, errors.NewResourceNotFound("session", id)
	}
	return cloneSnapshot(sess), nil
}

func (s *MemoryStore) AppendTurn(_ context.Context, id, userMsg, assistantMsg string, evidence []string, query string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		sess = &logmodel.ChatSession{ID: id, CreatedAt: time.Now().UTC()}
		s.sessions[id] = sess
	}

	sess.History = append(sess.History,
		logmodel.ChatTurn{Role: logmodel.RoleUser, Content: userMsg},
		logmodel.ChatTurn{Role: logmodel.RoleAssistant, Content: assistantMsg},
	)
	if len(sess.History) > maxHistory {
		sess.History = sess.History[len(sess.History)-maxHistory:]
	}

	sess.LastEvidence = evidence
	sess.LastQuery = query
	sess.Turns++
	return nil
}

func (s *MemoryStore) Info(_ context.Context, id string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Info{}, errors.NewResourceNotFound("session", id)
	}
	return Info{
		Turns:             sess.Turns,
		LastEvidenceCount: len(sess.LastEvidence),
		AgeSeconds:        time.Since(sess.CreatedAt).Seconds(),
	}, nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

// cloneSnapshot must be called with s.mu held (read or write).
func cloneSnapshot(sess *logmodel.ChatSession) Snapshot {
	history := make([]logmodel.ChatTurn, len(sess.History))
	copy(history, sess.History)

	evidence := make([]string, len(sess.LastEvidence))
	copy(evidence, sess.LastEvidence)

	return Snapshot{
		ID:           sess.ID,
		History:      history,
		LastEvidence: evidence,
		LastQuery:    sess.LastQuery,
		Turns:        sess.Turns,
		CreatedAt:    sess.CreatedAt,
	}
}
