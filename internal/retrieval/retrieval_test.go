package retrieval

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/errors"
	"github.com/logai/logai/internal/llmclient"
	"github.com/logai/logai/internal/logmodel"
	"github.com/logai/logai/internal/vectorindex"
)

type fakeLLM struct {
	vector []float32
}

func (f *fakeLLM) Generate(context.Context, string) (string, error) { return "", nil }
func (f *fakeLLM) Embed(context.Context, string) ([]float32, error) { return f.vector, nil }
func (f *fakeLLM) Model() string                                    { return "fake" }
func (f *fakeLLM) Provider() string                                 { return "fake" }
func (f *fakeLLM) Ping(context.Context) error                       { return nil }

var _ llmclient.Client = (*fakeLLM)(nil)

func fixedVector() []float32 {
	v := make([]float32, llmclient.EmbeddingDim)
	v[0] = 1
	return v
}

func TestOrchestratorRetrieveReturnsNoEvidenceWhenIndexEmpty(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	o := New(idx, &fakeLLM{vector: fixedVector()}, zap.NewNop())

	aq := logmodel.AnalyzedQuery{Cleaned: "payment errors", Intent: logmodel.IntentSearch}
	_, err := o.Retrieve(t.Context(), aq, "payment errors", 10, true)
	if !errors.Is(err, errors.CodeNoEvidence) {
		t.Fatalf("expected NoEvidence error, got %v", err)
	}
}

func TestOrchestratorRetrieveDedupesAndReranks(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	now := time.Now().UTC()

	point := func(id, service, level, message string) vectorindex.Point {
		return vectorindex.Point{
			ID:     id,
			Vector: fixedVector(),
			Payload: vectorindex.Payload{
				LogID: id, Service: service, Level: level, Message: message,
				Timestamp: now.Format(time.RFC3339), TimestampUnix: now.Unix(),
			},
		}
	}

	_ = idx.Upsert(t.Context(), []vectorindex.Point{
		point("1", "api", "ERROR", "payment failed"),
		point("1-dup", "api", "ERROR", "payment failed"),
		point("2", "api", "INFO", "request handled"),
	})

	o := New(idx, &fakeLLM{vector: fixedVector()}, zap.NewNop())
	aq := logmodel.AnalyzedQuery{Cleaned: "payment failed", Intent: logmodel.IntentSearch}

	out, err := o.Retrieve(t.Context(), aq, "payment failed", 10, true)
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (deduped)", len(out))
	}
	for i := 1; i < len(out); i++ {
		if out[i].Score > out[i-1].Score {
			t.Errorf("scores not non-increasing at index %d", i)
		}
	}
}

// scrollOnlyIndex simulates a dense search with zero hits: Search always
// comes back empty, while Scroll serves whatever was upserted.
type scrollOnlyIndex struct {
	*vectorindex.MemoryIndex
}

func (s *scrollOnlyIndex) Search(context.Context, []float32, vectorindex.Filter, int) ([]vectorindex.Hit, error) {
	return nil, nil
}

func TestOrchestratorRetrieveFallsBackToScrollWhenSearchIsEmptyAndWindowSet(t *testing.T) {
	mem := vectorindex.NewMemoryIndex()
	now := time.Now().UTC()
	_ = mem.Upsert(t.Context(), []vectorindex.Point{
		{ID: "1", Vector: fixedVector(), Payload: vectorindex.Payload{LogID: "1", Service: "api", Level: "ERROR", Message: "timeout", Timestamp: now.Format(time.RFC3339), TimestampUnix: now.Unix()}},
	})
	idx := &scrollOnlyIndex{mem}

	o := New(idx, &fakeLLM{vector: fixedVector()}, zap.NewNop())
	from := now.Add(-time.Hour)
	aq := logmodel.AnalyzedQuery{Cleaned: "timeout", Intent: logmodel.IntentSearch, From: &from, To: &now}

	out, err := o.Retrieve(t.Context(), aq, "timeout", 10, true)
	if err != nil {
		t.Fatalf("Retrieve() error = %v, want fallback scroll to succeed", err)
	}
	if len(out) != 1 || out[0].Payload.Message != "timeout" {
		t.Fatalf("expected fallback scroll hit, got %+v", out)
	}
}

func TestOrchestratorRetrieveNoEvidenceWhenSearchEmptyAndNoWindow(t *testing.T) {
	mem := vectorindex.NewMemoryIndex()
	_ = mem.Upsert(t.Context(), []vectorindex.Point{
		{ID: "1", Vector: fixedVector(), Payload: vectorindex.Payload{LogID: "1", Service: "api", Level: "ERROR", Message: "timeout"}},
	})
	idx := &scrollOnlyIndex{mem}

	o := New(idx, &fakeLLM{vector: fixedVector()}, zap.NewNop())
	aq := logmodel.AnalyzedQuery{Cleaned: "timeout", Intent: logmodel.IntentSearch}

	_, err := o.Retrieve(t.Context(), aq, "timeout", 10, true)
	if !errors.Is(err, errors.CodeNoEvidence) {
		t.Fatalf("expected NoEvidence error (no window to scroll by), got %v", err)
	}
}

// limitSpyIndex records the limit passed to Search so tests can assert on
// the candidate-count tier a call site requested.
type limitSpyIndex struct {
	*vectorindex.MemoryIndex
	lastLimit int
}

func (s *limitSpyIndex) Search(ctx context.Context, vector []float32, filter vectorindex.Filter, limit int) ([]vectorindex.Hit, error) {
	s.lastLimit = limit
	return s.MemoryIndex.Search(ctx, vector, filter, limit)
}

func TestOrchestratorRetrieveRequestsChatTierRegardlessOfCausalIntent(t *testing.T) {
	mem := vectorindex.NewMemoryIndex()
	idx := &limitSpyIndex{MemoryIndex: mem}
	o := New(idx, &fakeLLM{vector: fixedVector()}, zap.NewNop())

	aq := logmodel.AnalyzedQuery{Cleaned: "payment errors", Intent: logmodel.IntentSearch}
	_, _ = o.Retrieve(t.Context(), aq, "payment errors", 10, true)
	if idx.lastLimit != candidatesChatCausal {
		t.Errorf("chat-path Retrieve requested limit %d, want %d", idx.lastLimit, candidatesChatCausal)
	}
}

func TestOrchestratorRetrieveRequestsAskTierWhenNotChatAndNotCausal(t *testing.T) {
	mem := vectorindex.NewMemoryIndex()
	idx := &limitSpyIndex{MemoryIndex: mem}
	o := New(idx, &fakeLLM{vector: fixedVector()}, zap.NewNop())

	aq := logmodel.AnalyzedQuery{Cleaned: "payment errors", Intent: logmodel.IntentSearch}
	_, _ = o.Retrieve(t.Context(), aq, "payment errors", 10, false)
	if idx.lastLimit != candidatesAsk {
		t.Errorf("ask-path Retrieve requested limit %d, want %d", idx.lastLimit, candidatesAsk)
	}
}

func TestOrchestratorSearchAppliesServiceFilter(t *testing.T) {
	idx := vectorindex.NewMemoryIndex()
	now := time.Now().UTC()

	_ = idx.Upsert(t.Context(), []vectorindex.Point{
		{ID: "1", Vector: fixedVector(), Payload: vectorindex.Payload{LogID: "1", Service: "api", Level: "ERROR", Message: "boom", Timestamp: now.Format(time.RFC3339), TimestampUnix: now.Unix()}},
		{ID: "2", Vector: fixedVector(), Payload: vectorindex.Payload{LogID: "2", Service: "worker", Level: "ERROR", Message: "boom", Timestamp: now.Format(time.RFC3339), TimestampUnix: now.Unix()}},
	})

	o := New(idx, &fakeLLM{vector: fixedVector()}, zap.NewNop())
	aq := logmodel.AnalyzedQuery{Cleaned: "boom", Service: "worker", Intent: logmodel.IntentSearch}

	out, err := o.Search(t.Context(), aq, "boom", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(out) != 1 || out[0].Payload.Service != "worker" {
		t.Fatalf("expected only worker service hit, got %+v", out)
	}
}
