package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/causal"
	"github.com/logai/logai/internal/llmclient"
	"github.com/logai/logai/internal/retrieval"
	"github.com/logai/logai/internal/session"
	"github.com/logai/logai/internal/vectorindex"
)

type scriptedLLM struct {
	responses []string
	calls     int
	vector    []float32
}

func (s *scriptedLLM) Generate(context.Context, string) (string, error) {
	if s.calls >= len(s.responses) {
		return "a plain analysis of the logs", nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}
func (s *scriptedLLM) Embed(context.Context, string) ([]float32, error) { return s.vector, nil }
func (s *scriptedLLM) Model() string                                    { return "scripted" }
func (s *scriptedLLM) Provider() string                                 { return "scripted" }
func (s *scriptedLLM) Ping(context.Context) error                       { return nil }

func fixedVector() []float32 {
	v := make([]float32, llmclient.EmbeddingDim)
	v[0] = 1
	return v
}

func newController(t *testing.T, llm *scriptedLLM) *Controller {
	idx := vectorindex.NewMemoryIndex()
	now := time.Now().UTC()
	_ = idx.Upsert(t.Context(), []vectorindex.Point{
		{ID: "1", Vector: fixedVector(), Payload: vectorindex.Payload{
			LogID: "1", Service: "payment", Level: "ERROR", Message: "payment request failed",
			Timestamp: now.Format(time.RFC3339), TimestampUnix: now.Unix(),
		}},
	})

	r := retrieval.New(idx, llm, zap.NewNop())
	c := causal.New(llm, zap.NewNop())
	store := session.NewMemoryStore()
	return New(store, r, c, llm, zap.NewNop(), 10)
}

func TestHandleTurnGreetingShortCircuits(t *testing.T) {
	ctrl := newController(t, &scriptedLLM{})
	resp, err := ctrl.HandleTurn(t.Context(), "s1", "hello there", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.Answer != introAnswer || resp.Provider != "system" {
		t.Errorf("expected canned greeting response, got %+v", resp)
	}
}

func TestHandleTurnGibberishShortCircuits(t *testing.T) {
	ctrl := newController(t, &scriptedLLM{})
	resp, err := ctrl.HandleTurn(t.Context(), "s1", "asdf jkl;", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.Answer != capabilityAnswer {
		t.Errorf("expected canned capability response, got %q", resp.Answer)
	}
}

func TestHandleTurnOffTopicAsksClassifierThenDeclines(t *testing.T) {
	llm := &scriptedLLM{vector: fixedVector(), responses: []string{"NO"}}
	ctrl := newController(t, llm)
	resp, err := ctrl.HandleTurn(t.Context(), "s1", "what's your favorite movie tonight", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.Answer != capabilityAnswer {
		t.Errorf("expected canned capability response for off-topic question, got %q", resp.Answer)
	}
}

func TestHandleTurnRetrievesEvidenceAndAnswers(t *testing.T) {
	llm := &scriptedLLM{vector: fixedVector(), responses: []string{"the payment service failed due to a timeout"}}
	ctrl := newController(t, llm)

	resp, err := ctrl.HandleTurn(t.Context(), "s1", "show me payment errors", nil)
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp.SourcesCount == 0 {
		t.Error("expected non-zero sources count")
	}
	if resp.ConversationTurn != 1 {
		t.Errorf("ConversationTurn = %d, want 1", resp.ConversationTurn)
	}
	if !strings.Contains(resp.Answer, "timeout") {
		t.Errorf("unexpected answer: %q", resp.Answer)
	}
}

func TestHandleTurnFollowUpReusesCachedEvidence(t *testing.T) {
	llm := &scriptedLLM{vector: fixedVector(), responses: []string{
		"first answer about payment errors",
		"more details about the same failure",
	}}
	ctrl := newController(t, llm)

	_, err := ctrl.HandleTurn(t.Context(), "s1", "show me payment errors", nil)
	if err != nil {
		t.Fatalf("first turn error = %v", err)
	}

	resp, err := ctrl.HandleTurn(t.Context(), "s1", "tell me more details about the error", nil)
	if err != nil {
		t.Fatalf("second turn error = %v", err)
	}
	if resp.ConversationTurn != 2 {
		t.Errorf("ConversationTurn = %d, want 2", resp.ConversationTurn)
	}
}

func TestIsGreetingMatchesPrefixOnly(t *testing.T) {
	if !isGreeting("hello there") {
		t.Error("expected 'hello there' to match greeting prefix")
	}
	if isGreeting("the hello desk") {
		t.Error("did not expect substring match, only prefix/equality")
	}
}
