package causal

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/errors"
)

type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Generate(context.Context, string) (string, error) {
	if s.calls >= len(s.responses) {
		return `{"score": 0, "explanation": "no match"}`, nil
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}
func (s *scriptedLLM) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (s *scriptedLLM) Model() string                                    { return "scripted" }
func (s *scriptedLLM) Provider() string                                 { return "scripted" }
func (s *scriptedLLM) Ping(context.Context) error                       { return nil }

func evidenceJSON(ts time.Time, level, service, message string) string {
	b, _ := json.Marshal(map[string]string{
		"timestamp": ts.Format(time.RFC3339),
		"level":     level,
		"service":   service,
		"message":   message,
	})
	return string(b)
}

func TestAnalyzeNoLogsFound(t *testing.T) {
	a := New(&scriptedLLM{}, zap.NewNop())
	_, err := a.Analyze(t.Context(), "why did it fail", nil, "")
	if !errors.Is(err, errors.CodeNoLogsFound) {
		t.Fatalf("expected NoLogsFound, got %v", err)
	}
}

func TestAnalyzeNoErrorFound(t *testing.T) {
	a := New(&scriptedLLM{}, zap.NewNop())
	now := time.Now().UTC()
	evidence := []string{evidenceJSON(now, "INFO", "api", "all good")}

	_, err := a.Analyze(t.Context(), "why did it fail", evidence, "")
	if !errors.Is(err, errors.CodeNoErrorFound) {
		t.Fatalf("expected NoErrorFound, got %v", err)
	}
}

func TestAnalyzeBuildsChainWithConfidentCause(t *testing.T) {
	now := time.Now().UTC()
	evidence := []string{
		evidenceJSON(now.Add(-10*time.Minute), "WARN", "db", "connection pool exhausted"),
		evidenceJSON(now, "ERROR", "api", "payment request failed"),
	}

	llm := &scriptedLLM{responses: []string{
		`{"score": 90, "explanation": "the pool exhaustion caused request failures downstream and this explanation is long enough to matter for the trim logic below which requires much more text than this to actually trigger so let's pad it out significantly more than two hundred eighty characters so that the 280 character trim invariant is actually exercised by this specific scripted unit test case here now"}`,
		`explanation of the overall chain in two to three sentences describing root cause`,
		`1. Increase connection pool size`,
	}}

	a := New(llm, zap.NewNop())
	chain, err := a.Analyze(t.Context(), "why did payment fail", evidence, "")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(chain.Links) != 1 {
		t.Fatalf("len(Links) = %d, want 1", len(chain.Links))
	}
	link := chain.Links[0]
	if link.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", link.Confidence)
	}
	if !link.Cause.Timestamp.Before(link.Effect.Timestamp) {
		t.Error("expected cause.timestamp < effect.timestamp")
	}
	if len(link.Explanation) > 280 {
		t.Errorf("Explanation len = %d, want <= 280 (trimmed)", len(link.Explanation))
	}
	if chain.RootCause == nil {
		t.Fatal("expected a root cause to be set")
	}
	if chain.Summary == "" {
		t.Error("expected a non-empty summary")
	}
}

func TestAnalyzeLowConfidenceYieldsNoRootCause(t *testing.T) {
	now := time.Now().UTC()
	evidence := []string{
		evidenceJSON(now.Add(-10*time.Minute), "WARN", "db", "slow query"),
		evidenceJSON(now, "ERROR", "api", "timeout"),
	}

	llm := &scriptedLLM{responses: []string{`{"score": 10, "explanation": "unlikely"}`}}
	a := New(llm, zap.NewNop())

	_, err := a.Analyze(t.Context(), "why did it time out", evidence, "")
	if !errors.Is(err, errors.CodeNoRootCause) {
		t.Fatalf("expected NoRootCause, got %v", err)
	}
}

func TestAnalyzeHeuristicLevelFallback(t *testing.T) {
	a := New(&scriptedLLM{responses: []string{`{"score": 80, "explanation": "match"}`, "summary", "fix"}}, zap.NewNop())
	evidence := []string{"a plain text line mentioning a FATAL crash", "a plain text line mentioning a WARN condition earlier"}

	_, err := a.Analyze(t.Context(), "why", evidence, "")
	if err != nil && !errors.Is(err, errors.CodeNoRootCause) {
		t.Fatalf("unexpected error for heuristic parsing: %v", err)
	}
}

