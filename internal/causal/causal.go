// Package causal implements the Causal Chain Analyzer (C4): parse
// evidence, select the effect, walk backward scoring candidate causes via
// the LLM, and compose a summary and recommendation.
package causal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/errors"
	"github.com/logai/logai/internal/llmclient"
	"github.com/logai/logai/internal/logmodel"
)

const (
	maxDepth           = 3
	maxCandidates      = 3
	minConfidence      = 0.5
	rootSeverityCeil   = 2
	minEffectSeverity  = 4
	explanationMaxChar = 280
	maxScoreAttempts   = 3
)

var retryBackoff = []time.Duration{0, 2 * time.Second, 4 * time.Second}

// Analyzer implements C4.
type Analyzer struct {
	llm    llmclient.Client
	logger *zap.Logger
}

// New builds a causal chain analyzer.
func New(llm llmclient.Client, logger *zap.Logger) *Analyzer {
	return &Analyzer{llm: llm, logger: logger}
}

// Analyze builds a CausalChain for query from a list of evidence payload
// JSON strings, optionally restricted to service.
func (a *Analyzer) Analyze(ctx context.Context, query string, evidenceJSON []string, service string) (*logmodel.CausalChain, error) {
	if len(evidenceJSON) == 0 {
		return nil, errors.NewNoLogsFound()
	}

	events := parseEvents(evidenceJSON)
	if len(events) == 0 {
		return nil, errors.NewNoLogsFound()
	}

	effect, ok := selectEffect(events)
	if !ok {
		return nil, errors.NewNoErrorFound()
	}

	chain := &logmodel.CausalChain{Query: query, Effect: effect}

	current := effect
	for depth := 0; depth < maxDepth; depth++ {
		candidates := collectCandidates(events, current, service)
		if len(candidates) == 0 {
			break
		}

		cause, confidence, explanation, ok := a.scoreCandidates(ctx, current, candidates)
		if !ok {
			break
		}

		explanation = trimExplanation(explanation)
		chain.Links = append(chain.Links, logmodel.CausalLink{
			Effect: current, Cause: cause, Confidence: confidence, Explanation: explanation,
		})

		if logmodel.SeverityScore(cause.Level) <= rootSeverityCeil {
			root := cause
			chain.RootCause = &root
			break
		}
		current = cause
	}

	if len(chain.Links) == 0 {
		return nil, errors.NewNoRootCause()
	}
	if chain.RootCause == nil {
		last := chain.Links[len(chain.Links)-1].Cause
		chain.RootCause = &last
	}

	summary, err := a.summarize(ctx, chain)
	if err != nil {
		return nil, errors.NewLLMError(fmt.Sprintf("summary generation failed: %v", err))
	}
	chain.Summary = summary

	// Recommendation is best-effort and never fatal.
	if rec, err := a.recommend(ctx, chain); err == nil {
		chain.Recommendation = rec
	} else {
		a.logger.Warn("recommendation generation failed, continuing without it", zap.Error(err))
	}

	return chain, nil
}

type parsedEvidence struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service"`
	Message   string `json:"message"`
}

func parseEvents(evidenceJSON []string) []logmodel.LogEvent {
	events := make([]logmodel.LogEvent, 0, len(evidenceJSON))
	for _, raw := range evidenceJSON {
		var p parsedEvidence
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			// Fall back to heuristic level detection from message content.
			events = append(events, logmodel.LogEvent{Message: raw, Level: heuristicLevel(raw)})
			continue
		}
		ts, _ := time.Parse(time.RFC3339, p.Timestamp)
		level := p.Level
		if level == "" {
			level = heuristicLevel(p.Message)
		}
		events = append(events, logmodel.LogEvent{Timestamp: ts, Level: strings.ToUpper(level), Service: p.Service, Message: p.Message})
	}
	return events
}

func heuristicLevel(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "fatal") || strings.Contains(lower, "critical"):
		return "FATAL"
	case strings.Contains(lower, "error"):
		return "ERROR"
	case strings.Contains(lower, "warn"):
		return "WARN"
	case strings.Contains(lower, "debug"):
		return "DEBUG"
	default:
		return "INFO"
	}
}

// selectEffect filters to severity >= 4 and picks highest (severity, timestamp).
func selectEffect(events []logmodel.LogEvent) (logmodel.LogEvent, bool) {
	var best logmodel.LogEvent
	bestScore := -1
	found := false

	for _, e := range events {
		score := logmodel.SeverityScore(e.Level)
		if score < minEffectSeverity {
			continue
		}
		if score > bestScore || (score == bestScore && e.Timestamp.After(best.Timestamp)) {
			best = e
			bestScore = score
			found = true
		}
	}
	return best, found
}

// collectCandidates gathers up to maxCandidates events strictly earlier
// than effect, restricted to the same service or severity >= 3.
func collectCandidates(events []logmodel.LogEvent, effect logmodel.LogEvent, service string) []logmodel.LogEvent {
	var matches []logmodel.LogEvent
	for _, e := range events {
		if !e.Timestamp.Before(effect.Timestamp) {
			continue
		}
		sameService := e.Service == service || e.Service == effect.Service
		if !sameService && logmodel.SeverityScore(e.Level) < 3 {
			continue
		}
		matches = append(matches, e)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Timestamp.After(matches[j].Timestamp) })
	if len(matches) > maxCandidates {
		matches = matches[:maxCandidates]
	}
	return matches
}

type scoreResult struct {
	Score       int    `json:"score"`
	Explanation string `json:"explanation"`
}

// scoreCandidates asks the LLM to score each candidate's causality,
// accepting the highest score meeting minConfidence.
func (a *Analyzer) scoreCandidates(ctx context.Context, effect logmodel.LogEvent, candidates []logmodel.LogEvent) (logmodel.LogEvent, float64, string, bool) {
	var best logmodel.LogEvent
	var bestExplanation string
	bestConfidence := -1.0

	for _, candidate := range candidates {
		confidence, explanation, err := a.scoreOne(ctx, effect, candidate)
		if err != nil {
			a.logger.Warn("candidate scoring failed", zap.Error(err))
			continue
		}
		if confidence >= minConfidence && confidence > bestConfidence {
			best = candidate
			bestExplanation = explanation
			bestConfidence = confidence
		}
	}

	if bestConfidence < minConfidence {
		return logmodel.LogEvent{}, 0, "", false
	}
	return best, bestConfidence, bestExplanation, true
}

func (a *Analyzer) scoreOne(ctx context.Context, effect, candidate logmodel.LogEvent) (float64, string, error) {
	prompt := scoringPrompt(effect, candidate)

	var lastErr error
	for attempt := 0; attempt < maxScoreAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryBackoff[attempt]):
			case <-ctx.Done():
				return 0, "", ctx.Err()
			}
		}

		resp, err := a.llm.Generate(ctx, prompt)
		if err != nil {
			lastErr = err
			if errors.IsRateLimited(err) {
				continue
			}
			return 0, "", err
		}

		var result scoreResult
		if err := json.Unmarshal([]byte(extractJSON(resp)), &result); err != nil {
			return 0, "", fmt.Errorf("invalid scoring response: %w", err)
		}
		return float64(result.Score) / 100.0, result.Explanation, nil
	}
	return 0, "", lastErr
}

func scoringPrompt(effect, candidate logmodel.LogEvent) string {
	return fmt.Sprintf(
		"You are analyzing log causality. Effect: [%s] %s: %s. Candidate cause: [%s] %s: %s. "+
			"Score how likely the candidate caused the effect, 0-100, and give a short explanation. "+
			"Respond as JSON: {\"score\": <int>, \"explanation\": \"<text>\"}",
		effect.Level, effect.Service, effect.Message,
		candidate.Level, candidate.Service, candidate.Message,
	)
}

// extractJSON trims any leading/trailing prose the LLM may add around the
// JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return s
	}
	return s[start : end+1]
}

func trimExplanation(s string) string {
	if len(s) <= explanationMaxChar {
		return s
	}
	return s[:explanationMaxChar]
}

func (a *Analyzer) summarize(ctx context.Context, chain *logmodel.CausalChain) (string, error) {
	prompt := fmt.Sprintf(
		"In 2-3 sentences, explain what happened given this causal chain.\nQuery: %s\nEffect: %s\nChain length: %s\nRoot cause: %s",
		chain.Query, chain.Effect.Message, strconv.Itoa(len(chain.Links)), rootCauseMessage(chain),
	)
	return a.llm.Generate(ctx, prompt)
}

func (a *Analyzer) recommend(ctx context.Context, chain *logmodel.CausalChain) (string, error) {
	prompt := fmt.Sprintf(
		"Given this root cause, suggest a 1-2 item fix: %s", rootCauseMessage(chain),
	)
	return a.llm.Generate(ctx, prompt)
}

func rootCauseMessage(chain *logmodel.CausalChain) string {
	if chain.RootCause == nil {
		return "unknown"
	}
	return chain.RootCause.Message
}
