// Package retrieval implements the Retrieval Orchestrator (C2) and
// Reranker (C3): embed, filter, search, dedupe, optionally augment with a
// causal time-window scroll, then rerank to a target size.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/logai/logai/internal/errors"
	"github.com/logai/logai/internal/llmclient"
	"github.com/logai/logai/internal/logmodel"
	"github.com/logai/logai/internal/vectorindex"
)

// Orchestrator implements the C2/C3 pipeline.
type Orchestrator struct {
	index      vectorindex.Index
	llm        llmclient.Client
	logger     *zap.Logger
	embedGroup singleflight.Group
}

// New builds a retrieval orchestrator.
func New(index vectorindex.Index, llm llmclient.Client, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{index: index, llm: llm, logger: logger}
}

const (
	candidatesChatCausal = 100
	candidatesAsk        = 30
	causalWindow         = 5 * time.Minute
	causalScrollLimit    = 200
	causalBaseScore      = 0.5
)

// Retrieve runs the full question-answering pipeline: embed, search
// (service/level NOT applied at the index layer), optional causal
// augmentation, rerank to kContext. forChat selects the candidate-count
// tier: chat turns and causal-intent queries request candidatesChatCausal
// candidates; a non-chat, non-causal call requests candidatesAsk.
func (o *Orchestrator) Retrieve(ctx context.Context, aq logmodel.AnalyzedQuery, originalQuery string, kContext int, forChat bool) ([]logmodel.ScoredEvidence, error) {
	vector, err := o.embed(ctx, aq.Cleaned)
	if err != nil {
		return nil, err
	}

	causal := aq.Intent == logmodel.IntentCausal
	limit := candidatesAsk
	if forChat || causal {
		limit = candidatesChatCausal
	}

	filter := vectorindex.Filter{From: aq.From, To: aq.To}
	hits, err := o.index.Search(ctx, vector, filter, limit)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("vector index search failed: %v", err))
	}

	candidates := dedupe(toScoredEvidence(hits))
	if len(candidates) == 0 {
		candidates, err = o.fallbackScroll(ctx, filter, limit)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			return nil, errors.NewNoEvidence()
		}
	}

	if causal {
		candidates, err = o.augmentCausal(ctx, candidates, filter)
		if err != nil {
			return nil, err
		}
	}

	return Rerank(originalQuery, candidates, kContext), nil
}

// fallbackScroll degrades a dense search with zero hits to a time-window
// scroll, when the query carries an explicit from/to. A query with no time
// window has nothing for a scroll to narrow by, so it is skipped.
func (o *Orchestrator) fallbackScroll(ctx context.Context, filter vectorindex.Filter, limit int) ([]logmodel.ScoredEvidence, error) {
	if filter.From == nil && filter.To == nil {
		return nil, nil
	}
	hits, err := o.index.Scroll(ctx, filter, limit)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("fallback scroll failed: %v", err))
	}
	return dedupe(toScoredEvidence(hits)), nil
}

// Search runs the keyword-search entry point (§6): service/level filters
// ARE applied at the index layer here, unlike Retrieve.
func (o *Orchestrator) Search(ctx context.Context, aq logmodel.AnalyzedQuery, originalQuery string, kContext int) ([]logmodel.ScoredEvidence, error) {
	vector, err := o.embed(ctx, aq.Cleaned)
	if err != nil {
		return nil, err
	}

	filter := vectorindex.Filter{Service: aq.Service, Level: aq.Level, From: aq.From, To: aq.To}
	hits, err := o.index.Search(ctx, vector, filter, candidatesAsk)
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("vector index search failed: %v", err))
	}

	candidates := dedupe(toScoredEvidence(hits))
	if len(candidates) == 0 {
		return nil, errors.NewNoEvidence()
	}

	return Rerank(originalQuery, candidates, kContext), nil
}

// embed performs the blocking CPU embedding call. Concurrent identical
// requests (same cleaned query) collapse via singleflight; the llm
// client itself is responsible for the embedding-model mutex.
func (o *Orchestrator) embed(ctx context.Context, text string) ([]float32, error) {
	v, err, _ := o.embedGroup.Do(text, func() (interface{}, error) {
		return o.llm.Embed(ctx, text)
	})
	if err != nil {
		return nil, errors.NewInternalError(fmt.Sprintf("embedding failed: %v", err))
	}
	return v.([]float32), nil
}

// augmentCausal locates the effect timestamp (highest severity hit, ties
// broken by recency), scrolls the preceding window, merges with the
// semantic set (semantic first), and dedupes.
func (o *Orchestrator) augmentCausal(ctx context.Context, candidates []logmodel.ScoredEvidence, filter vectorindex.Filter) ([]logmodel.ScoredEvidence, error) {
	effect, ok := highestSeverity(candidates)
	if !ok {
		return candidates, nil
	}

	effectTime, err := time.Parse(time.RFC3339, effect.Payload.Timestamp)
	if err != nil {
		return candidates, nil
	}

	from := effectTime.Add(-causalWindow)
	scrollFilter := vectorindex.Filter{Service: filter.Service, Level: filter.Level, From: &from, To: &effectTime}

	hits, err := o.index.Scroll(ctx, scrollFilter, causalScrollLimit)
	if err != nil {
		o.logger.Warn("causal scroll failed", zap.Error(err))
		return candidates, nil
	}

	scrolled := make([]logmodel.ScoredEvidence, len(hits))
	for i, h := range hits {
		scrolled[i] = logmodel.ScoredEvidence{Payload: toEvidencePayload(h.Payload), Score: causalBaseScore}
	}

	merged := append(append([]logmodel.ScoredEvidence(nil), candidates...), scrolled...)
	return dedupe(merged), nil
}

func toScoredEvidence(hits []vectorindex.Hit) []logmodel.ScoredEvidence {
	out := make([]logmodel.ScoredEvidence, len(hits))
	for i, h := range hits {
		out[i] = logmodel.ScoredEvidence{Payload: toEvidencePayload(h.Payload), Score: h.Score}
	}
	return out
}

// toEvidencePayload projects an index payload to the canonical
// {timestamp, level, service, message} evidence payload.
func toEvidencePayload(p vectorindex.Payload) logmodel.EvidencePayload {
	return logmodel.EvidencePayload{Timestamp: p.Timestamp, Level: p.Level, Service: p.Service, Message: p.Message}
}

// dedupe removes duplicate payloads by JSON equality, preserving the
// first occurrence's score.
func dedupe(candidates []logmodel.ScoredEvidence) []logmodel.ScoredEvidence {
	seen := make(map[string]bool, len(candidates))
	out := make([]logmodel.ScoredEvidence, 0, len(candidates))
	for _, c := range candidates {
		key, err := json.Marshal(c.Payload)
		if err != nil {
			continue
		}
		if seen[string(key)] {
			continue
		}
		seen[string(key)] = true
		out = append(out, c)
	}
	return out
}

func highestSeverity(candidates []logmodel.ScoredEvidence) (logmodel.ScoredEvidence, bool) {
	var best logmodel.ScoredEvidence
	var bestTime time.Time
	bestScore := -1
	found := false

	for _, c := range candidates {
		score := logmodel.SeverityScore(c.Payload.Level)
		ts, err := time.Parse(time.RFC3339, c.Payload.Timestamp)
		if err != nil {
			continue
		}
		if score > bestScore || (score == bestScore && ts.After(bestTime)) {
			best = c
			bestTime = ts
			bestScore = score
			found = true
		}
	}
	return best, found
}

// ToJSON renders the canonical evidence payload as the JSON string form
// used for LLM context and for CausalChain parsing.
func ToJSON(e logmodel.ScoredEvidence) (string, error) {
	b, err := json.Marshal(e.Payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
