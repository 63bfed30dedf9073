package retrieval

import (
	"sort"
	"strings"

	"github.com/logai/logai/internal/logmodel"
)

var keywordWeights = map[string]float64{
	"critical": 2.5, "fatal": 2.5, "crash": 2.5,
	"error": 2.0, "fail": 2.0, "failed": 2.0, "exception": 2.0,
	"warn": 1.5, "warning": 1.5, "timeout": 1.5,
}

func wordWeight(word string) float64 {
	if w, ok := keywordWeights[word]; ok {
		return w
	}
	return 1.0
}

// keywordScore computes score_kw for one candidate's lowercased text
// against the lowercased, whitespace-split query words.
func keywordScore(queryWords []string, text string) float64 {
	if len(queryWords) == 0 {
		return 0
	}

	lowerText := strings.ToLower(text)
	var weighted float64
	for _, word := range queryWords {
		if word == "" {
			continue
		}
		if strings.Contains(lowerText, word) {
			weighted += wordWeight(word)
		}
	}

	score := weighted / (float64(len(queryWords)) * 2.5)
	if score > 1 {
		score = 1
	}
	return score
}

// Rerank combines semantic and keyword scores, truncating to k while
// preserving stable order among ties.
func Rerank(queryText string, candidates []logmodel.ScoredEvidence, k int) []logmodel.ScoredEvidence {
	queryWords := strings.Fields(strings.ToLower(queryText))

	type scored struct {
		evidence logmodel.ScoredEvidence
		final    float64
		index    int
	}

	scoredList := make([]scored, len(candidates))
	for i, c := range candidates {
		text := c.Payload.Service + " " + c.Payload.Level + " " + c.Payload.Message
		kw := keywordScore(queryWords, text)
		final := 0.7*c.Score + 0.3*kw
		scoredList[i] = scored{evidence: logmodel.ScoredEvidence{Payload: c.Payload, Score: c.Score}, final: final, index: i}
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		return scoredList[i].final > scoredList[j].final
	})

	if k > 0 && len(scoredList) > k {
		scoredList = scoredList[:k]
	}

	out := make([]logmodel.ScoredEvidence, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.evidence
	}
	return out
}
