package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/httpx"
)

// HTTPIndex is a Qdrant-shaped HTTP reference implementation: points are
// upserted and searched via a REST API compatible with Qdrant's
// collection points endpoints.
type HTTPIndex struct {
	http   *httpx.Client
	logger *zap.Logger
}

// NewHTTPIndex builds an HTTP-backed index client against baseURL.
func NewHTTPIndex(baseURL string, logger *zap.Logger) *HTTPIndex {
	c := httpx.New(httpx.Options{
		BaseURL:         baseURL,
		Timeout:         10 * time.Second,
		MaxRetries:      3,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxIdleConns:    20,
		IdleConnTimeout: 90 * time.Second,
		TLSVerify:       true,
		UserAgent:       "logai-vectorindex-http/dev",
	}, logger)
	return &HTTPIndex{http: c, logger: logger}
}

type upsertPoint struct {
	ID      string      `json:"id"`
	Vector  []float32   `json:"vector"`
	Payload interface{} `json:"payload"`
}

type upsertRequest struct {
	Points []upsertPoint `json:"points"`
}

func (h *HTTPIndex) Upsert(ctx context.Context, points []Point) error {
	reqPoints := make([]upsertPoint, len(points))
	for i, p := range points {
		reqPoints[i] = upsertPoint{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}

	_, err := h.http.Do(ctx, &httpx.Request{
		Method: http.MethodPut,
		Path:   "/collections/" + CollectionName + "/points",
		Body:   upsertRequest{Points: reqPoints},
	})
	if err != nil {
		return fmt.Errorf("vector index upsert failed: %w", err)
	}
	return nil
}

type searchRequest struct {
	Vector []float32   `json:"vector"`
	Limit  int         `json:"limit"`
	Filter interface{} `json:"filter,omitempty"`
}

type searchResponseEntry struct {
	Score   float64 `json:"score"`
	Payload Payload `json:"payload"`
}

type searchResponse struct {
	Result []searchResponseEntry `json:"result"`
}

func (h *HTTPIndex) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]Hit, error) {
	resp, err := h.http.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "/collections/" + CollectionName + "/points/search",
		Body:   searchRequest{Vector: vector, Limit: limit, Filter: toQdrantFilter(filter)},
	})
	if err != nil {
		return nil, fmt.Errorf("vector index search failed: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("vector index search: invalid response: %w", err)
	}

	hits := make([]Hit, len(parsed.Result))
	for i, e := range parsed.Result {
		hits[i] = Hit{Payload: e.Payload, Score: e.Score}
	}
	return hits, nil
}

type scrollRequest struct {
	Limit  int         `json:"limit"`
	Filter interface{} `json:"filter,omitempty"`
}

type scrollResponseEntry struct {
	Payload Payload `json:"payload"`
}

type scrollResponse struct {
	Result struct {
		Points []scrollResponseEntry `json:"points"`
	} `json:"result"`
}

func (h *HTTPIndex) Scroll(ctx context.Context, filter Filter, limit int) ([]Hit, error) {
	resp, err := h.http.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "/collections/" + CollectionName + "/points/scroll",
		Body:   scrollRequest{Limit: limit, Filter: toQdrantFilter(filter)},
	})
	if err != nil {
		return nil, fmt.Errorf("vector index scroll failed: %w", err)
	}

	var parsed scrollResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("vector index scroll: invalid response: %w", err)
	}

	hits := make([]Hit, len(parsed.Result.Points))
	for i, e := range parsed.Result.Points {
		hits[i] = Hit{Payload: e.Payload}
	}
	return hits, nil
}

func (h *HTTPIndex) Ping(ctx context.Context) error {
	return h.http.Ping(ctx, "/collections/"+CollectionName)
}

func toQdrantFilter(f Filter) interface{} {
	if f.Service == "" && f.Level == "" && f.From == nil && f.To == nil {
		return nil
	}

	type match struct {
		Key   string      `json:"key"`
		Match interface{} `json:"match,omitempty"`
		Range interface{} `json:"range,omitempty"`
	}

	var conds []match
	if f.Service != "" {
		conds = append(conds, match{Key: "service", Match: map[string]string{"value": f.Service}})
	}
	if f.Level != "" {
		conds = append(conds, match{Key: "level", Match: map[string]string{"value": f.Level}})
	}
	if f.From != nil || f.To != nil {
		rng := map[string]int64{}
		if f.From != nil {
			rng["gte"] = f.From.Unix()
		}
		if f.To != nil {
			rng["lte"] = f.To.Unix()
		}
		conds = append(conds, match{Key: "timestamp_unix", Range: rng})
	}

	return map[string]interface{}{"must": conds}
}
