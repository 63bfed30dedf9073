package llmclient

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// HostedClient talks to an OpenAI-compatible hosted provider, wrapped in a
// circuit breaker so a degraded provider fails fast instead of piling up
// latency on every chat turn.
type HostedClient struct {
	client     *openai.Client
	model      string
	embedModel string
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewHosted builds a hosted LLM client. baseURL, when non-empty, points the
// client at an OpenAI-compatible endpoint other than api.openai.com.
func NewHosted(apiKey, model, embedModel, baseURL string, logger *zap.Logger) *HostedClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-hosted",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("LLM circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &HostedClient{
		client:     openai.NewClientWithConfig(cfg),
		model:      model,
		embedModel: embedModel,
		breaker:    breaker,
		logger:     logger,
	}
}

func (h *HostedClient) Model() string    { return h.model }
func (h *HostedClient) Provider() string { return "hosted" }

// Generate requests a chat completion through the circuit breaker.
func (h *HostedClient) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := h.breaker.Execute(func() (interface{}, error) {
		resp, err := h.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: h.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			Temperature: 0.2,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("hosted LLM returned no choices")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", fmt.Errorf("hosted generate failed: %w", err)
	}
	return result.(string), nil
}

// Embed requests an embedding vector through the circuit breaker and returns
// it as the provider sends it; its length is not checked against or
// truncated to EmbeddingDim.
func (h *HostedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := h.breaker.Execute(func() (interface{}, error) {
		resp, err := h.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: []string{text},
			Model: openai.EmbeddingModel(h.embedModel),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("hosted LLM returned no embedding data")
		}
		return resp.Data[0].Embedding, nil
	})
	if err != nil {
		return nil, fmt.Errorf("hosted embed failed: %w", err)
	}
	return result.([]float32), nil
}

// Ping verifies the breaker isn't tripped open and the provider responds to
// a minimal completion request.
func (h *HostedClient) Ping(ctx context.Context) error {
	if h.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("llm circuit breaker is open")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := h.client.ListModels(pingCtx)
	return err
}
