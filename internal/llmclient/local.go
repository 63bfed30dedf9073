package llmclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/logai/logai/internal/httpx"
)

// LocalClient talks to a self-hosted, OpenAI-compatible inference server
// (e.g. llama.cpp server, vLLM, Ollama's OpenAI shim) over plain HTTP,
// reusing the shared retrying client instead of a vendor SDK.
type LocalClient struct {
	http       *httpx.Client
	model      string
	embedModel string
	logger     *zap.Logger
}

// NewLocal builds a local LLM client against baseURL.
func NewLocal(baseURL, model, embedModel string, logger *zap.Logger) *LocalClient {
	c := httpx.New(httpx.Options{
		BaseURL:         baseURL,
		Timeout:         60 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    500 * time.Millisecond,
		RetryWaitMax:    5 * time.Second,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
		TLSVerify:       true,
		UserAgent:       "logai-llmclient-local/dev",
	}, logger)

	return &LocalClient{http: c, model: model, embedModel: embedModel, logger: logger}
}

func (l *LocalClient) Model() string    { return l.model }
func (l *LocalClient) Provider() string { return "local" }

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate posts an OpenAI-shaped chat completion request.
func (l *LocalClient) Generate(ctx context.Context, prompt string) (string, error) {
	reqBody := chatCompletionRequest{
		Model:    l.model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}

	resp, err := l.http.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "/v1/chat/completions",
		Body:   reqBody,
	})
	if err != nil {
		return "", fmt.Errorf("local generate failed: %w", err)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return "", fmt.Errorf("local generate: invalid response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("local generate: no choices returned")
	}
	return parsed.Choices[0].Message.Content, nil
}

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed posts an OpenAI-shaped embeddings request.
func (l *LocalClient) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := l.http.Do(ctx, &httpx.Request{
		Method: http.MethodPost,
		Path:   "/v1/embeddings",
		Body:   embeddingRequest{Model: l.embedModel, Input: text},
	})
	if err != nil {
		return nil, fmt.Errorf("local embed failed: %w", err)
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(resp.Body, &parsed); err != nil {
		return nil, fmt.Errorf("local embed: invalid response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("local embed: no embedding data returned")
	}
	return parsed.Data[0].Embedding, nil
}

// Ping verifies the local inference server responds to a health path.
func (l *LocalClient) Ping(ctx context.Context) error {
	return l.http.Ping(ctx, "/health")
}
