// Package llmclient provides the generation and embedding capability used
// by the retrieval (C2/C3), causal (C4), and chat (C6) components, with a
// hosted OpenAI-compatible provider and a local raw-HTTP provider.
package llmclient

import (
	"context"
)

// Client is the capability every LogAI component depends on for natural
// language reasoning and embeddings.
type Client interface {
	// Generate produces a completion for prompt, honoring ctx cancellation.
	Generate(ctx context.Context, prompt string) (string, error)
	// Embed returns a fixed-dimension embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Model returns the configured model identifier, for logging.
	Model() string
	// Provider returns the provider name ("hosted" or "local").
	Provider() string
	// Ping verifies the provider is reachable, for internal/health.
	Ping(ctx context.Context) error
}

// EmbeddingDim is the fixed dimensionality every Client must return from
// Embed, matching the vector-index collection schema.
const EmbeddingDim = 384
