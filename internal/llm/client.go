package llm

import (
	"context"
)

// LLMClient is a single blocking completion call against whatever backend
// the factory selected. Implementations must honor ctx cancellation.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient produces an embedding vector for a piece of text.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RerankerClient scores how interchangeable two texts are, in [0,1].
// It stands in for a cross-encoder model; the LLM-backed implementation
// below is the fallback when no dedicated rerank endpoint is configured.
type RerankerClient interface {
	Score(ctx context.Context, a, b string) (float64, error)
}
