// Package ai defines the capability surface the pipeline expects from an AI
// provider. Implementations live in subpackages.
package ai

import (
	"context"
	"errors"
)

// ErrServiceUnavailable marks a provider failure that survived the bounded
// retry policy. Stages convert it into an error outcome instead of
// propagating it past the orchestrator.
var ErrServiceUnavailable = errors.New("ai service unavailable")

// Generator produces free-form text from a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Embedder produces an embedding vector for a text, used by the semantic
// role classifier.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
