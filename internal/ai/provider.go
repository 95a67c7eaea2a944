package ai

import (
	"context"
	"errors"
)

// Capability interfaces are injected into every component that needs them.
// Nothing in the engine reads ambient provider configuration.

// TextGenerator produces free-form or JSON-structured text.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt, systemPrompt string) (string, error)
	// GenerateJSON asks the provider for schema-conformant JSON and decodes
	// it into out. Callers must still validate the decoded shape: providers
	// are not guaranteed to obey the schema.
	GenerateJSON(ctx context.Context, prompt, systemPrompt string, out any) error
}

// Embedder produces fixed-dimensionality vectors for similarity search.
// One embedding model per deployment; stored vectors are tagged with
// Model() so vectors from different spaces are never compared.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

var (
	// ErrProviderUnavailable means the capability is not configured or
	// unreachable. Callers degrade to the lexical fallback path.
	ErrProviderUnavailable = errors.New("ai provider unavailable")

	// ErrRateLimited is distinguishable from generic failure so callers
	// can retry with backoff instead of abandoning the call.
	ErrRateLimited = errors.New("ai provider rate limited")
)

// IsRateLimited reports whether err is (or wraps) a rate-limit signal.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
