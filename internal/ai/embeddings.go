package ai

import (
	"context"
	"time"
)

const defaultEmbedBatchSize = 64

// EmbedAll embeds texts in provider-safe batches. Output order matches
// input order regardless of where batch boundaries fall. Blank entries are
// never sent to the provider; their slot in the result stays nil. Rate
// limited batches are retried with backoff before giving up.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if e == nil {
		return nil, ErrProviderUnavailable
	}
	if batchSize <= 0 {
		batchSize = defaultEmbedBatchSize
	}

	vectors := make([][]float32, len(texts))

	// Collect non-blank inputs, remembering original positions
	positions := make([]int, 0, len(texts))
	pending := make([]string, 0, len(texts))
	for i, text := range texts {
		if isBlank(text) {
			continue
		}
		positions = append(positions, i)
		pending = append(pending, text)
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}

		batch, err := embedWithRetry(ctx, e, pending[start:end])
		if err != nil {
			return nil, err
		}
		for j, vec := range batch {
			vectors[positions[start+j]] = vec
		}
	}

	return vectors, nil
}

// embedWithRetry retries rate-limited batches; other errors fail fast.
func embedWithRetry(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 0; attempt < 3; attempt++ {
		vectors, err := e.EmbedBatch(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !IsRateLimited(err) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, lastErr
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
