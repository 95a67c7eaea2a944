package services

import (
	"context"
	"fmt"

	"workspace-ai-backend/internal/ai"
	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/repository"
)

// EmbeddingBackfill fills in vectors for chunks stored while the embedding
// provider was down. It runs from the periodic sweep and from queued
// backfill tasks.
type EmbeddingBackfill struct {
	chunks    repository.ChunkRepository
	embedder  ai.Embedder
	batchSize int
}

func NewEmbeddingBackfill(chunks repository.ChunkRepository, embedder ai.Embedder, batchSize int) *EmbeddingBackfill {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &EmbeddingBackfill{chunks: chunks, embedder: embedder, batchSize: batchSize}
}

// Run embeds up to one batch of vectorless chunks. Returns how many were
// filled in; a partial failure stops the run but keeps what succeeded.
func (bf *EmbeddingBackfill) Run(ctx context.Context) (int, error) {
	if bf.embedder == nil {
		return 0, nil
	}

	pending, err := bf.chunks.ListMissingEmbeddings(ctx, bf.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list chunks missing embeddings: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	texts := make([]string, len(pending))
	for i, chunk := range pending {
		texts[i] = chunk.Text
	}

	vectors, err := ai.EmbedAll(ctx, bf.embedder, texts, 0)
	if err != nil {
		return 0, fmt.Errorf("backfill embedding failed: %w", err)
	}

	filled := 0
	for i, chunk := range pending {
		if vectors[i] == nil {
			continue
		}
		if err := bf.chunks.SetEmbedding(ctx, chunk.ID, vectors[i], bf.embedder.Model()); err != nil {
			return filled, fmt.Errorf("failed to store embedding for chunk %s: %w", chunk.ID.Hex(), err)
		}
		filled++
	}

	if filled > 0 {
		logger.Info("embedding backfill pass complete", "filled", filled, "scanned", len(pending))
	}
	return filled, nil
}
