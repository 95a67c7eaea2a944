package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/repository"
	"workspace-ai-backend/services"
)

const (
	TaskReindexDocument = "doc:reindex"
	TaskEmbedBackfill   = "embed:backfill"
)

type ReindexPayload struct {
	ProjectID  string `json:"project_id"`
	DocumentID string `json:"document_id"`
}

type BackfillPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewReindexTask enqueues a chunk rebuild for one document. Reindexing is
// idempotent via the content-hash gate, so retries are safe.
func NewReindexTask(projectID, documentID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReindexPayload{
		ProjectID:  projectID,
		DocumentID: documentID,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskReindexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

// NewBackfillTask enqueues an embedding backfill pass.
func NewBackfillTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(BackfillPayload{Reason: reason})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskEmbedBackfill,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(5*time.Minute),
		asynq.Queue("default"),
	), nil
}

// TaskProcessor holds the handlers for background tasks.
type TaskProcessor struct {
	docs     repository.DocumentRepository
	memory   *services.MemoryStore
	backfill *services.EmbeddingBackfill
}

func NewTaskProcessor(docs repository.DocumentRepository, memory *services.MemoryStore, backfill *services.EmbeddingBackfill) *TaskProcessor {
	return &TaskProcessor{
		docs:     docs,
		memory:   memory,
		backfill: backfill,
	}
}

func (p *TaskProcessor) HandleReindex(ctx context.Context, t *asynq.Task) error {
	var payload ReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	doc, err := p.docs.GetByDocumentID(ctx, payload.ProjectID, payload.DocumentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted since enqueue; nothing to rebuild
			return fmt.Errorf("document %s not found: %w", payload.DocumentID, asynq.SkipRetry)
		}
		return err
	}

	stored, err := p.memory.ReindexDocument(ctx, payload.ProjectID, services.DocumentIndexRequest{
		DocumentID:   doc.DocumentID,
		DocumentName: doc.Name,
		Content:      doc.Content,
		ContentHash:  doc.ContentHash,
	})
	if err != nil {
		return err
	}

	logger.Info("reindex task complete", "project_id", payload.ProjectID, "document_id", payload.DocumentID, "chunks", stored)
	return nil
}

func (p *TaskProcessor) HandleBackfill(ctx context.Context, t *asynq.Task) error {
	var payload BackfillPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	filled, err := p.backfill.Run(ctx)
	if err != nil {
		return err
	}

	if filled > 0 {
		logger.Info("backfill task complete", "filled", filled, "reason", payload.Reason)
	}
	return nil
}
