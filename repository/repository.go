package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"workspace-ai-backend/models"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// DocumentRepository persists project documents. Every query is scoped by
// project id; cross-project reads are a bug, not a feature.
type DocumentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByDocumentID(ctx context.Context, projectID, documentID string) (*models.Document, error)
	GetByContentHash(ctx context.Context, projectID, contentHash string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	ListByProject(ctx context.Context, projectID string) ([]models.Document, error)
}

// ChunkRepository persists the denormalized retrieval chunks.
type ChunkRepository interface {
	InsertMany(ctx context.Context, chunks []models.DocumentChunk) error
	DeleteByDocument(ctx context.Context, projectID, documentID string) (int64, error)
	CountByDocument(ctx context.Context, projectID, documentID string) (int64, error)
	// StoredContentHash returns the content hash recorded on the document's
	// existing chunk set, or "" when no chunks exist.
	StoredContentHash(ctx context.Context, projectID, documentID string) (string, error)
	ListByProject(ctx context.Context, projectID string) ([]models.DocumentChunk, error)
	ListByDocument(ctx context.Context, projectID, documentID string) ([]models.DocumentChunk, error)
	// SearchText is the lexical fallback: case-insensitive substring match,
	// newest chunks first.
	SearchText(ctx context.Context, projectID, query string, limit int) ([]models.DocumentChunk, error)
	// ListMissingEmbeddings returns chunks persisted without a vector, for
	// the backfill sweep.
	ListMissingEmbeddings(ctx context.Context, limit int) ([]models.DocumentChunk, error)
	SetEmbedding(ctx context.Context, id primitive.ObjectID, embedding []float32, model string) error
}

// MessageRepository persists append-only chat messages.
type MessageRepository interface {
	Insert(ctx context.Context, msg *models.StoredMessage) error
	ListByProject(ctx context.Context, projectID string, limit int) ([]models.StoredMessage, error)
	SearchText(ctx context.Context, projectID, query string, limit int) ([]models.StoredMessage, error)
}
