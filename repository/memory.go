package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"workspace-ai-backend/models"
)

// In-memory repository implementations. They back the test suite and small
// single-node deployments; behavior mirrors the Mongo implementations.

type InMemoryDocumentRepository struct {
	mu   sync.RWMutex
	docs []models.Document
}

func NewInMemoryDocumentRepository() *InMemoryDocumentRepository {
	return &InMemoryDocumentRepository{}
}

func (r *InMemoryDocumentRepository) Create(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	r.docs = append(r.docs, *doc)
	return nil
}

func (r *InMemoryDocumentRepository) GetByDocumentID(_ context.Context, projectID, documentID string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.docs {
		if r.docs[i].ProjectID == projectID && r.docs[i].DocumentID == documentID {
			doc := r.docs[i]
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryDocumentRepository) GetByContentHash(_ context.Context, projectID, contentHash string) (*models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for i := range r.docs {
		if r.docs[i].ProjectID == projectID && r.docs[i].ContentHash == contentHash {
			doc := r.docs[i]
			return &doc, nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryDocumentRepository) Update(_ context.Context, doc *models.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.docs {
		if r.docs[i].ProjectID == doc.ProjectID && r.docs[i].DocumentID == doc.DocumentID {
			doc.UpdatedAt = time.Now()
			r.docs[i] = *doc
			return nil
		}
	}
	return ErrNotFound
}

func (r *InMemoryDocumentRepository) ListByProject(_ context.Context, projectID string) ([]models.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	docs := make([]models.Document, 0)
	for i := range r.docs {
		if r.docs[i].ProjectID == projectID {
			docs = append(docs, r.docs[i])
		}
	}
	return docs, nil
}

type storedMemChunk struct {
	chunk     models.DocumentChunk
	createdAt time.Time
}

type InMemoryChunkRepository struct {
	mu     sync.RWMutex
	chunks []storedMemChunk
}

func NewInMemoryChunkRepository() *InMemoryChunkRepository {
	return &InMemoryChunkRepository{}
}

func (r *InMemoryChunkRepository) InsertMany(_ context.Context, chunks []models.DocumentChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for _, chunk := range chunks {
		if chunk.ID.IsZero() {
			chunk.ID = primitive.NewObjectID()
		}
		r.chunks = append(r.chunks, storedMemChunk{chunk: chunk, createdAt: now})
	}
	return nil
}

func (r *InMemoryChunkRepository) DeleteByDocument(_ context.Context, projectID, documentID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.chunks[:0]
	var deleted int64
	for _, sc := range r.chunks {
		if sc.chunk.ProjectID == projectID && sc.chunk.DocumentID == documentID {
			deleted++
			continue
		}
		kept = append(kept, sc)
	}
	r.chunks = kept
	return deleted, nil
}

func (r *InMemoryChunkRepository) CountByDocument(_ context.Context, projectID, documentID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var count int64
	for _, sc := range r.chunks {
		if sc.chunk.ProjectID == projectID && sc.chunk.DocumentID == documentID {
			count++
		}
	}
	return count, nil
}

func (r *InMemoryChunkRepository) StoredContentHash(_ context.Context, projectID, documentID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, sc := range r.chunks {
		if sc.chunk.ProjectID == projectID && sc.chunk.DocumentID == documentID {
			return sc.chunk.ContentHash, nil
		}
	}
	return "", nil
}

func (r *InMemoryChunkRepository) ListByProject(_ context.Context, projectID string) ([]models.DocumentChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunks := make([]models.DocumentChunk, 0)
	for _, sc := range r.chunks {
		if sc.chunk.ProjectID == projectID {
			chunks = append(chunks, sc.chunk)
		}
	}
	return chunks, nil
}

func (r *InMemoryChunkRepository) ListByDocument(_ context.Context, projectID, documentID string) ([]models.DocumentChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunks := make([]models.DocumentChunk, 0)
	for _, sc := range r.chunks {
		if sc.chunk.ProjectID == projectID && sc.chunk.DocumentID == documentID {
			chunks = append(chunks, sc.chunk)
		}
	}
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
	return chunks, nil
}

func (r *InMemoryChunkRepository) SearchText(_ context.Context, projectID, query string, limit int) ([]models.DocumentChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loweredQuery := strings.ToLower(query)
	type hit struct {
		chunk     models.DocumentChunk
		createdAt time.Time
	}
	hits := make([]hit, 0)
	for _, sc := range r.chunks {
		if sc.chunk.ProjectID != projectID {
			continue
		}
		if strings.Contains(strings.ToLower(sc.chunk.Text), loweredQuery) {
			hits = append(hits, hit{chunk: sc.chunk, createdAt: sc.createdAt})
		}
	}
	// Newest first, matching the Mongo sort
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].createdAt.After(hits[j].createdAt) })

	chunks := make([]models.DocumentChunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, h.chunk)
		if limit > 0 && len(chunks) >= limit {
			break
		}
	}
	return chunks, nil
}

func (r *InMemoryChunkRepository) ListMissingEmbeddings(_ context.Context, limit int) ([]models.DocumentChunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	chunks := make([]models.DocumentChunk, 0)
	for _, sc := range r.chunks {
		if len(sc.chunk.Embedding) == 0 {
			chunks = append(chunks, sc.chunk)
			if limit > 0 && len(chunks) >= limit {
				break
			}
		}
	}
	return chunks, nil
}

func (r *InMemoryChunkRepository) SetEmbedding(_ context.Context, id primitive.ObjectID, embedding []float32, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.chunks {
		if r.chunks[i].chunk.ID == id {
			r.chunks[i].chunk.Embedding = embedding
			r.chunks[i].chunk.EmbeddingModel = model
			return nil
		}
	}
	return ErrNotFound
}

type InMemoryMessageRepository struct {
	mu   sync.RWMutex
	msgs []models.StoredMessage
}

func NewInMemoryMessageRepository() *InMemoryMessageRepository {
	return &InMemoryMessageRepository{}
}

func (r *InMemoryMessageRepository) Insert(_ context.Context, msg *models.StoredMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	r.msgs = append(r.msgs, *msg)
	return nil
}

func (r *InMemoryMessageRepository) ListByProject(_ context.Context, projectID string, limit int) ([]models.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msgs := make([]models.StoredMessage, 0)
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].ProjectID == projectID {
			msgs = append(msgs, r.msgs[i])
			if limit > 0 && len(msgs) >= limit {
				break
			}
		}
	}
	return msgs, nil
}

func (r *InMemoryMessageRepository) SearchText(_ context.Context, projectID, query string, limit int) ([]models.StoredMessage, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	loweredQuery := strings.ToLower(query)
	msgs := make([]models.StoredMessage, 0)
	for i := len(r.msgs) - 1; i >= 0; i-- {
		if r.msgs[i].ProjectID != projectID {
			continue
		}
		if strings.Contains(strings.ToLower(r.msgs[i].Content), loweredQuery) {
			msgs = append(msgs, r.msgs[i])
			if limit > 0 && len(msgs) >= limit {
				break
			}
		}
	}
	return msgs, nil
}
