package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"workspace-ai-backend/internal/ai"
	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/internal/telemetry"
	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

// FallbackSimilarity is attached to lexical-search hits so downstream
// consumers see a uniform shape whether or not embeddings were available.
const FallbackSimilarity = 0.5

// SearchOptions tune a memory search.
type SearchOptions struct {
	Limit     int
	Threshold float64
}

// DocumentIndexRequest carries everything needed to (re)index one document.
type DocumentIndexRequest struct {
	DocumentID   string
	DocumentName string
	Content      string
	ContentHash  string
}

// MemoryStore persists chunks and messages with best-effort embeddings and
// answers similarity searches, degrading to lexical search whenever the
// embedding provider is unavailable.
type MemoryStore struct {
	chunks    repository.ChunkRepository
	messages  repository.MessageRepository
	embedder  ai.Embedder // nil when embeddings are disabled
	chunker   *Chunker
	batchSize int
	metrics   *telemetry.Metrics // optional

	defaultLimit     int
	defaultThreshold float64

	// Reindex for the same (documentId, projectId) is delete-then-insert
	// and must not race with itself.
	reindexLocks sync.Map
}

// MemoryStoreOptions configures a MemoryStore.
type MemoryStoreOptions struct {
	Chunks          repository.ChunkRepository
	Messages        repository.MessageRepository
	Embedder        ai.Embedder
	Chunker         *Chunker
	EmbedBatchSize  int
	SearchLimit     int
	SearchThreshold float64
	Metrics         *telemetry.Metrics
}

func NewMemoryStore(opts MemoryStoreOptions) *MemoryStore {
	if opts.Chunker == nil {
		opts.Chunker = NewChunker(DefaultMaxChunkSize, DefaultChunkOverlap)
	}
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = 10
	}
	if opts.SearchThreshold <= 0 {
		opts.SearchThreshold = 0.3
	}
	return &MemoryStore{
		chunks:           opts.Chunks,
		messages:         opts.Messages,
		embedder:         opts.Embedder,
		chunker:          opts.Chunker,
		batchSize:        opts.EmbedBatchSize,
		metrics:          opts.Metrics,
		defaultLimit:     opts.SearchLimit,
		defaultThreshold: opts.SearchThreshold,
	}
}

// StoreMessage persists a chat message. The embedding is best-effort:
// provider failure is logged and the message is stored without a vector.
func (ms *MemoryStore) StoreMessage(ctx context.Context, projectID string, msg models.StoredMessage) (*models.StoredMessage, error) {
	msg.ProjectID = projectID

	if ms.embedder != nil {
		vec, err := ms.embedder.EmbedText(ctx, msg.Content)
		if err != nil {
			logger.Warn("message embedding failed, storing without vector", "project_id", projectID, "error", err)
		} else {
			msg.Embedding = vec
			msg.EmbeddingModel = ms.embedder.Model()
		}
	}

	if err := ms.messages.Insert(ctx, &msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	return &msg, nil
}

// StoreDocument chunks, embeds and persists a document's content. It is
// idempotent: if chunks already exist for (documentId, projectId) it
// returns 0 without touching anything.
func (ms *MemoryStore) StoreDocument(ctx context.Context, projectID string, req DocumentIndexRequest) (int, error) {
	count, err := ms.chunks.CountByDocument(ctx, projectID, req.DocumentID)
	if err != nil {
		return 0, fmt.Errorf("failed to check existing chunks: %w", err)
	}
	if count > 0 {
		return 0, nil
	}
	return ms.writeChunks(ctx, projectID, req)
}

// ReindexDocument rebuilds a document's chunk set when its content hash
// changed. An unchanged hash is a no-op; this hash gate is the sole
// staleness detector.
func (ms *MemoryStore) ReindexDocument(ctx context.Context, projectID string, req DocumentIndexRequest) (int, error) {
	key := projectID + "/" + req.DocumentID
	lockAny, _ := ms.reindexLocks.LoadOrStore(key, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	storedHash, err := ms.chunks.StoredContentHash(ctx, projectID, req.DocumentID)
	if err != nil {
		return 0, fmt.Errorf("failed to read stored content hash: %w", err)
	}
	if storedHash == req.ContentHash {
		return 0, nil
	}

	if _, err := ms.chunks.DeleteByDocument(ctx, projectID, req.DocumentID); err != nil {
		return 0, fmt.Errorf("failed to delete stale chunks: %w", err)
	}
	return ms.writeChunks(ctx, projectID, req)
}

func (ms *MemoryStore) writeChunks(ctx context.Context, projectID string, req DocumentIndexRequest) (int, error) {
	textChunks := ms.chunker.Chunk(req.Content)
	if len(textChunks) == 0 {
		return 0, nil
	}

	records := make([]models.DocumentChunk, len(textChunks))
	texts := make([]string, len(textChunks))
	for i, tc := range textChunks {
		records[i] = models.DocumentChunk{
			ProjectID:    projectID,
			DocumentID:   req.DocumentID,
			DocumentName: req.DocumentName,
			ChunkIndex:   tc.Index,
			Text:         tc.Text,
			ContentHash:  req.ContentHash,
		}
		texts[i] = tc.Text
	}

	if ms.embedder != nil {
		vectors, err := ai.EmbedAll(ctx, ms.embedder, texts, ms.batchSize)
		if err != nil {
			logger.Warn("chunk embedding failed, storing without vectors", "document_id", req.DocumentID, "error", err)
		} else {
			for i := range records {
				if vectors[i] != nil {
					records[i].Embedding = vectors[i]
					records[i].EmbeddingModel = ms.embedder.Model()
				}
			}
		}
	}

	if err := ms.chunks.InsertMany(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to store chunks: %w", err)
	}
	return len(records), nil
}

// SearchDocuments ranks project chunks against the query by cosine
// similarity, falling back to case-insensitive substring search when the
// embedding path is unavailable.
func (ms *MemoryStore) SearchDocuments(ctx context.Context, projectID, query string, opts SearchOptions) ([]models.ChunkHit, error) {
	limit, threshold := ms.effective(opts)

	queryVec, err := ms.queryEmbedding(ctx, query)
	if err != nil {
		logger.Debug("document search using lexical fallback", "project_id", projectID, "reason", err)
		ms.recordFallback(err)
		return ms.lexicalDocumentSearch(ctx, projectID, query, limit)
	}

	chunks, err := ms.chunks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	hits := make([]models.ChunkHit, 0)
	for _, chunk := range chunks {
		// Vectors from another embedding model live in another space
		if len(chunk.Embedding) == 0 || chunk.EmbeddingModel != ms.embedder.Model() {
			continue
		}
		sim := CosineSimilarity(queryVec, chunk.Embedding)
		if sim < threshold {
			continue
		}
		hits = append(hits, models.ChunkHit{
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			ChunkIndex:   chunk.ChunkIndex,
			Text:         chunk.Text,
			Similarity:   sim,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchMessages is the chat-side equivalent of SearchDocuments.
func (ms *MemoryStore) SearchMessages(ctx context.Context, projectID, query string, opts SearchOptions) ([]models.MessageHit, error) {
	limit, threshold := ms.effective(opts)

	queryVec, err := ms.queryEmbedding(ctx, query)
	if err != nil {
		logger.Debug("message search using lexical fallback", "project_id", projectID, "reason", err)
		ms.recordFallback(err)
		return ms.lexicalMessageSearch(ctx, projectID, query, limit)
	}

	msgs, err := ms.messages.ListByProject(ctx, projectID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	hits := make([]models.MessageHit, 0)
	for _, msg := range msgs {
		if len(msg.Embedding) == 0 || msg.EmbeddingModel != ms.embedder.Model() {
			continue
		}
		sim := CosineSimilarity(queryVec, msg.Embedding)
		if sim < threshold {
			continue
		}
		hits = append(hits, models.MessageHit{
			Role:       msg.Role,
			Content:    msg.Content,
			Similarity: sim,
			Timestamp:  msg.Timestamp,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// BuildContext assembles a labeled recall block from chat and document
// memory. Both searches run concurrently. Returns "" when nothing matched.
// The block is injected into prompts verbatim - no summarization, so the
// recalled text stays exact.
func (ms *MemoryStore) BuildContext(ctx context.Context, projectID, query string) (string, error) {
	var (
		wg      sync.WaitGroup
		msgHits []models.MessageHit
		docHits []models.ChunkHit
		msgErr  error
		docErr  error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		msgHits, msgErr = ms.SearchMessages(ctx, projectID, query, SearchOptions{Limit: 5})
	}()
	go func() {
		defer wg.Done()
		docHits, docErr = ms.SearchDocuments(ctx, projectID, query, SearchOptions{Limit: 5})
	}()
	wg.Wait()

	if msgErr != nil {
		logger.Warn("context build: message search failed", "project_id", projectID, "error", msgErr)
	}
	if docErr != nil {
		logger.Warn("context build: document search failed", "project_id", projectID, "error", docErr)
	}
	if len(msgHits) == 0 && len(docHits) == 0 {
		return "", nil
	}

	var sb strings.Builder
	if len(msgHits) > 0 {
		sb.WriteString("## Relevant Past Conversations\n")
		for _, hit := range msgHits {
			fmt.Fprintf(&sb, "- [%.0f%% match] %s: %s\n", hit.Similarity*100, hit.Role, hit.Content)
		}
	}
	if len(docHits) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("## Relevant Project Documents\n")
		for _, hit := range docHits {
			fmt.Fprintf(&sb, "### %s (chunk %d, %.0f%% match)\n%s\n", hit.DocumentName, hit.ChunkIndex, hit.Similarity*100, hit.Text)
		}
	}
	return sb.String(), nil
}

func (ms *MemoryStore) effective(opts SearchOptions) (int, float64) {
	limit := opts.Limit
	if limit <= 0 {
		limit = ms.defaultLimit
	}
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = ms.defaultThreshold
	}
	return limit, threshold
}

func (ms *MemoryStore) recordFallback(err error) {
	if ms.metrics == nil {
		return
	}
	reason := "embed_failed"
	if ms.embedder == nil {
		reason = "embedder_disabled"
	} else if ai.IsRateLimited(err) {
		reason = "rate_limited"
	}
	ms.metrics.RecordSearchFallback(reason)
}

func (ms *MemoryStore) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	if ms.embedder == nil {
		return nil, ai.ErrProviderUnavailable
	}
	return ms.embedder.EmbedText(ctx, query)
}

func (ms *MemoryStore) lexicalDocumentSearch(ctx context.Context, projectID, query string, limit int) ([]models.ChunkHit, error) {
	chunks, err := ms.chunks.SearchText(ctx, projectID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fallback document search failed: %w", err)
	}
	hits := make([]models.ChunkHit, 0, len(chunks))
	for _, chunk := range chunks {
		hits = append(hits, models.ChunkHit{
			DocumentID:   chunk.DocumentID,
			DocumentName: chunk.DocumentName,
			ChunkIndex:   chunk.ChunkIndex,
			Text:         chunk.Text,
			Similarity:   FallbackSimilarity,
		})
	}
	return hits, nil
}

func (ms *MemoryStore) lexicalMessageSearch(ctx context.Context, projectID, query string, limit int) ([]models.MessageHit, error) {
	msgs, err := ms.messages.SearchText(ctx, projectID, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fallback message search failed: %w", err)
	}
	hits := make([]models.MessageHit, 0, len(msgs))
	for _, msg := range msgs {
		hits = append(hits, models.MessageHit{
			Role:       msg.Role,
			Content:    msg.Content,
			Similarity: FallbackSimilarity,
			Timestamp:  msg.Timestamp,
		})
	}
	return hits, nil
}

// CosineSimilarity compares two vectors. Mismatched lengths compare over
// the shorter prefix; zero vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
