package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-ai-backend/internal/telemetry"
	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

// fakeEmbedder returns fixed vectors per text so similarity ordering is
// controlled by the test.
type fakeEmbedder struct {
	vectors map[string][]float32
	fail    error
	calls   int
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	if vec, ok := f.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fakeEmbedder) Model() string { return "fake-embed-001" }

func newTestMemoryStore(embedder *fakeEmbedder) (*MemoryStore, *repository.InMemoryChunkRepository, *repository.InMemoryMessageRepository) {
	chunks := repository.NewInMemoryChunkRepository()
	messages := repository.NewInMemoryMessageRepository()
	opts := MemoryStoreOptions{
		Chunks:   chunks,
		Messages: messages,
		Chunker:  NewChunker(1000, 200),
	}
	if embedder != nil {
		opts.Embedder = embedder
	}
	return NewMemoryStore(opts), chunks, messages
}

func TestStoreDocumentIdempotent(t *testing.T) {
	ms, chunks, _ := newTestMemoryStore(&fakeEmbedder{})
	ctx := context.Background()

	req := DocumentIndexRequest{
		DocumentID:   "doc-1",
		DocumentName: "guide.md",
		Content:      "Deployment uses blue-green rollout. Rollback is automatic on health check failure.",
		ContentHash:  HashText("v1"),
	}

	stored, err := ms.StoreDocument(ctx, "proj", req)
	require.NoError(t, err)
	assert.Greater(t, stored, 0)

	again, err := ms.StoreDocument(ctx, "proj", req)
	require.NoError(t, err)
	assert.Equal(t, 0, again, "second store must be a no-op")

	count, err := chunks.CountByDocument(ctx, "proj", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, int64(stored), count)
}

func TestReindexGatedByContentHash(t *testing.T) {
	ms, chunks, _ := newTestMemoryStore(&fakeEmbedder{})
	ctx := context.Background()

	req := DocumentIndexRequest{
		DocumentID:   "doc-1",
		DocumentName: "guide.md",
		Content:      "Original content about deployment procedures.",
		ContentHash:  HashText("Original content about deployment procedures."),
	}
	_, err := ms.StoreDocument(ctx, "proj", req)
	require.NoError(t, err)

	// Unchanged hash: nothing happens
	n, err := ms.ReindexDocument(ctx, "proj", req)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Changed content: chunks rebuilt
	req.Content = "Revised content about deployment and rollback procedures."
	req.ContentHash = HashText(req.Content)
	n, err = ms.ReindexDocument(ctx, "proj", req)
	require.NoError(t, err)
	assert.Greater(t, n, 0)

	list, err := chunks.ListByDocument(ctx, "proj", "doc-1")
	require.NoError(t, err)
	for _, chunk := range list {
		assert.Equal(t, req.ContentHash, chunk.ContentHash)
		assert.Contains(t, chunk.Text, "Revised")
	}
}

func TestSearchDocumentsRanksBySimilarity(t *testing.T) {
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"query": {1, 0, 0},
	}}
	ms, chunks, _ := newTestMemoryStore(embedder)
	ctx := context.Background()

	require.NoError(t, chunks.InsertMany(ctx, []models.DocumentChunk{
		{ProjectID: "proj", DocumentID: "a", DocumentName: "a.md", ChunkIndex: 0, Text: "close match", Embedding: []float32{0.9, 0.1, 0}, EmbeddingModel: "fake-embed-001"},
		{ProjectID: "proj", DocumentID: "b", DocumentName: "b.md", ChunkIndex: 0, Text: "weak match", Embedding: []float32{0.2, 0.9, 0.4}, EmbeddingModel: "fake-embed-001"},
		{ProjectID: "proj", DocumentID: "c", DocumentName: "c.md", ChunkIndex: 0, Text: "orthogonal", Embedding: []float32{0, 1, 0}, EmbeddingModel: "fake-embed-001"},
	}))

	hits, err := ms.SearchDocuments(ctx, "proj", "query", SearchOptions{Limit: 10, Threshold: 0.3})
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, "a", hits[0].DocumentID)
	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Similarity, hits[i-1].Similarity)
	}
	for _, hit := range hits {
		assert.NotEqual(t, "c", hit.DocumentID, "below-threshold chunk must be excluded")
	}
}

func TestSearchFallsBackToLexical(t *testing.T) {
	ms, chunks, _ := newTestMemoryStore(nil) // no embedder at all
	ctx := context.Background()

	require.NoError(t, chunks.InsertMany(ctx, []models.DocumentChunk{
		{ProjectID: "proj", DocumentID: "a", DocumentName: "a.md", ChunkIndex: 0, Text: "The rollout plan covers three regions."},
		{ProjectID: "proj", DocumentID: "b", DocumentName: "b.md", ChunkIndex: 0, Text: "Unrelated notes."},
	}))

	hits, err := ms.SearchDocuments(ctx, "proj", "ROLLOUT", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].DocumentID)
	assert.Equal(t, FallbackSimilarity, hits[0].Similarity)
}

func TestSearchFallbackWithMetricsHandle(t *testing.T) {
	metrics, err := telemetry.InitMetrics()
	require.NoError(t, err)

	chunks := repository.NewInMemoryChunkRepository()
	ms := NewMemoryStore(MemoryStoreOptions{
		Chunks:   chunks,
		Messages: repository.NewInMemoryMessageRepository(),
		Metrics:  metrics,
	})
	ctx := context.Background()

	require.NoError(t, chunks.InsertMany(ctx, []models.DocumentChunk{
		{ProjectID: "proj", DocumentID: "a", DocumentName: "a.md", ChunkIndex: 0, Text: "Disaster recovery drills run quarterly."},
	}))

	// No embedder configured: the fallback path records the counter and
	// still serves results.
	hits, err := ms.SearchDocuments(ctx, "proj", "disaster", SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)

	msgHits, err := ms.SearchMessages(ctx, "proj", "disaster", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, msgHits)
}

func TestStoreMessageSurvivesEmbedderFailure(t *testing.T) {
	embedder := &fakeEmbedder{fail: fmt.Errorf("provider down")}
	ms, _, messages := newTestMemoryStore(embedder)
	ctx := context.Background()

	msg, err := ms.StoreMessage(ctx, "proj", models.StoredMessage{Role: "user", Content: "hello there"})
	require.NoError(t, err)
	assert.Empty(t, msg.Embedding)

	stored, err := messages.ListByProject(ctx, "proj", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestBuildContextEmptyWhenNothingMatches(t *testing.T) {
	ms, _, _ := newTestMemoryStore(nil)

	out, err := ms.BuildContext(context.Background(), "proj", "anything")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestBuildContextLabelsSections(t *testing.T) {
	ms, chunks, messages := newTestMemoryStore(nil)
	ctx := context.Background()

	require.NoError(t, chunks.InsertMany(ctx, []models.DocumentChunk{
		{ProjectID: "proj", DocumentID: "a", DocumentName: "runbook.md", ChunkIndex: 2, Text: "Restart procedure for the ingest service."},
	}))
	require.NoError(t, messages.Insert(ctx, &models.StoredMessage{
		ProjectID: "proj", Role: "user", Content: "how do I restart ingest?",
	}))

	out, err := ms.BuildContext(ctx, "proj", "restart")
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "## Relevant Past Conversations"))
	assert.True(t, strings.Contains(out, "## Relevant Project Documents"))
	assert.Contains(t, out, "runbook.md")
	assert.Contains(t, out, "50% match")
}
