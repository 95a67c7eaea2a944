package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

func newTestIngestor() (*Ingestor, *repository.InMemoryDocumentRepository, *repository.InMemoryChunkRepository) {
	docs := repository.NewInMemoryDocumentRepository()
	ms, chunks, _ := newTestMemoryStore(&fakeEmbedder{})
	ing := NewIngestor(IngestorOptions{
		Documents:    docs,
		Memory:       ms,
		Workers:      3,
		FileTimeout:  30 * time.Second,
		MaxFileSize:  1 << 20,
		AllowedTypes: []string{".txt", ".md"},
	})
	return ing, docs, chunks
}

func TestIngestBatchStoresFiles(t *testing.T) {
	ing, docs, _ := newTestIngestor()
	ctx := context.Background()

	report, err := ing.IngestBatch(ctx, "proj", "user-1", []models.IngestFile{
		{Name: "alpha.txt", Content: []byte("Alpha document about deployments.")},
		{Name: "beta.md", Content: []byte("Beta document about monitoring.")},
	}, nil)
	require.NoError(t, err)

	assert.Len(t, report.Stored, 2)
	assert.Empty(t, report.Skipped)
	assert.Empty(t, report.Failed)

	list, err := docs.ListByProject(ctx, "proj")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, doc := range list {
		assert.Equal(t, "1.0", doc.Version)
		assert.Equal(t, "user-1", doc.CreatedBy)
		assert.NotEmpty(t, doc.ContentHash)
	}
}

func TestIngestBatchDedupWithinBatch(t *testing.T) {
	ing, docs, _ := newTestIngestor()
	ctx := context.Background()

	same := []byte("Identical bytes under two names.")
	report, err := ing.IngestBatch(ctx, "proj", "", []models.IngestFile{
		{Name: "one.txt", Content: same},
		{Name: "two.txt", Content: same},
	}, nil)
	require.NoError(t, err)

	assert.Len(t, report.Stored, 1)
	assert.Len(t, report.Skipped, 1)

	list, err := docs.ListByProject(ctx, "proj")
	require.NoError(t, err)
	assert.Len(t, list, 1, "identical content must be stored once")
}

func TestIngestBatchDedupAcrossBatches(t *testing.T) {
	ing, _, _ := newTestIngestor()
	ctx := context.Background()

	content := []byte("Same content uploaded twice.")
	first, err := ing.IngestBatch(ctx, "proj", "", []models.IngestFile{
		{Name: "original.txt", Content: content},
	}, nil)
	require.NoError(t, err)
	require.Len(t, first.Stored, 1)

	second, err := ing.IngestBatch(ctx, "proj", "", []models.IngestFile{
		{Name: "renamed.txt", Content: content},
	}, nil)
	require.NoError(t, err)

	require.Len(t, second.Skipped, 1)
	assert.Equal(t, first.Stored[0].DocumentID, second.Skipped[0].DocumentID,
		"skip must reference the already-stored document")
}

func TestIngestBatchIsolatesFailures(t *testing.T) {
	ing, _, _ := newTestIngestor()
	ctx := context.Background()

	report, err := ing.IngestBatch(ctx, "proj", "", []models.IngestFile{
		{Name: "good.txt", Content: []byte("Valid content.")},
		{Name: "bad.exe", Content: []byte("binary")},
		{Name: "empty.txt", Content: nil},
	}, nil)
	require.NoError(t, err)

	assert.Len(t, report.Stored, 1)
	assert.Len(t, report.Failed, 2)
	for _, failed := range report.Failed {
		assert.NotEmpty(t, failed.Error)
	}
}

func TestIngestBatchReportsProgress(t *testing.T) {
	ing, _, _ := newTestIngestor()
	ctx := context.Background()

	var seen []int
	var total int
	_, err := ing.IngestBatch(ctx, "proj", "", []models.IngestFile{
		{Name: "a.txt", Content: []byte("one")},
		{Name: "b.txt", Content: []byte("two")},
		{Name: "c.txt", Content: []byte("three")},
	}, func(processed, t int) {
		seen = append(seen, processed)
		total = t
	})
	require.NoError(t, err)

	assert.Equal(t, 3, total)
	assert.Len(t, seen, 3)
	assert.Equal(t, 3, seen[len(seen)-1])
}
