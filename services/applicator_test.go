package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

func intPtr(v int) *int { return &v }

func setupApplicator(t *testing.T, content string) (*ChangeApplicator, *repository.InMemoryDocumentRepository, *repository.InMemoryChunkRepository) {
	t.Helper()
	docs := repository.NewInMemoryDocumentRepository()
	ms, chunks, _ := newTestMemoryStore(&fakeEmbedder{})

	require.NoError(t, docs.Create(context.Background(), &models.Document{
		DocumentID:  "doc-1",
		ProjectID:   "proj",
		Name:        "guide.md",
		Content:     content,
		ContentHash: HashText(content),
		Version:     "1.0",
	}))

	return NewChangeApplicator(docs, ms), docs, chunks
}

func approvedChange(id, original, proposed string, start int) models.ProposedChange {
	return models.ProposedChange{
		ID:           id,
		DocumentID:   "doc-1",
		OriginalText: original,
		ProposedText: proposed,
		StartIndex:   intPtr(start),
		EndIndex:     intPtr(start + len(original)),
		Status:       models.ChangeStatusApproved,
	}
}

func TestApplyMultipleChangesNoOffsetDrift(t *testing.T) {
	content := "head AAAA middle BBBB tail CCCC end"
	app, docs, _ := setupApplicator(t, content)
	ctx := context.Background()

	changes := []models.ProposedChange{
		approvedChange("c1", "AAAA", "AAAA-v2-longer", strings.Index(content, "AAAA")),
		approvedChange("c2", "BBBB", "BB", strings.Index(content, "BBBB")),
		approvedChange("c3", "CCCC", "CCCC-extended", strings.Index(content, "CCCC")),
	}

	results, err := app.Apply(ctx, "proj", changes, ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, result := range results {
		assert.True(t, result.Success, "change %s failed: %s", result.ChangeID, result.Error)
	}

	doc, err := docs.GetByDocumentID(ctx, "proj", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "head AAAA-v2-longer middle BB tail CCCC-extended end", doc.Content)
	assert.Equal(t, "1.1", doc.Version)
}

func TestApplyStaleChangeFailsSiblingSucceeds(t *testing.T) {
	content := "alpha section. beta section. gamma section."
	app, docs, _ := setupApplicator(t, content)
	ctx := context.Background()

	changes := []models.ProposedChange{
		approvedChange("ok", "beta section.", "beta section revised.", strings.Index(content, "beta")),
		approvedChange("stale", "text that no longer exists", "replacement", 0),
	}

	results, err := app.Apply(ctx, "proj", changes, ApplyOptions{})
	require.NoError(t, err)

	byID := map[string]models.ApplyResult{}
	for _, result := range results {
		byID[result.ChangeID] = result
	}

	assert.True(t, byID["ok"].Success)
	assert.False(t, byID["stale"].Success)
	assert.Contains(t, byID["stale"].Error, "document changed since proposal")

	doc, err := docs.GetByDocumentID(ctx, "proj", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "beta section revised.")
}

func TestApplyRejectsNonApprovedChanges(t *testing.T) {
	content := "some content here"
	app, docs, _ := setupApplicator(t, content)
	ctx := context.Background()

	change := approvedChange("c1", "content", "material", 5)
	change.Status = models.ChangeStatusPending

	results, err := app.Apply(ctx, "proj", []models.ProposedChange{change}, ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	doc, err := docs.GetByDocumentID(ctx, "proj", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, content, doc.Content, "pending changes must not modify the document")
}

func TestApplyRecordsHistoryAndReindexes(t *testing.T) {
	content := "The service listens on port 8080 for requests."
	app, docs, chunks := setupApplicator(t, content)
	ctx := context.Background()

	change := approvedChange("c1", "port 8080", "port 9090", strings.Index(content, "port 8080"))
	results, err := app.Apply(ctx, "proj", []models.ProposedChange{change}, ApplyOptions{
		AppliedBy:   "reviewer",
		ChangeNotes: "port migration",
	})
	require.NoError(t, err)
	require.True(t, results[0].Success)
	assert.Equal(t, "1.1", results[0].NewVersion)

	doc, err := docs.GetByDocumentID(ctx, "proj", "doc-1")
	require.NoError(t, err)
	assert.Equal(t, HashText(doc.Content), doc.ContentHash)

	require.Len(t, doc.History, 1)
	assert.Equal(t, "1.0", doc.History[0].Version)
	assert.Equal(t, content, doc.History[0].Content)
	assert.Equal(t, "reviewer", doc.History[0].CreatedBy)

	// Retrieval must serve the revised text
	list, err := chunks.ListByDocument(ctx, "proj", "doc-1")
	require.NoError(t, err)
	require.NotEmpty(t, list)
	joined := ""
	for _, chunk := range list {
		joined += chunk.Text + " "
	}
	assert.Contains(t, joined, "9090")
	assert.NotContains(t, joined, "8080")
}

// failingChunkRepo rejects writes so reindexing cannot succeed.
type failingChunkRepo struct {
	*repository.InMemoryChunkRepository
}

func (r *failingChunkRepo) InsertMany(context.Context, []models.DocumentChunk) error {
	return errors.New("chunk store offline")
}

func TestApplyReindexFailureKeepsChangesApplied(t *testing.T) {
	content := "The retention policy keeps backups for 30 days."
	ctx := context.Background()

	docs := repository.NewInMemoryDocumentRepository()
	require.NoError(t, docs.Create(ctx, &models.Document{
		DocumentID:  "doc-1",
		ProjectID:   "proj",
		Name:        "policy.md",
		Content:     content,
		ContentHash: HashText(content),
		Version:     "1.0",
	}))

	ms := NewMemoryStore(MemoryStoreOptions{
		Chunks:   &failingChunkRepo{repository.NewInMemoryChunkRepository()},
		Messages: repository.NewInMemoryMessageRepository(),
	})
	app := NewChangeApplicator(docs, ms)

	change := approvedChange("c1", "30 days", "90 days", strings.Index(content, "30 days"))
	results, err := app.Apply(ctx, "proj", []models.ProposedChange{change}, ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].Success, "a persisted change must not be reported as failed")
	assert.Contains(t, results[0].Warning, "reindex failed")

	doc, err := docs.GetByDocumentID(ctx, "proj", "doc-1")
	require.NoError(t, err)
	assert.Contains(t, doc.Content, "90 days")
	assert.Equal(t, "1.1", doc.Version)
}

func TestApplyMajorVersionBump(t *testing.T) {
	content := "versioned body"
	app, _, _ := setupApplicator(t, content)

	results, err := app.Apply(context.Background(), "proj",
		[]models.ProposedChange{approvedChange("c1", "body", "corpus", 10)},
		ApplyOptions{MajorVersion: true})
	require.NoError(t, err)
	assert.Equal(t, "2.0", results[0].NewVersion)
}

func TestBumpVersion(t *testing.T) {
	assert.Equal(t, "1.1", bumpVersion("1.0", false))
	assert.Equal(t, "1.10", bumpVersion("1.9", false))
	assert.Equal(t, "3.0", bumpVersion("2.4", true))
	assert.Equal(t, "1.1", bumpVersion("garbage", false))
}
