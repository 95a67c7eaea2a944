package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

// ApplyOptions carry metadata for an apply run.
type ApplyOptions struct {
	AppliedBy    string
	ChangeNotes  string
	MajorVersion bool
}

// ChangeApplicator applies approved changes to documents. Changes are
// grouped per document and applied back to front so earlier replacements
// never shift the offsets of later ones; each change is re-located against
// the live content at apply time, so a document edited since the proposal
// fails that change cleanly instead of corrupting text.
type ChangeApplicator struct {
	docs   repository.DocumentRepository
	memory *MemoryStore
}

func NewChangeApplicator(docs repository.DocumentRepository, memory *MemoryStore) *ChangeApplicator {
	return &ChangeApplicator{docs: docs, memory: memory}
}

// Apply executes every approved change in the set. Non-approved changes
// are reported as failures without touching anything. One stale change
// does not block its siblings.
func (ca *ChangeApplicator) Apply(ctx context.Context, projectID string, changes []models.ProposedChange, opts ApplyOptions) ([]models.ApplyResult, error) {
	results := make([]models.ApplyResult, 0, len(changes))

	byDoc := make(map[string][]models.ProposedChange)
	for _, change := range changes {
		if change.Status != models.ChangeStatusApproved {
			results = append(results, models.ApplyResult{
				DocumentID: change.DocumentID,
				ChangeID:   change.ID,
				Success:    false,
				Error:      fmt.Sprintf("change is %s, only approved changes can be applied", change.Status),
			})
			continue
		}
		byDoc[change.DocumentID] = append(byDoc[change.DocumentID], change)
	}

	for documentID, docChanges := range byDoc {
		docResults, err := ca.applyToDocument(ctx, projectID, documentID, docChanges, opts)
		if err != nil {
			for _, change := range docChanges {
				results = append(results, models.ApplyResult{
					DocumentID: documentID,
					ChangeID:   change.ID,
					Success:    false,
					Error:      err.Error(),
				})
			}
			continue
		}
		results = append(results, docResults...)
	}
	return results, nil
}

func (ca *ChangeApplicator) applyToDocument(ctx context.Context, projectID, documentID string, changes []models.ProposedChange, opts ApplyOptions) ([]models.ApplyResult, error) {
	doc, err := ca.docs.GetByDocumentID(ctx, projectID, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	// Back to front. Changes without a proposal-time offset go last; their
	// live search is unaffected by earlier edits deeper in the document.
	sort.SliceStable(changes, func(i, j int) bool {
		si, sj := changes[i].StartIndex, changes[j].StartIndex
		if si == nil {
			return false
		}
		if sj == nil {
			return true
		}
		return *si > *sj
	})

	content := doc.Content
	results := make([]models.ApplyResult, 0, len(changes))
	applied := 0

	newVersion := bumpVersion(doc.Version, opts.MajorVersion)
	for _, change := range changes {
		idx := strings.Index(content, change.OriginalText)
		if idx < 0 {
			results = append(results, models.ApplyResult{
				DocumentID: documentID,
				ChangeID:   change.ID,
				Success:    false,
				Error:      "original text not found: document changed since proposal",
			})
			continue
		}
		content = content[:idx] + change.ProposedText + content[idx+len(change.OriginalText):]
		applied++
		results = append(results, models.ApplyResult{
			DocumentID: documentID,
			ChangeID:   change.ID,
			Success:    true,
			NewVersion: newVersion,
		})
	}

	if applied == 0 {
		return results, nil
	}

	doc.History = append(doc.History, models.VersionHistoryEntry{
		Version:     doc.Version,
		Content:     doc.Content,
		FileURL:     doc.FileURL,
		ContentHash: doc.ContentHash,
		CreatedDate: time.Now(),
		CreatedBy:   opts.AppliedBy,
		ChangeNotes: opts.ChangeNotes,
	})
	doc.Content = content
	doc.ContentHash = HashText(content)
	doc.Version = newVersion

	if err := ca.docs.Update(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to save revised document: %w", err)
	}

	// Reindex is part of applying, not an optimization. Skipping it would
	// leave retrieval serving the pre-revision text. The document itself is
	// already saved by this point, so a reindex failure must not flip the
	// persisted changes back to failed; it is surfaced as a warning instead.
	if _, err := ca.memory.ReindexDocument(ctx, projectID, DocumentIndexRequest{
		DocumentID:   doc.DocumentID,
		DocumentName: doc.Name,
		Content:      doc.Content,
		ContentHash:  doc.ContentHash,
	}); err != nil {
		logger.Error("document saved but reindex failed, retrieval may serve stale text",
			"project_id", projectID, "document_id", documentID, "error", err)
		warning := fmt.Sprintf("applied, but reindex failed: %v", err)
		for i := range results {
			if results[i].Success {
				results[i].Warning = warning
			}
		}
	}

	logger.Info("changes applied", "project_id", projectID, "document_id", documentID,
		"applied", applied, "failed", len(changes)-applied, "version", doc.Version)
	return results, nil
}

// bumpVersion increments a major.minor version string. Unparseable
// versions restart at 1.1.
func bumpVersion(version string, major bool) string {
	parts := strings.SplitN(version, ".", 2)
	if len(parts) != 2 {
		return "1.1"
	}
	maj, err1 := strconv.Atoi(parts[0])
	min, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return "1.1"
	}
	if major {
		return fmt.Sprintf("%d.0", maj+1)
	}
	return fmt.Sprintf("%d.%d", maj, min+1)
}
