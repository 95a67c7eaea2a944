package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"workspace-ai-backend/internal/ai"
	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/internal/telemetry"
	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

const proposerSystemPrompt = `You are a careful technical editor. Given new source material and excerpts from an existing document, propose the minimal edits that bring the document in line with the new material.

Rules:
- Only propose changes supported by explicit statements in the new material. Cite the supporting statement verbatim for every change.
- originalText MUST be copied from the document excerpts with exact copy-paste precision, character for character, including whitespace and punctuation. Never paraphrase it.
- Keep each change as small as possible. Prefer replacing a sentence over a paragraph.
- Do not propose changes outside the subject area of the new material.
- subjectMatch scores, from 0.0 to 1.0, how closely the edited passage's topic matches the new material's subject.
- Respond with JSON only:
{
  "changes": [
    {
      "sectionName": "...",
      "originalText": "...",
      "proposedText": "...",
      "sourceQuote": "...",
      "sourceLocation": "...",
      "scopeJustification": "...",
      "subjectMatch": 0.0
    }
  ]
}`

type rawChange struct {
	SectionName        string  `json:"sectionName"`
	OriginalText       string  `json:"originalText"`
	ProposedText       string  `json:"proposedText"`
	SourceQuote        string  `json:"sourceQuote"`
	SourceLocation     string  `json:"sourceLocation"`
	ScopeJustification string  `json:"scopeJustification"`
	SubjectMatch       float64 `json:"subjectMatch"`
}

type rawProposal struct {
	Changes []rawChange `json:"changes"`
}

// ChangeProposer generates evidence-backed change proposals for matched
// documents and filters them by confidence.
type ChangeProposer struct {
	generator  ai.TextGenerator
	docs       repository.DocumentRepository
	confidence ConfidenceConfig
	metrics    *telemetry.Metrics // optional
}

func NewChangeProposer(generator ai.TextGenerator, docs repository.DocumentRepository, confidence ConfidenceConfig, metrics *telemetry.Metrics) *ChangeProposer {
	return &ChangeProposer{
		generator:  generator,
		docs:       docs,
		confidence: confidence,
		metrics:    metrics,
	}
}

// Propose generates changes for every matched document. Proposals scoring
// below the confidence floor are dropped; the rest come back pending, with
// RequiresUserConfirmation cleared only above the auto-apply threshold.
func (cp *ChangeProposer) Propose(ctx context.Context, projectID string, analysis *models.ContentAnalysis, matches []models.DocumentMatch) ([]models.AffectedDocument, error) {
	if cp.generator == nil {
		return nil, ai.ErrProviderUnavailable
	}

	affected := make([]models.AffectedDocument, 0, len(matches))
	for _, match := range matches {
		changes, err := cp.proposeForDocument(ctx, projectID, analysis, match)
		if err != nil {
			logger.Warn("change proposal failed for document", "project_id", projectID, "document_id", match.DocumentID, "error", err)
			continue
		}
		if len(changes) == 0 {
			continue
		}
		affected = append(affected, models.AffectedDocument{
			DocumentID:   match.DocumentID,
			DocumentName: match.DocumentName,
			Changes:      changes,
		})
	}
	return affected, nil
}

func (cp *ChangeProposer) proposeForDocument(ctx context.Context, projectID string, analysis *models.ContentAnalysis, match models.DocumentMatch) ([]models.ProposedChange, error) {
	var raw rawProposal
	prompt := cp.buildPrompt(analysis, match)
	if err := cp.generator.GenerateJSON(ctx, prompt, proposerSystemPrompt, &raw); err != nil {
		return nil, err
	}
	if len(raw.Changes) == 0 {
		return nil, nil
	}

	// Offsets are computed against the current stored content. They are a
	// hint for reviewers; application re-locates the text live.
	var content string
	if doc, err := cp.docs.GetByDocumentID(ctx, projectID, match.DocumentID); err == nil {
		content = doc.Content
	} else {
		logger.Warn("proposal offsets unavailable", "document_id", match.DocumentID, "error", err)
	}

	changes := make([]models.ProposedChange, 0, len(raw.Changes))
	for _, rc := range raw.Changes {
		if strings.TrimSpace(rc.OriginalText) == "" || rc.OriginalText == rc.ProposedText {
			continue
		}

		change := models.ProposedChange{
			ID:                 uuid.NewString(),
			DocumentID:         match.DocumentID,
			DocumentName:       match.DocumentName,
			SectionName:        rc.SectionName,
			OriginalText:       rc.OriginalText,
			ProposedText:       rc.ProposedText,
			Status:             models.ChangeStatusPending,
			ScopeJustification: rc.ScopeJustification,
			Evidence: models.ChangeEvidence{
				SourceQuote:    rc.SourceQuote,
				SourceLocation: rc.SourceLocation,
			},
		}

		if content != "" {
			if idx := strings.Index(content, rc.OriginalText); idx >= 0 {
				start, end := idx, idx+len(rc.OriginalText)
				change.StartIndex = &start
				change.EndIndex = &end
			}
		}

		// Subject match comes from the model itself; 0.5 when unreported.
		subjectMatch := rc.SubjectMatch
		if subjectMatch <= 0 {
			subjectMatch = 0.5
		}

		breakdown := cp.confidence.ScoreChange(&change, subjectMatch)
		change.Evidence.Confidence = breakdown

		switch {
		case breakdown.Overall < cp.confidence.Floor:
			cp.recordBand("discarded")
			logger.Debug("proposal below confidence floor",
				"document_id", match.DocumentID, "section", rc.SectionName, "confidence", breakdown.Overall)
			continue
		case breakdown.Overall >= cp.confidence.AutoThreshold:
			cp.recordBand("auto")
			change.RequiresUserConfirmation = false
		default:
			cp.recordBand("confirm")
			change.RequiresUserConfirmation = true
		}

		changes = append(changes, change)
	}
	return changes, nil
}

func (cp *ChangeProposer) buildPrompt(analysis *models.ContentAnalysis, match models.DocumentMatch) string {
	var sb strings.Builder

	sb.WriteString("New material analysis:\n")
	fmt.Fprintf(&sb, "Subject: %s / %s\nScope: %s\n\n",
		analysis.PrimarySubject.Domain, analysis.PrimarySubject.SpecificArea, analysis.PrimarySubject.Scope)

	sb.WriteString("Explicit facts from the new material:\n")
	for _, fact := range analysis.ExplicitFacts {
		fmt.Fprintf(&sb, "- %s (evidence: %q)\n", fact.Statement, fact.VerbatimQuote)
	}

	if len(analysis.OutOfScope) > 0 {
		sb.WriteString("\nExplicitly out of scope:\n")
		for _, item := range analysis.OutOfScope {
			fmt.Fprintf(&sb, "- %s\n", item)
		}
	}

	fmt.Fprintf(&sb, "\nExcerpts from existing document %q:\n", match.DocumentName)
	for _, chunk := range match.Chunks {
		fmt.Fprintf(&sb, "\n[excerpt %d]\n%s\n", chunk.ChunkIndex, chunk.ChunkText)
	}

	sb.WriteString("\nPropose the minimal edits to the excerpts above.")
	return sb.String()
}

func (cp *ChangeProposer) recordBand(band string) {
	if cp.metrics != nil {
		cp.metrics.RecordProposal(band)
	}
}
