package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/models"
)

// Control analysis step names, in pipeline order.
const (
	ControlStepExtracting = "extracting"
	ControlStepAnalyzing  = "analyzing"
	ControlStepMatching   = "matching"
	ControlStepGenerating = "generating"
	ControlStepComplete   = "complete"
	ControlStepFailed     = "failed"
)

const (
	controlProgressKeyPrefix = "control:progress:"
	controlResultKeyPrefix   = "control:result:"
	controlStateTTL          = 1 * time.Hour
)

// ProgressStore mirrors control-run progress and results into Redis so any
// API instance can answer polling requests. A nil client makes every
// operation a no-op, which keeps single-process setups working.
type ProgressStore struct {
	rdb *redis.Client
}

func NewProgressStore(rdb *redis.Client) *ProgressStore {
	return &ProgressStore{rdb: rdb}
}

func (ps *ProgressStore) SetProgress(ctx context.Context, jobID string, progress models.ControlProgress) {
	if ps == nil || ps.rdb == nil {
		return
	}
	payload, err := json.Marshal(progress)
	if err != nil {
		return
	}
	if err := ps.rdb.Set(ctx, controlProgressKeyPrefix+jobID, payload, controlStateTTL).Err(); err != nil {
		logger.Warn("failed to mirror control progress", "job_id", jobID, "error", err)
	}
}

func (ps *ProgressStore) GetProgress(ctx context.Context, jobID string) (*models.ControlProgress, error) {
	if ps == nil || ps.rdb == nil {
		return nil, fmt.Errorf("progress store not configured")
	}
	payload, err := ps.rdb.Get(ctx, controlProgressKeyPrefix+jobID).Bytes()
	if err != nil {
		return nil, err
	}
	var progress models.ControlProgress
	if err := json.Unmarshal(payload, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

func (ps *ProgressStore) SetResult(ctx context.Context, jobID string, result *models.ControlAnalysisResult) {
	if ps == nil || ps.rdb == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := ps.rdb.Set(ctx, controlResultKeyPrefix+jobID, payload, controlStateTTL).Err(); err != nil {
		logger.Warn("failed to mirror control result", "job_id", jobID, "error", err)
	}
}

func (ps *ProgressStore) GetResult(ctx context.Context, jobID string) (*models.ControlAnalysisResult, error) {
	if ps == nil || ps.rdb == nil {
		return nil, fmt.Errorf("progress store not configured")
	}
	payload, err := ps.rdb.Get(ctx, controlResultKeyPrefix+jobID).Bytes()
	if err != nil {
		return nil, err
	}
	var result models.ControlAnalysisResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ControlService runs the full control analysis pipeline: extract facts
// from new material, match affected documents, propose evidence-backed
// changes. Nothing is modified; applying changes is a separate, explicit
// step.
type ControlService struct {
	extractor *FactExtractor
	matcher   *DocumentMatcher
	proposer  *ChangeProposer
	progress  *ProgressStore
}

func NewControlService(extractor *FactExtractor, matcher *DocumentMatcher, proposer *ChangeProposer, progress *ProgressStore) *ControlService {
	return &ControlService{
		extractor: extractor,
		matcher:   matcher,
		proposer:  proposer,
		progress:  progress,
	}
}

// ControlProgressFunc receives progress updates during a run.
type ControlProgressFunc func(models.ControlProgress)

// Run executes the analysis pipeline for the given text. sourceName is
// the file the text came from, if any; it gives the extractor attribution
// context. jobID keys the Redis progress mirror; callers polling from
// another process read it through the ProgressStore.
func (cs *ControlService) Run(ctx context.Context, projectID, jobID, text, sourceName string, onProgress ControlProgressFunc) (*models.ControlAnalysisResult, error) {
	report := func(step string, percent int, message string) {
		progress := models.ControlProgress{Step: step, ProgressPercent: percent, Message: message}
		cs.progress.SetProgress(ctx, jobID, progress)
		if onProgress != nil {
			onProgress(progress)
		}
	}

	report(ControlStepExtracting, 10, "Extracting facts from new material")
	analysis, err := cs.extractor.Extract(ctx, text, sourceName)
	if err != nil {
		report(ControlStepFailed, 100, err.Error())
		return nil, fmt.Errorf("extraction failed: %w", err)
	}

	report(ControlStepAnalyzing, 25, fmt.Sprintf("Validated %d evidence-backed facts about %s",
		len(analysis.ExplicitFacts), analysis.PrimarySubject.SpecificArea))

	report(ControlStepMatching, 40, fmt.Sprintf("Searching documents affected by %q", analysis.PrimarySubject.SpecificArea))
	matches, err := cs.matcher.Match(ctx, projectID, analysis)
	if err != nil {
		report(ControlStepFailed, 100, err.Error())
		return nil, fmt.Errorf("document matching failed: %w", err)
	}

	report(ControlStepGenerating, 70, fmt.Sprintf("Generating change proposals for %d documents", len(matches)))
	affected, err := cs.proposer.Propose(ctx, projectID, analysis, matches)
	if err != nil {
		report(ControlStepFailed, 100, err.Error())
		return nil, fmt.Errorf("change proposal failed: %w", err)
	}

	result := &models.ControlAnalysisResult{
		ContentAnalysis:   analysis,
		AffectedDocuments: affected,
		Summary:           buildControlSummary(analysis, affected),
	}
	cs.progress.SetResult(ctx, jobID, result)
	report(ControlStepComplete, 100, result.Summary)

	logger.Info("control analysis complete", "project_id", projectID, "job_id", jobID,
		"facts", len(analysis.ExplicitFacts), "affected_documents", len(affected))
	return result, nil
}

func buildControlSummary(analysis *models.ContentAnalysis, affected []models.AffectedDocument) string {
	totalChanges := 0
	for _, doc := range affected {
		totalChanges += len(doc.Changes)
	}
	if totalChanges == 0 {
		return fmt.Sprintf("No changes proposed: %d facts about %s did not require document updates.",
			len(analysis.ExplicitFacts), analysis.PrimarySubject.SpecificArea)
	}
	return fmt.Sprintf("Proposed %d changes across %d documents based on %d facts about %s.",
		totalChanges, len(affected), len(analysis.ExplicitFacts), analysis.PrimarySubject.SpecificArea)
}
