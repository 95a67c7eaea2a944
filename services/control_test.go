package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-ai-backend/models"
	"workspace-ai-backend/repository"
)

func newTestControlService(gen *fakeGenerator) *ControlService {
	ms, _, _ := newTestMemoryStore(nil)
	extractor := NewFactExtractor(gen, 30000)
	matcher := NewDocumentMatcher(ms, 10)
	proposer := NewChangeProposer(gen, repository.NewInMemoryDocumentRepository(), DefaultConfidenceConfig(), nil)
	return NewControlService(extractor, matcher, proposer, nil)
}

func TestControlRunEmitsAllStages(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"primarySubject": {"domain": "infrastructure", "specificArea": "deployment", "scope": "staging"},
		"explicitFacts": [
			{"statement": "Deploys run nightly", "confidence": 0.9, "verbatimQuote": "deployments run every night"}
		]
	}`}
	control := newTestControlService(gen)

	var steps []string
	var percents []int
	result, err := control.Run(context.Background(), "proj", "job-1", "deployments run every night", "notes.md",
		func(progress models.ControlProgress) {
			steps = append(steps, progress.Step)
			percents = append(percents, progress.ProgressPercent)
		})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, []string{
		ControlStepExtracting,
		ControlStepAnalyzing,
		ControlStepMatching,
		ControlStepGenerating,
		ControlStepComplete,
	}, steps)

	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1], "progress must not go backwards")
	}
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.NotEmpty(t, result.Summary)
}

func TestControlRunPassesSourceName(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"primarySubject": {"domain": "d", "specificArea": "a", "scope": "s"},
		"explicitFacts": []
	}`}
	control := newTestControlService(gen)

	_, err := control.Run(context.Background(), "proj", "job-2", "some content", "release-notes.md", nil)
	require.NoError(t, err)

	require.NotEmpty(t, gen.prompts)
	assert.Contains(t, gen.prompts[0], "release-notes.md")
}

func TestControlRunReportsExtractionFailure(t *testing.T) {
	control := newTestControlService(&fakeGenerator{response: "not json at all {"})

	var last models.ControlProgress
	_, err := control.Run(context.Background(), "proj", "job-3", "content", "",
		func(progress models.ControlProgress) { last = progress })
	require.Error(t, err)
	assert.Equal(t, ControlStepFailed, last.Step)
	assert.Equal(t, 100, last.ProgressPercent)
}
