package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"workspace-ai-backend/models"
)

func TestChangeMinimalitySmallEditScoresHigh(t *testing.T) {
	small := ChangeMinimality(
		"The timeout is 30 seconds by default.",
		"The timeout is 60 seconds by default.",
	)
	rewrite := ChangeMinimality(
		"The timeout is 30 seconds by default.",
		"Completely unrelated replacement paragraph about different topics entirely, rewritten from scratch with nothing in common.",
	)

	assert.Greater(t, small, 0.7)
	assert.Less(t, rewrite, 0.3)
	assert.Greater(t, small, rewrite)
}

func TestChangeMinimalityEdgeCases(t *testing.T) {
	assert.Equal(t, 1.0, ChangeMinimality("", ""))
	assert.Equal(t, 0.0, ChangeMinimality("something", ""))
	assert.Equal(t, 0.0, ChangeMinimality("", "something"))
	assert.Equal(t, 1.0, ChangeMinimality("same text", "same text"))
}

func TestScoreChangeEvidenceDirectness(t *testing.T) {
	cfg := DefaultConfidenceConfig()

	withQuote := &models.ProposedChange{
		OriginalText: "version 1.0 of the API",
		ProposedText: "version 2.0 of the API",
		Evidence:     models.ChangeEvidence{SourceQuote: "the API is now at version 2.0"},
	}
	withoutQuote := &models.ProposedChange{
		OriginalText: "version 1.0 of the API",
		ProposedText: "version 2.0 of the API",
	}

	scored := cfg.ScoreChange(withQuote, 0.8)
	unevidenced := cfg.ScoreChange(withoutQuote, 0.8)

	assert.Equal(t, 0.9, scored.FactualAlignment)
	assert.Equal(t, 0.3, unevidenced.FactualAlignment)
	assert.Greater(t, scored.Overall, unevidenced.Overall)
}

func TestScoreChangeMonotonicInSimilarity(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	change := &models.ProposedChange{
		OriginalText: "uses port 8080",
		ProposedText: "uses port 9090",
		Evidence:     models.ChangeEvidence{SourceQuote: "the service listens on port 9090"},
	}

	low := cfg.ScoreChange(change, 0.4)
	high := cfg.ScoreChange(change, 0.95)

	assert.Greater(t, high.Overall, low.Overall)
	assert.Equal(t, 1.0, low.ScopeContainment)
}

func TestConfidenceBands(t *testing.T) {
	cfg := DefaultConfidenceConfig()

	// A strong proposal: high similarity, direct evidence, tiny edit.
	strong := &models.ProposedChange{
		OriginalText: "The default limit is 10 results.",
		ProposedText: "The default limit is 20 results.",
		Evidence:     models.ChangeEvidence{SourceQuote: "the limit was raised to 20 results"},
	}
	breakdown := cfg.ScoreChange(strong, 0.95)
	assert.GreaterOrEqual(t, breakdown.Overall, cfg.AutoThreshold)

	// A weak proposal: no evidence, full rewrite, poor similarity.
	weak := &models.ProposedChange{
		OriginalText: "Original paragraph about deployment.",
		ProposedText: "Entirely new content covering unrelated monitoring topics instead of anything from before.",
	}
	breakdown = cfg.ScoreChange(weak, 0.0)
	assert.Less(t, breakdown.Overall, cfg.Floor)
}

func TestOverallIsWeightedSum(t *testing.T) {
	cfg := DefaultConfidenceConfig()
	change := &models.ProposedChange{
		OriginalText: "alpha beta gamma",
		ProposedText: "alpha beta delta",
		Evidence:     models.ChangeEvidence{SourceQuote: "delta replaces gamma"},
	}

	b := cfg.ScoreChange(change, 0.5)
	expected := cfg.SubjectWeight*b.SubjectMatch +
		cfg.EvidenceWeight*b.FactualAlignment +
		cfg.ScopeWeight*b.ScopeContainment +
		cfg.MinimalityWeight*b.ChangeMinimality
	assert.InDelta(t, expected, b.Overall, 1e-9)
}
