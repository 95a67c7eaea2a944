package services

import (
	"strings"

	"workspace-ai-backend/models"
)

// Confidence weights and thresholds. Defaults match production tuning;
// all are overridable through configuration.
type ConfidenceConfig struct {
	SubjectWeight    float64
	EvidenceWeight   float64
	ScopeWeight      float64
	MinimalityWeight float64

	// Proposals below Floor are discarded. Proposals at or above
	// AutoThreshold apply without user confirmation.
	Floor         float64
	AutoThreshold float64
}

func DefaultConfidenceConfig() ConfidenceConfig {
	return ConfidenceConfig{
		SubjectWeight:    0.3,
		EvidenceWeight:   0.3,
		ScopeWeight:      0.1,
		MinimalityWeight: 0.3,
		Floor:            0.3,
		AutoThreshold:    0.85,
	}
}

const (
	// Evidence directness scores. A verbatim quote is direct evidence;
	// its absence means the change rests on paraphrase only.
	evidenceDirect   = 0.9
	evidenceIndirect = 0.3

	// Matching is already scope-bounded, so a proposal that reaches
	// scoring sits inside the declared scope.
	scopeContained = 1.0
)

// ScoreChange computes the weighted confidence breakdown for a proposed
// change. subjectMatch is the model-reported topical alignment of the
// edited passage with the new material.
func (cc ConfidenceConfig) ScoreChange(change *models.ProposedChange, subjectMatch float64) models.ConfidenceBreakdown {
	evidence := evidenceIndirect
	if strings.TrimSpace(change.Evidence.SourceQuote) != "" {
		evidence = evidenceDirect
	}

	minimality := ChangeMinimality(change.OriginalText, change.ProposedText)

	breakdown := models.ConfidenceBreakdown{
		SubjectMatch:     clamp01(subjectMatch),
		FactualAlignment: evidence,
		ScopeContainment: scopeContained,
		ChangeMinimality: minimality,
	}
	breakdown.Overall = cc.SubjectWeight*breakdown.SubjectMatch +
		cc.EvidenceWeight*breakdown.FactualAlignment +
		cc.ScopeWeight*breakdown.ScopeContainment +
		cc.MinimalityWeight*breakdown.ChangeMinimality
	return breakdown
}

// ChangeMinimality scores how surgical an edit is. Replacements close in
// length that reuse most of the original wording score high; rewrites
// score low. Length ratio contributes 30%, word overlap 70%.
func ChangeMinimality(original, proposed string) float64 {
	if original == "" && proposed == "" {
		return 1.0
	}
	if original == "" || proposed == "" {
		return 0.0
	}

	lenOrig := float64(len(original))
	lenProp := float64(len(proposed))
	lengthRatio := lenOrig / lenProp
	if lenProp < lenOrig {
		lengthRatio = lenProp / lenOrig
	}

	return clamp01(0.3*lengthRatio + 0.7*wordOverlap(original, proposed))
}

// wordOverlap is the Jaccard similarity of the two texts' word sets,
// case-insensitive.
func wordOverlap(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for word := range setA {
		if setB[word] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		set[word] = true
	}
	return set
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
