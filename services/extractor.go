package services

import (
	"context"
	"fmt"
	"strings"

	"workspace-ai-backend/internal/ai"
	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/models"
)

const extractorSystemPrompt = `You are a precise content analyst. Extract ONLY information explicitly stated in the provided text.

Rules:
- Never infer, extrapolate, or generalize beyond what is written.
- Every extracted fact MUST include a verbatim quote from the source text as evidence.
- Identify the single primary subject: its domain, the specific area within that domain, and the stated scope.
- List topics the text explicitly declares out of scope, and any stated boundaries or limitations.
- Respond with JSON only, matching exactly this shape:
{
  "primarySubject": {"domain": "...", "specificArea": "...", "scope": "..."},
  "explicitFacts": [{"statement": "...", "confidence": 0.0, "sourceLocation": "...", "verbatimQuote": "..."}],
  "outOfScope": ["..."],
  "statedBoundaries": ["..."]
}`

// FactExtractor turns raw text into a structured ContentAnalysis. Facts
// without verbatim supporting quotes are discarded: unevidenced output
// must never reach the matching stage.
type FactExtractor struct {
	generator     ai.TextGenerator
	maxInputChars int
}

func NewFactExtractor(generator ai.TextGenerator, maxInputChars int) *FactExtractor {
	if maxInputChars <= 0 {
		maxInputChars = 30000
	}
	return &FactExtractor{generator: generator, maxInputChars: maxInputChars}
}

// Extract analyzes text and returns the evidence-gated analysis.
// sourceName, when non-empty, names the file the text came from so the
// model can anchor sourceLocation references.
func (fe *FactExtractor) Extract(ctx context.Context, text, sourceName string) (*models.ContentAnalysis, error) {
	if fe.generator == nil {
		return nil, ai.ErrProviderUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("nothing to analyze: empty text")
	}

	input := ai.TruncateInput(text, fe.maxInputChars)
	var sb strings.Builder
	if sourceName != "" {
		fmt.Fprintf(&sb, "Source file: %s\n\n", sourceName)
	}
	fmt.Fprintf(&sb, "Analyze the following content:\n\n%s", input)
	prompt := sb.String()

	var analysis models.ContentAnalysis
	if err := fe.generator.GenerateJSON(ctx, prompt, extractorSystemPrompt, &analysis); err != nil {
		return nil, fmt.Errorf("content analysis failed: %w", err)
	}

	analysis.ExplicitFacts = gateFacts(analysis.ExplicitFacts)
	if analysis.OutOfScope == nil {
		analysis.OutOfScope = []string{}
	}
	if analysis.StatedBoundaries == nil {
		analysis.StatedBoundaries = []string{}
	}
	return &analysis, nil
}

// gateFacts drops facts that arrive without verbatim evidence or an empty
// statement, and clamps confidence into [0, 1].
func gateFacts(facts []models.ExplicitFact) []models.ExplicitFact {
	kept := make([]models.ExplicitFact, 0, len(facts))
	for _, fact := range facts {
		if strings.TrimSpace(fact.Statement) == "" {
			continue
		}
		if strings.TrimSpace(fact.VerbatimQuote) == "" {
			logger.Debug("discarding fact without verbatim evidence", "statement", fact.Statement)
			continue
		}
		if fact.Confidence < 0 {
			fact.Confidence = 0
		}
		if fact.Confidence > 1 {
			fact.Confidence = 1
		}
		kept = append(kept, fact)
	}
	return kept
}
