package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-ai-backend/internal/ai"
)

// fakeGenerator replays a canned JSON response.
type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) GenerateText(_ context.Context, prompt, _ string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt, _ string, out any) error {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.response), out)
}

func TestExtractDiscardsFactsWithoutEvidence(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"primarySubject": {"domain": "infrastructure", "specificArea": "deployment", "scope": "staging environment"},
		"explicitFacts": [
			{"statement": "Deploys run nightly", "confidence": 0.9, "sourceLocation": "paragraph 1", "verbatimQuote": "deployments run every night at 2am"},
			{"statement": "Unsupported inference", "confidence": 0.8, "sourceLocation": "paragraph 2", "verbatimQuote": ""},
			{"statement": "", "confidence": 0.5, "sourceLocation": "", "verbatimQuote": "quote without statement"}
		],
		"outOfScope": ["production environment"],
		"statedBoundaries": []
	}`}

	fe := NewFactExtractor(gen, 30000)
	analysis, err := fe.Extract(context.Background(), "deployments run every night at 2am in staging", "deploy-notes.md")
	require.NoError(t, err)

	require.Len(t, analysis.ExplicitFacts, 1)
	assert.Equal(t, "Deploys run nightly", analysis.ExplicitFacts[0].Statement)
	assert.Equal(t, []string{"production environment"}, analysis.OutOfScope)
	assert.NotNil(t, analysis.StatedBoundaries)
}

func TestExtractClampsConfidence(t *testing.T) {
	gen := &fakeGenerator{response: `{
		"primarySubject": {"domain": "d", "specificArea": "a", "scope": "s"},
		"explicitFacts": [
			{"statement": "Over-confident", "confidence": 1.7, "verbatimQuote": "quoted"},
			{"statement": "Under-confident", "confidence": -0.2, "verbatimQuote": "quoted too"}
		]
	}`}

	fe := NewFactExtractor(gen, 30000)
	analysis, err := fe.Extract(context.Background(), "some content", "")
	require.NoError(t, err)

	require.Len(t, analysis.ExplicitFacts, 2)
	assert.Equal(t, 1.0, analysis.ExplicitFacts[0].Confidence)
	assert.Equal(t, 0.0, analysis.ExplicitFacts[1].Confidence)
}

func TestExtractEmptyInput(t *testing.T) {
	fe := NewFactExtractor(&fakeGenerator{}, 30000)

	_, err := fe.Extract(context.Background(), "   ", "")
	assert.Error(t, err)
}

func TestExtractWithoutProvider(t *testing.T) {
	fe := NewFactExtractor(nil, 30000)

	_, err := fe.Extract(context.Background(), "content", "")
	assert.ErrorIs(t, err, ai.ErrProviderUnavailable)
}

func TestExtractTruncatesOversizedInput(t *testing.T) {
	gen := &fakeGenerator{response: `{"primarySubject": {"domain": "d", "specificArea": "a", "scope": "s"}, "explicitFacts": []}`}
	fe := NewFactExtractor(gen, 100)

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	_, err := fe.Extract(context.Background(), string(long), "")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Less(t, len(gen.prompts[0]), 200, "input must be truncated before prompting")
}

func TestExtractIncludesSourceName(t *testing.T) {
	gen := &fakeGenerator{response: `{"primarySubject": {"domain": "d", "specificArea": "a", "scope": "s"}, "explicitFacts": []}`}
	fe := NewFactExtractor(gen, 30000)

	_, err := fe.Extract(context.Background(), "the cache ttl is one hour", "cache-policy.md")
	require.NoError(t, err)

	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "cache-policy.md")
}
