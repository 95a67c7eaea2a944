package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-ai-backend/models"
)

func TestBuildMatchQueriesBoundedAndDeduped(t *testing.T) {
	analysis := &models.ContentAnalysis{
		PrimarySubject: models.PrimarySubject{
			Domain:       "infrastructure",
			SpecificArea: "load balancing",
			Scope:        "edge tier",
		},
	}
	for i := 0; i < 8; i++ {
		analysis.ExplicitFacts = append(analysis.ExplicitFacts, models.ExplicitFact{
			Statement:     fmt.Sprintf("fact number %d", i),
			VerbatimQuote: "quoted",
		})
	}

	queries := BuildMatchQueries(analysis)

	// specificArea + scope + at most 5 facts
	assert.Len(t, queries, 7)
	assert.Equal(t, "load balancing", queries[0])
	assert.Equal(t, "edge tier", queries[1])
	assert.NotContains(t, queries, "fact number 5")
}

func TestBuildMatchQueriesSkipsBlanksAndDuplicates(t *testing.T) {
	analysis := &models.ContentAnalysis{
		PrimarySubject: models.PrimarySubject{SpecificArea: "caching", Scope: "caching"},
		ExplicitFacts: []models.ExplicitFact{
			{Statement: "caching"},
			{Statement: "   "},
			{Statement: "ttl is one hour"},
		},
	}

	queries := BuildMatchQueries(analysis)
	assert.Equal(t, []string{"caching", "ttl is one hour"}, queries)
}

func TestMatchMergesChunksAcrossQueries(t *testing.T) {
	ms, chunks, _ := newTestMemoryStore(nil) // lexical fallback path
	ctx := context.Background()

	require.NoError(t, chunks.InsertMany(ctx, []models.DocumentChunk{
		{ProjectID: "proj", DocumentID: "doc-a", DocumentName: "a.md", ChunkIndex: 0,
			Text: "The cache layer uses redis with a one hour ttl."},
		{ProjectID: "proj", DocumentID: "doc-b", DocumentName: "b.md", ChunkIndex: 3,
			Text: "Monitoring covers the cache hit rate."},
	}))

	analysis := &models.ContentAnalysis{
		PrimarySubject: models.PrimarySubject{SpecificArea: "cache", Scope: "redis"},
	}

	matcher := NewDocumentMatcher(ms, 10)
	matches, err := matcher.Match(ctx, "proj", analysis)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	var docA *models.DocumentMatch
	for i := range matches {
		if matches[i].DocumentID == "doc-a" {
			docA = &matches[i]
		}
	}
	require.NotNil(t, docA)

	// doc-a's chunk matched both "cache" and "redis": one chunk, both queries
	require.Len(t, docA.Chunks, 1)
	assert.ElementsMatch(t, []string{"cache", "redis"}, docA.Chunks[0].MatchedQueries)
	assert.Equal(t, FallbackSimilarity, docA.MaxSimilarity)
}

func TestMatchEmptyAnalysis(t *testing.T) {
	ms, _, _ := newTestMemoryStore(nil)
	matcher := NewDocumentMatcher(ms, 10)

	matches, err := matcher.Match(context.Background(), "proj", &models.ContentAnalysis{})
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestMatchCapsDocumentCount(t *testing.T) {
	ms, chunks, _ := newTestMemoryStore(nil)
	ctx := context.Background()

	docs := make([]models.DocumentChunk, 0, 6)
	for i := 0; i < 6; i++ {
		docs = append(docs, models.DocumentChunk{
			ProjectID:  "proj",
			DocumentID: fmt.Sprintf("doc-%d", i),
			ChunkIndex: 0,
			Text:       "every document mentions kubernetes here",
		})
	}
	require.NoError(t, chunks.InsertMany(ctx, docs))

	analysis := &models.ContentAnalysis{
		PrimarySubject: models.PrimarySubject{SpecificArea: "kubernetes"},
	}

	matcher := NewDocumentMatcher(ms, 3)
	matches, err := matcher.Match(ctx, "proj", analysis)
	require.NoError(t, err)
	assert.Len(t, matches, 3)
}
