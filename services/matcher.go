package services

import (
	"context"
	"sort"
	"strings"

	"workspace-ai-backend/internal/logger"
	"workspace-ai-backend/models"
)

const (
	maxFactQueries     = 5
	defaultMatchLimit  = 10
	matchSearchResults = 10
)

// DocumentMatcher finds existing documents touched by an analysis. It
// searches memory once per query and merges hits so each chunk appears at
// most once, carrying its best similarity and every query that found it.
type DocumentMatcher struct {
	memory  *MemoryStore
	topDocs int
}

func NewDocumentMatcher(memory *MemoryStore, topDocs int) *DocumentMatcher {
	if topDocs <= 0 {
		topDocs = defaultMatchLimit
	}
	return &DocumentMatcher{memory: memory, topDocs: topDocs}
}

// Match runs the scope-bounded search for an analysis and returns affected
// documents ranked by their best chunk similarity.
func (dm *DocumentMatcher) Match(ctx context.Context, projectID string, analysis *models.ContentAnalysis) ([]models.DocumentMatch, error) {
	queries := BuildMatchQueries(analysis)
	if len(queries) == 0 {
		return []models.DocumentMatch{}, nil
	}

	type chunkKey struct {
		documentID string
		chunkIndex int
	}
	merged := make(map[chunkKey]*models.MatchedChunk)
	docNames := make(map[string]string)

	for _, query := range queries {
		hits, err := dm.memory.SearchDocuments(ctx, projectID, query, SearchOptions{Limit: matchSearchResults})
		if err != nil {
			logger.Warn("match query failed", "project_id", projectID, "query", query, "error", err)
			continue
		}
		for _, hit := range hits {
			docNames[hit.DocumentID] = hit.DocumentName
			key := chunkKey{documentID: hit.DocumentID, chunkIndex: hit.ChunkIndex}
			if existing, ok := merged[key]; ok {
				if hit.Similarity > existing.Similarity {
					existing.Similarity = hit.Similarity
				}
				existing.MatchedQueries = appendUnique(existing.MatchedQueries, query)
				continue
			}
			merged[key] = &models.MatchedChunk{
				ChunkIndex:     hit.ChunkIndex,
				ChunkText:      hit.Text,
				Similarity:     hit.Similarity,
				MatchedQueries: []string{query},
			}
		}
	}

	byDoc := make(map[string][]models.MatchedChunk)
	for key, chunk := range merged {
		byDoc[key.documentID] = append(byDoc[key.documentID], *chunk)
	}

	matches := make([]models.DocumentMatch, 0, len(byDoc))
	for documentID, chunks := range byDoc {
		sort.Slice(chunks, func(i, j int) bool { return chunks[i].ChunkIndex < chunks[j].ChunkIndex })
		maxSim := 0.0
		for _, chunk := range chunks {
			if chunk.Similarity > maxSim {
				maxSim = chunk.Similarity
			}
		}
		matches = append(matches, models.DocumentMatch{
			DocumentID:    documentID,
			DocumentName:  docNames[documentID],
			Chunks:        chunks,
			MaxSimilarity: maxSim,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].MaxSimilarity > matches[j].MaxSimilarity })
	if len(matches) > dm.topDocs {
		matches = matches[:dm.topDocs]
	}
	return matches, nil
}

// BuildMatchQueries derives the search queries for an analysis: the
// specific area, the stated scope, and up to five fact statements. The
// fact cap keeps one analysis from fanning out into unbounded searches.
func BuildMatchQueries(analysis *models.ContentAnalysis) []string {
	if analysis == nil {
		return nil
	}

	queries := make([]string, 0, 2+maxFactQueries)
	if q := strings.TrimSpace(analysis.PrimarySubject.SpecificArea); q != "" {
		queries = append(queries, q)
	}
	if q := strings.TrimSpace(analysis.PrimarySubject.Scope); q != "" {
		queries = appendUnique(queries, q)
	}

	factQueries := 0
	for _, fact := range analysis.ExplicitFacts {
		if factQueries >= maxFactQueries {
			break
		}
		statement := strings.TrimSpace(fact.Statement)
		if statement == "" {
			continue
		}
		before := len(queries)
		queries = appendUnique(queries, statement)
		if len(queries) > before {
			factQueries++
		}
	}
	return queries
}

func appendUnique(list []string, value string) []string {
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}
