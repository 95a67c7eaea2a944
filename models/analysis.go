package models

// PrimarySubject describes what an uploaded document is actually about.
type PrimarySubject struct {
	Domain       string `json:"domain"`
	SpecificArea string `json:"specificArea"`
	Scope        string `json:"scope"`
}

// ExplicitFact is a single stated fact pulled from an uploaded document.
// A fact without a verbatim quote is invalid and must be discarded.
type ExplicitFact struct {
	Statement      string  `json:"statement"`
	Confidence     float64 `json:"confidence"`
	SourceLocation string  `json:"sourceLocation"`
	VerbatimQuote  string  `json:"verbatimQuote"`
}

// ContentAnalysis is the extractor's structured reading of one upload.
// Request-scoped; it is never persisted.
type ContentAnalysis struct {
	PrimarySubject   PrimarySubject `json:"primarySubject"`
	ExplicitFacts    []ExplicitFact `json:"explicitFacts"`
	OutOfScope       []string       `json:"outOfScope"`
	StatedBoundaries []string       `json:"statedBoundaries"`
}

// MatchedChunk is one chunk-level hit inside a DocumentMatch.
type MatchedChunk struct {
	ChunkIndex     int      `json:"chunkIndex"`
	ChunkText      string   `json:"chunkText"`
	Similarity     float64  `json:"similarity"`
	MatchedQueries []string `json:"matchedQueries"`
}

// DocumentMatch aggregates chunk hits for one candidate document across
// all fact-derived queries.
type DocumentMatch struct {
	DocumentID    string         `json:"documentId"`
	DocumentName  string         `json:"documentName"`
	Chunks        []MatchedChunk `json:"chunks"`
	MaxSimilarity float64        `json:"maxSimilarity"`
}
