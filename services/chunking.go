package services

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxChunkSize = 1000
	DefaultChunkOverlap = 200

	// Word-count approximation for the overlap carry: ~6 chars per word.
	approxCharsPerWord = 6
)

// TextChunk is one bounded slice of a larger text, ordered by Index.
type TextChunk struct {
	Text  string
	Index int
}

// Chunker splits text into sentence-aware chunks with overlap. Sentences
// are never split mid-sentence: a single sentence longer than maxChunkSize
// becomes its own oversized chunk.
type Chunker struct {
	maxChunkSize  int
	overlap       int
	sentenceRegex *regexp.Regexp
}

func NewChunker(maxChunkSize, overlap int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	return &Chunker{
		maxChunkSize:  maxChunkSize,
		overlap:       overlap,
		sentenceRegex: regexp.MustCompile(`[^.!?]+[.!?]+|[^.!?]+$`),
	}
}

// Chunk splits text into chunks. Empty or whitespace-only input yields nil.
// Each chunk after the first is seeded with the trailing ~overlap characters
// of its predecessor so local context survives chunk boundaries.
func (c *Chunker) Chunk(text string) []TextChunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	sentences := c.splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []TextChunk
	seed := ""
	current := make([]string, 0, 8)
	currentSize := 0

	flush := func() {
		parts := current
		if seed != "" {
			parts = append([]string{seed}, current...)
		}
		chunks = append(chunks, TextChunk{
			Text:  strings.Join(parts, " "),
			Index: len(chunks),
		})
	}

	for _, sentence := range sentences {
		projected := len(seed) + currentSize + len(sentence)
		if len(current) > 0 && projected > c.maxChunkSize {
			flush()
			seed = c.overlapTail(chunks[len(chunks)-1].Text)
			current = current[:0]
			currentSize = 0
		}
		current = append(current, sentence)
		currentSize += len(sentence) + 1
	}

	// Final partial chunk is always flushed
	if len(current) > 0 {
		flush()
	}

	return chunks
}

func (c *Chunker) splitSentences(text string) []string {
	raw := c.sentenceRegex.FindAllString(text, -1)
	sentences := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// overlapTail returns the trailing words of text approximating the overlap
// character budget.
func (c *Chunker) overlapTail(text string) string {
	if c.overlap == 0 {
		return ""
	}
	words := strings.Fields(text)
	overlapWords := c.overlap / approxCharsPerWord
	if overlapWords <= 0 {
		return ""
	}
	if overlapWords >= len(words) {
		return strings.Join(words, " ")
	}
	return strings.Join(words[len(words)-overlapWords:], " ")
}
