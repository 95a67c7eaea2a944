package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkEmptyInput(t *testing.T) {
	c := NewChunker(100, 20)

	assert.Nil(t, c.Chunk(""))
	assert.Nil(t, c.Chunk("   \n\t  "))
}

func TestChunkShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)

	chunks := c.Chunk("First sentence. Second sentence. Third sentence.")
	assert.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Contains(t, chunks[0].Text, "First sentence.")
	assert.Contains(t, chunks[0].Text, "Third sentence.")
}

func TestChunkDeterministic(t *testing.T) {
	c := NewChunker(80, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 10)

	first := c.Chunk(text)
	second := c.Chunk(text)

	assert.Equal(t, first, second)
	assert.Greater(t, len(first), 1)
	for i, chunk := range first {
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChunkNeverSplitsSentences(t *testing.T) {
	c := NewChunker(60, 12)
	text := "Alpha beta gamma delta. Epsilon zeta eta theta. Iota kappa lambda mu. Nu xi omicron pi."

	for _, chunk := range c.Chunk(text) {
		// Every chunk boundary falls on sentence punctuation
		trimmed := strings.TrimSpace(chunk.Text)
		assert.True(t, strings.HasSuffix(trimmed, "."), "chunk %q should end at a sentence boundary", trimmed)
	}
}

func TestChunkOversizedSentenceBecomesOwnChunk(t *testing.T) {
	c := NewChunker(50, 10)
	long := "This single sentence is far longer than the configured maximum chunk size and cannot be split."
	text := "Short one. " + long + " Short two."

	chunks := c.Chunk(text)
	found := false
	for _, chunk := range chunks {
		if strings.Contains(chunk.Text, "cannot be split") {
			found = true
			assert.Greater(t, len(chunk.Text), 50)
		}
	}
	assert.True(t, found, "oversized sentence should survive intact")
}

func TestChunkOverlapCarriesContext(t *testing.T) {
	c := NewChunker(80, 30)
	text := "One two three four five six seven eight nine ten. Alpha beta gamma delta epsilon zeta eta theta. Red green blue yellow purple orange pink brown."

	chunks := c.Chunk(text)
	if len(chunks) < 2 {
		t.Skip("text fit in one chunk")
	}

	// The second chunk starts with trailing words of the first
	firstWords := strings.Fields(chunks[0].Text)
	lastWord := firstWords[len(firstWords)-1]
	assert.Contains(t, chunks[1].Text, strings.TrimRight(lastWord, "."))
}
