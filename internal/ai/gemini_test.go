package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"

	genai "github.com/google/generative-ai-go/genai"
)

func TestCheckEmbeddingCount(t *testing.T) {
	resp := &genai.BatchEmbedContentsResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2}}},
	}

	assert.NoError(t, checkEmbeddingCount(resp, 1))
	assert.Error(t, checkEmbeddingCount(resp, 2))

	err := checkEmbeddingCount(nil, 3)
	assert.Error(t, err, "a nil response must be an error, not a panic")
	assert.Contains(t, err.Error(), "got 0 for 3 inputs")
}

func TestTruncateInputKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "héllo", TruncateInput("héllo", 10))
	assert.Equal(t, "h", TruncateInput("héllo", 2), "must not split the two-byte rune")
	assert.Equal(t, "hé", TruncateInput("héllo", 3))
}
