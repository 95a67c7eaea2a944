package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DocumentChunk is one indexed slice of a document. The embedding is
// optional; chunks written while the provider was down carry none until the
// backfill sweep fills them in.
type DocumentChunk struct {
	ID             primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	ProjectID      string             `json:"project_id" bson:"project_id"`
	DocumentID     string             `json:"document_id" bson:"document_id"`
	DocumentName   string             `json:"document_name" bson:"document_name"`
	ChunkIndex     int                `json:"chunk_index" bson:"chunk_index"`
	Text           string             `json:"text" bson:"text"`
	Embedding      []float32          `json:"embedding,omitempty" bson:"embedding,omitempty"`
	EmbeddingModel string             `json:"embedding_model,omitempty" bson:"embedding_model,omitempty"`
	ContentHash    string             `json:"content_hash" bson:"content_hash"`
}

// ChunkHit is a chunk returned by a similarity or fallback search.
type ChunkHit struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Text         string  `json:"text"`
	Similarity   float64 `json:"similarity"`
}
