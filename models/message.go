package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StoredMessage is an append-only chat message indexed for recall.
type StoredMessage struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProjectID      string             `json:"project_id" bson:"project_id"`
	SessionID      string             `json:"session_id,omitempty" bson:"session_id,omitempty"`
	Role           string             `json:"role" bson:"role"`
	Content        string             `json:"content" bson:"content"`
	Embedding      []float32          `json:"embedding,omitempty" bson:"embedding,omitempty"`
	EmbeddingModel string             `json:"embedding_model,omitempty" bson:"embedding_model,omitempty"`
	Timestamp      time.Time          `json:"timestamp" bson:"timestamp"`
}

// MessageHit is a message returned by a similarity or fallback search.
type MessageHit struct {
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	Similarity float64   `json:"similarity"`
	Timestamp  time.Time `json:"timestamp"`
}
