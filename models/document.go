package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Document is the canonical stored form of a workspace document. DocumentID
// is the stable application identifier; the Mongo _id is storage-internal.
type Document struct {
	ID          primitive.ObjectID    `json:"-" bson:"_id,omitempty"`
	DocumentID  string                `json:"document_id" bson:"document_id"`
	ProjectID   string                `json:"project_id" bson:"project_id"`
	Name        string                `json:"name" bson:"name"`
	Content     string                `json:"content" bson:"content"`
	ContentHash string                `json:"content_hash" bson:"content_hash"`
	FileURL     string                `json:"file_url,omitempty" bson:"file_url,omitempty"`
	Version     string                `json:"version" bson:"version"`
	History     []VersionHistoryEntry `json:"history,omitempty" bson:"history,omitempty"`
	CreatedBy   string                `json:"created_by,omitempty" bson:"created_by,omitempty"`
	CreatedAt   time.Time             `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at" bson:"updated_at"`
}

// VersionHistoryEntry snapshots a document version before a revision
// replaced it.
type VersionHistoryEntry struct {
	Version     string    `json:"version" bson:"version"`
	Content     string    `json:"content" bson:"content"`
	FileURL     string    `json:"file_url,omitempty" bson:"file_url,omitempty"`
	ContentHash string    `json:"content_hash" bson:"content_hash"`
	CreatedDate time.Time `json:"created_date" bson:"created_date"`
	CreatedBy   string    `json:"created_by,omitempty" bson:"created_by,omitempty"`
	ChangeNotes string    `json:"change_notes,omitempty" bson:"change_notes,omitempty"`
}
