package repository

import (
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"workspace-ai-backend/models"
	"workspace-ai-backend/utils"
)

const (
	documentsCollection = "documents"
	chunksCollection    = "doc_chunks"
	messagesCollection  = "messages"

	// Chunk text below this stays uncompressed; compression overhead
	// outweighs the savings for small chunks.
	compressionFloor = 500
)

// MongoDocumentRepository stores documents in the documents collection.
type MongoDocumentRepository struct {
	col *mongo.Collection
}

func NewMongoDocumentRepository(db *mongo.Database) *MongoDocumentRepository {
	return &MongoDocumentRepository{col: db.Collection(documentsCollection)}
}

func (r *MongoDocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	_, err := r.col.InsertOne(ctx, doc)
	return err
}

func (r *MongoDocumentRepository) GetByDocumentID(ctx context.Context, projectID, documentID string) (*models.Document, error) {
	var doc models.Document
	err := r.col.FindOne(ctx, bson.M{"project_id": projectID, "document_id": documentID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *MongoDocumentRepository) GetByContentHash(ctx context.Context, projectID, contentHash string) (*models.Document, error) {
	var doc models.Document
	err := r.col.FindOne(ctx, bson.M{"project_id": projectID, "content_hash": contentHash}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *MongoDocumentRepository) Update(ctx context.Context, doc *models.Document) error {
	doc.UpdatedAt = time.Now()
	res, err := r.col.ReplaceOne(ctx, bson.M{"project_id": doc.ProjectID, "document_id": doc.DocumentID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoDocumentRepository) ListByProject(ctx context.Context, projectID string) ([]models.Document, error) {
	cursor, err := r.col.Find(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]models.Document, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// storedChunk is the at-rest shape of a chunk. Text above the compression
// floor is compressed and base64-encoded; decode happens on read so the
// rest of the system only ever sees plain text.
type storedChunk struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ProjectID      string             `bson:"project_id"`
	DocumentID     string             `bson:"document_id"`
	DocumentName   string             `bson:"document_name"`
	ChunkIndex     int                `bson:"chunk_index"`
	Text           string             `bson:"text"`
	Compressed     bool               `bson:"compressed"`
	Compression    string             `bson:"compression,omitempty"`
	Embedding      []float32          `bson:"embedding,omitempty"`
	EmbeddingModel string             `bson:"embedding_model,omitempty"`
	ContentHash    string             `bson:"content_hash"`
	CreatedAt      time.Time          `bson:"created_at"`
}

// MongoChunkRepository stores retrieval chunks in the doc_chunks collection.
type MongoChunkRepository struct {
	col *mongo.Collection
}

func NewMongoChunkRepository(db *mongo.Database) *MongoChunkRepository {
	return &MongoChunkRepository{col: db.Collection(chunksCollection)}
}

func (r *MongoChunkRepository) InsertMany(ctx context.Context, chunks []models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]interface{}, 0, len(chunks))
	now := time.Now()
	for _, chunk := range chunks {
		stored, err := encodeChunk(chunk)
		if err != nil {
			return err
		}
		stored.CreatedAt = now
		docs = append(docs, stored)
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r *MongoChunkRepository) DeleteByDocument(ctx context.Context, projectID, documentID string) (int64, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"project_id": projectID, "document_id": documentID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *MongoChunkRepository) CountByDocument(ctx context.Context, projectID, documentID string) (int64, error) {
	return r.col.CountDocuments(ctx, bson.M{"project_id": projectID, "document_id": documentID})
}

func (r *MongoChunkRepository) StoredContentHash(ctx context.Context, projectID, documentID string) (string, error) {
	var stored storedChunk
	err := r.col.FindOne(ctx,
		bson.M{"project_id": projectID, "document_id": documentID},
		options.FindOne().SetProjection(bson.M{"content_hash": 1}),
	).Decode(&stored)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return stored.ContentHash, nil
}

func (r *MongoChunkRepository) ListByProject(ctx context.Context, projectID string) ([]models.DocumentChunk, error) {
	return r.list(ctx, bson.M{"project_id": projectID}, nil)
}

func (r *MongoChunkRepository) ListByDocument(ctx context.Context, projectID, documentID string) ([]models.DocumentChunk, error) {
	return r.list(ctx,
		bson.M{"project_id": projectID, "document_id": documentID},
		options.Find().SetSort(bson.M{"chunk_index": 1}),
	)
}

func (r *MongoChunkRepository) SearchText(ctx context.Context, projectID, query string, limit int) ([]models.DocumentChunk, error) {
	// Substring search on compressed chunks can't be pushed to the server,
	// so match server-side on uncompressed chunks and client-side on the rest.
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	filter := bson.M{
		"project_id": projectID,
		"$or": bson.A{
			bson.M{"compressed": false, "text": pattern},
			bson.M{"compressed": true},
		},
	}

	chunks, err := r.list(ctx, filter, options.Find().SetSort(bson.M{"created_at": -1}))
	if err != nil {
		return nil, err
	}

	loweredQuery := strings.ToLower(query)
	matched := make([]models.DocumentChunk, 0, limit)
	for _, chunk := range chunks {
		if !strings.Contains(strings.ToLower(chunk.Text), loweredQuery) {
			continue
		}
		matched = append(matched, chunk)
		if limit > 0 && len(matched) >= limit {
			break
		}
	}
	return matched, nil
}

func (r *MongoChunkRepository) ListMissingEmbeddings(ctx context.Context, limit int) ([]models.DocumentChunk, error) {
	filter := bson.M{"embedding": bson.M{"$exists": false}}
	opts := options.Find().SetSort(bson.M{"created_at": 1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return r.list(ctx, filter, opts)
}

func (r *MongoChunkRepository) SetEmbedding(ctx context.Context, id primitive.ObjectID, embedding []float32, model string) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"embedding": embedding, "embedding_model": model}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoChunkRepository) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.DocumentChunk, error) {
	var cursor *mongo.Cursor
	var err error
	if opts != nil {
		cursor, err = r.col.Find(ctx, filter, opts)
	} else {
		cursor, err = r.col.Find(ctx, filter)
	}
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chunks := make([]models.DocumentChunk, 0)
	for cursor.Next(ctx) {
		var stored storedChunk
		if err := cursor.Decode(&stored); err != nil {
			return nil, err
		}
		chunk, err := decodeChunk(stored)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	return chunks, cursor.Err()
}

func encodeChunk(chunk models.DocumentChunk) (storedChunk, error) {
	stored := storedChunk{
		ID:             chunk.ID,
		ProjectID:      chunk.ProjectID,
		DocumentID:     chunk.DocumentID,
		DocumentName:   chunk.DocumentName,
		ChunkIndex:     chunk.ChunkIndex,
		Text:           chunk.Text,
		Embedding:      chunk.Embedding,
		EmbeddingModel: chunk.EmbeddingModel,
		ContentHash:    chunk.ContentHash,
	}
	if stored.ID.IsZero() {
		stored.ID = primitive.NewObjectID()
	}

	if len(chunk.Text) >= compressionFloor {
		compressed, algorithm, err := utils.CompressText(chunk.Text)
		if err != nil {
			return storedChunk{}, fmt.Errorf("failed to compress chunk: %w", err)
		}
		if algorithm != utils.CompressionNone {
			stored.Text = base64.StdEncoding.EncodeToString(compressed)
			stored.Compressed = true
			stored.Compression = string(algorithm)
		}
	}
	return stored, nil
}

func decodeChunk(stored storedChunk) (models.DocumentChunk, error) {
	text := stored.Text
	if stored.Compressed {
		raw, err := base64.StdEncoding.DecodeString(stored.Text)
		if err != nil {
			return models.DocumentChunk{}, fmt.Errorf("failed to decode chunk: %w", err)
		}
		text, err = utils.DecompressText(raw, utils.CompressionAlgorithm(stored.Compression))
		if err != nil {
			return models.DocumentChunk{}, fmt.Errorf("failed to decompress chunk: %w", err)
		}
	}

	return models.DocumentChunk{
		ID:             stored.ID,
		ProjectID:      stored.ProjectID,
		DocumentID:     stored.DocumentID,
		DocumentName:   stored.DocumentName,
		ChunkIndex:     stored.ChunkIndex,
		Text:           text,
		Embedding:      stored.Embedding,
		EmbeddingModel: stored.EmbeddingModel,
		ContentHash:    stored.ContentHash,
	}, nil
}

// MongoMessageRepository stores chat messages in the messages collection.
type MongoMessageRepository struct {
	col *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{col: db.Collection(messagesCollection)}
}

func (r *MongoMessageRepository) Insert(ctx context.Context, msg *models.StoredMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	_, err := r.col.InsertOne(ctx, msg)
	return err
}

func (r *MongoMessageRepository) ListByProject(ctx context.Context, projectID string, limit int) ([]models.StoredMessage, error) {
	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, bson.M{"project_id": projectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := make([]models.StoredMessage, 0)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (r *MongoMessageRepository) SearchText(ctx context.Context, projectID, query string, limit int) ([]models.StoredMessage, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	opts := options.Find().SetSort(bson.M{"timestamp": -1})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := r.col.Find(ctx, bson.M{"project_id": projectID, "content": pattern}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := make([]models.StoredMessage, 0)
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}
