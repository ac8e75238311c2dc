package docstore

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
)

// chunkDoc mirrors models.Chunk with an _id the bson decoder can take as a
// real ObjectID, the same pattern extractionDoc/sourceDoc use.
type chunkDoc struct {
	ID            interface{}     `bson:"_id,omitempty"`
	ProjectID     string          `bson:"project_id"`
	SourceID      string          `bson:"source_id"`
	Content       string          `bson:"content"`
	TokenCount    int             `bson:"token_count"`
	Position      models.Position `bson:"position"`
	SchemaVersion string          `bson:"schema_version"`
}

func toChunkDoc(chunk models.Chunk) chunkDoc {
	return chunkDoc{
		ProjectID:     chunk.ProjectID,
		SourceID:      chunk.SourceID,
		Content:       chunk.Content,
		TokenCount:    chunk.TokenCount,
		Position:      chunk.Position,
		SchemaVersion: chunk.SchemaVersion,
	}
}

func fromChunkDoc(doc chunkDoc) models.Chunk {
	id, _ := hexID(doc.ID)
	return models.Chunk{
		ID:            id,
		ProjectID:     doc.ProjectID,
		SourceID:      doc.SourceID,
		Content:       doc.Content,
		TokenCount:    doc.TokenCount,
		Position:      doc.Position,
		SchemaVersion: doc.SchemaVersion,
	}
}

// InsertChunks bulk-inserts chunks unordered and returns all inserted
// hex ids in input order, per spec.md §4.10.
func (c *Client) InsertChunks(ctx context.Context, chunks []models.Chunk) ([]string, error) {
	if len(chunks) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "chunk list is empty")
	}
	docs := make([]interface{}, len(chunks))
	for i, chunk := range chunks {
		docs[i] = toChunkDoc(chunk)
	}
	res, err := c.db.Collection(chunksCollection).InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "bulk insert chunks failed", err)
	}
	ids := make([]string, len(chunks))
	for i, chunk := range chunks {
		if inserted, ok := res.InsertedIDs[i]; ok {
			if id, err := hexID(inserted); err == nil {
				ids[i] = id
				continue
			}
		}
		ids[i] = chunk.ID
	}
	return ids, nil
}

// ListChunks returns every chunk belonging to sourceID, ordered by
// chunk_index, matching the hierarchy builder's expected input order.
func (c *Client) ListChunks(ctx context.Context, sourceID string) ([]models.Chunk, error) {
	oid, err := validateObjectID("source id", sourceID)
	if err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "position.chunk_index", Value: 1}})
	cur, err := c.db.Collection(chunksCollection).Find(ctx, bson.M{"source_id": oid.Hex()}, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "list chunks failed", err)
	}
	defer cur.Close(ctx)

	var out []models.Chunk
	for cur.Next(ctx) {
		var doc chunkDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorageError, "decode chunk failed", err)
		}
		out = append(out, fromChunkDoc(doc))
	}
	return out, cur.Err()
}

// GetChunk fetches one chunk by id, for enriching a semantic-search hit
// with its full text.
func (c *Client) GetChunk(ctx context.Context, chunkID string) (*models.Chunk, error) {
	oid, err := validateObjectID("chunk id", chunkID)
	if err != nil {
		return nil, err
	}
	var doc chunkDoc
	err = c.db.Collection(chunksCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.New(apperr.CodeNotFound, "chunk not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "get chunk failed", err)
	}
	chunk := fromChunkDoc(doc)
	return &chunk, nil
}
