package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
)

// extractionDoc is the document-store shape from spec.md §4.9 step 2:
// envelope fields at top level, category-specific fields nested under
// content.
type extractionDoc struct {
	ID            interface{}    `bson:"_id,omitempty"`
	ProjectID     string         `bson:"project_id"`
	SourceID      string         `bson:"source_id"`
	ChunkID       string         `bson:"chunk_id"`
	Type          models.Category `bson:"type"`
	Topics        []string       `bson:"topics"`
	Confidence    float64        `bson:"confidence"`
	SchemaVersion string         `bson:"schema_version"`
	ExtractedAt   time.Time      `bson:"extracted_at"`
	ContextLevel  models.ContextLevel `bson:"context_level"`
	ContextID     string         `bson:"context_id"`
	ChunkIDs      []string       `bson:"chunk_ids,omitempty"`
	Content       map[string]any `bson:"content"`
}

func toDoc(projectID string, ext *models.Extraction) extractionDoc {
	return extractionDoc{
		ProjectID:     projectID,
		SourceID:      ext.SourceID,
		ChunkID:       ext.ChunkID,
		Type:          ext.Type,
		Topics:        ext.Topics,
		Confidence:    ext.Confidence,
		SchemaVersion: ext.SchemaVersion,
		ExtractedAt:   ext.ExtractedAt,
		ContextLevel:  ext.ContextLevel,
		ContextID:     ext.ContextID,
		ChunkIDs:      ext.ChunkIDs,
		Content:       ext.Content,
	}
}

func fromDoc(doc extractionDoc) *models.Extraction {
	id, _ := hexID(doc.ID)
	ext := &models.Extraction{
		ID:            id,
		SourceID:      doc.SourceID,
		ChunkID:       doc.ChunkID,
		Type:          doc.Type,
		Topics:        doc.Topics,
		Confidence:    doc.Confidence,
		SchemaVersion: doc.SchemaVersion,
		ExtractedAt:   doc.ExtractedAt,
		ContextLevel:  doc.ContextLevel,
		ContextID:     doc.ContextID,
		ChunkIDs:      doc.ChunkIDs,
		Content:       doc.Content,
	}
	models.Normalize(ext)
	return ext
}

// FindExtractionByDedupKey implements extractionstore.DocumentStore's
// dedup lookup over (chunk_id, type) scoped to projectID.
func (c *Client) FindExtractionByDedupKey(ctx context.Context, projectID, chunkID string, typ models.Category) (string, bool, error) {
	var doc extractionDoc
	filter := bson.M{"project_id": projectID, "chunk_id": chunkID, "type": typ}
	err := c.db.Collection(extractionsCollection).FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperr.Wrap(apperr.CodeStorageError, "dedup lookup failed", err)
	}
	id, err := hexID(doc.ID)
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// InsertExtraction implements extractionstore.DocumentStore's insert step.
func (c *Client) InsertExtraction(ctx context.Context, ext *models.Extraction) (string, error) {
	doc := toDoc(c.projectID, ext)
	res, err := c.db.Collection(extractionsCollection).InsertOne(ctx, doc)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeStorageError, "insert extraction failed", err)
	}
	return hexID(res.InsertedID)
}

// GetExtraction fetches one extraction by hex id, for the query service's
// full-content lookup when enriching a semantic-search hit.
func (c *Client) GetExtraction(ctx context.Context, extractionID string) (*models.Extraction, error) {
	oid, err := validateObjectID("extraction id", extractionID)
	if err != nil {
		return nil, err
	}
	var doc extractionDoc
	err = c.db.Collection(extractionsCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.New(apperr.CodeNotFound, "extraction not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "get extraction failed", err)
	}
	return fromDoc(doc), nil
}

// ListExtractions returns every extraction in the project namespace, for
// maintenance operations such as Reembed.
func (c *Client) ListExtractions(ctx context.Context, projectID string) ([]*models.Extraction, error) {
	cur, err := c.db.Collection(extractionsCollection).Find(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "list extractions failed", err)
	}
	defer cur.Close(ctx)

	var out []*models.Extraction
	for cur.Next(ctx) {
		var doc extractionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorageError, "decode extraction failed", err)
		}
		out = append(out, fromDoc(doc))
	}
	return out, cur.Err()
}

// ListExtractionsByType returns extractions of one category, optionally
// filtered by topic, for the category-listing query endpoints.
func (c *Client) ListExtractionsByType(ctx context.Context, projectID string, typ models.Category, limit int, topic string) ([]*models.Extraction, error) {
	filter := bson.M{"project_id": projectID, "type": typ}
	if topic != "" {
		filter["topics"] = topic
	}
	cur, err := c.db.Collection(extractionsCollection).Find(ctx, filter)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "list extractions by type failed", err)
	}
	defer cur.Close(ctx)

	var out []*models.Extraction
	for cur.Next(ctx) {
		var doc extractionDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorageError, "decode extraction failed", err)
		}
		out = append(out, fromDoc(doc))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, cur.Err()
}
