package docstore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
)

// sourceDoc mirrors models.Source with an _id the bson decoder can take as
// a real ObjectID, the same pattern extractionDoc uses: the wire/domain
// type keeps a hex string id, the on-disk type keeps interface{}, and
// toSourceDoc/fromSourceDoc convert between them via hexID.
type sourceDoc struct {
	ID        interface{}        `bson:"_id,omitempty"`
	ProjectID string             `bson:"project_id"`
	Type      models.SourceType  `bson:"type"`
	Title     string             `bson:"title"`
	Authors   []string           `bson:"authors"`
	Category  string             `bson:"category"`
	Tags      []string           `bson:"tags"`
	Year      int                `bson:"year,omitempty"`
	FileSize  int64              `bson:"file_size"`
	FilePath  string             `bson:"file_path"`
	Status    models.SourceStatus `bson:"status"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
}

func toSourceDoc(src *models.Source) sourceDoc {
	return sourceDoc{
		ProjectID: src.ProjectID,
		Type:      src.Type,
		Title:     src.Title,
		Authors:   src.Authors,
		Category:  src.Category,
		Tags:      src.Tags,
		Year:      src.Year,
		FileSize:  src.FileSize,
		FilePath:  src.FilePath,
		Status:    src.Status,
		CreatedAt: src.CreatedAt,
		UpdatedAt: src.UpdatedAt,
	}
}

func fromSourceDoc(doc sourceDoc) *models.Source {
	id, _ := hexID(doc.ID)
	return &models.Source{
		ID:        id,
		ProjectID: doc.ProjectID,
		Type:      doc.Type,
		Title:     doc.Title,
		Authors:   doc.Authors,
		Category:  doc.Category,
		Tags:      doc.Tags,
		Year:      doc.Year,
		FileSize:  doc.FileSize,
		FilePath:  doc.FilePath,
		Status:    doc.Status,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

// InsertSource inserts a new source record and returns its hex id.
func (c *Client) InsertSource(ctx context.Context, src *models.Source) (string, error) {
	res, err := c.db.Collection(sourcesCollection).InsertOne(ctx, toSourceDoc(src))
	if err != nil {
		return "", apperr.Wrap(apperr.CodeStorageError, "insert source failed", err)
	}
	return hexID(res.InsertedID)
}

// GetSource fetches one source by id, validating the id format first.
func (c *Client) GetSource(ctx context.Context, sourceID string) (*models.Source, error) {
	oid, err := validateObjectID("source id", sourceID)
	if err != nil {
		return nil, err
	}
	var doc sourceDoc
	err = c.db.Collection(sourcesCollection).FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, apperr.New(apperr.CodeNotFound, "source not found")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "get source failed", err)
	}
	return fromSourceDoc(doc), nil
}

// UpdateSourceStatus updates status and updated_at for sourceID. The
// update set is never empty here, but callers of a general update path
// must reject an empty set per spec.md §4.10.
func (c *Client) UpdateSourceStatus(ctx context.Context, sourceID string, status models.SourceStatus) error {
	oid, err := validateObjectID("source id", sourceID)
	if err != nil {
		return err
	}
	update := bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}}
	res, err := c.db.Collection(sourcesCollection).UpdateByID(ctx, oid, update)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "update source status failed", err)
	}
	if res.MatchedCount == 0 {
		return apperr.New(apperr.CodeNotFound, "source not found")
	}
	return nil
}

// ListSourcesByIDs fetches source metadata for several ids at once, for
// batched source-attribution lookups in the query service.
func (c *Client) ListSourcesByIDs(ctx context.Context, sourceIDs []string) ([]*models.Source, error) {
	if len(sourceIDs) == 0 {
		return nil, apperr.New(apperr.CodeValidation, "source id list is empty")
	}
	oids := make([]interface{}, 0, len(sourceIDs))
	for _, id := range sourceIDs {
		oid, err := validateObjectID("source id", id)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	cur, err := c.db.Collection(sourcesCollection).Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "list sources failed", err)
	}
	defer cur.Close(ctx)

	var out []*models.Source
	for cur.Next(ctx) {
		var doc sourceDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorageError, "decode source failed", err)
		}
		out = append(out, fromSourceDoc(doc))
	}
	return out, cur.Err()
}

func hexID(insertedID interface{}) (string, error) {
	type hexer interface{ Hex() string }
	if h, ok := insertedID.(hexer); ok {
		return h.Hex(), nil
	}
	return "", apperr.New(apperr.CodeInternal, "inserted id is not an ObjectID")
}
