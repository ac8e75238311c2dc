// Package docstore is the typed MongoDB client over the three document
// collections (sources, chunks, extractions), per spec.md §4.10.
package docstore

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
)

const (
	sourcesCollection     = "sources"
	chunksCollection      = "chunks"
	extractionsCollection = "extractions"
)

// Client is the Document Store Client component. It is scoped to one
// project namespace, matching the single-tenant-per-process model in
// spec.md §6.
type Client struct {
	db        *mongo.Database
	raw       *mongo.Client
	projectID string
	log       zerolog.Logger
}

// Connect dials mongoURI and selects database, applying connectTimeout and
// maxPoolSize from configuration.
func Connect(ctx context.Context, mongoURI, database, projectID string, connectTimeout time.Duration, maxPoolSize uint64, log zerolog.Logger) (*Client, error) {
	opts := options.Client().ApplyURI(mongoURI).SetConnectTimeout(connectTimeout).SetMaxPoolSize(maxPoolSize)
	raw, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "connect to mongodb", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := raw.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = raw.Disconnect(ctx)
		return nil, apperr.Wrap(apperr.CodeStorageError, "ping mongodb", err)
	}
	c := &Client{db: raw.Database(database), raw: raw, projectID: projectID, log: log}
	if err := c.ensureIndexes(ctx); err != nil {
		_ = raw.Disconnect(ctx)
		return nil, err
	}
	return c, nil
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	if err := c.raw.Disconnect(ctx); err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "disconnect mongodb", err)
	}
	return nil
}

// ensureIndexes creates the compound indexes from spec.md §4.10 in the
// background. Index creation is idempotent across process restarts.
func (c *Client) ensureIndexes(ctx context.Context) error {
	background := options.Index().SetBackground(true)

	sourceIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}}, Options: background},
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "type", Value: 1}}, Options: background},
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "category", Value: 1}}, Options: background},
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "tags", Value: 1}}, Options: background},
	}
	chunkIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "source_id", Value: 1}}, Options: background},
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "source_id", Value: 1}}, Options: background},
	}
	extractionIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "type", Value: 1}, {Key: "topics", Value: 1}}, Options: background},
		{Keys: bson.D{{Key: "source_id", Value: 1}}, Options: background},
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "source_id", Value: 1}}, Options: background},
		{Keys: bson.D{{Key: "project_id", Value: 1}, {Key: "type", Value: 1}}, Options: background},
	}

	for _, set := range []struct {
		coll    string
		indexes []mongo.IndexModel
	}{
		{sourcesCollection, sourceIndexes},
		{chunksCollection, chunkIndexes},
		{extractionsCollection, extractionIndexes},
	} {
		if _, err := c.db.Collection(set.coll).Indexes().CreateMany(ctx, set.indexes); err != nil {
			return apperr.Wrap(apperr.CodeStorageError, "create index on "+set.coll, err)
		}
	}
	c.log.Info().Msg("docstore: indexes ensured")
	return nil
}
