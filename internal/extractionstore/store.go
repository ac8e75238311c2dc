// Package extractionstore implements save_extraction: writing one
// extraction to the document store and the vector store, computing its
// embedding input, and deduplicating on (chunk_id, type).
package extractionstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
)

// SourceSnapshot carries the source-metadata fields mirrored onto a vector
// point's payload, per spec.md §4.9 step 4.
type SourceSnapshot struct {
	Title    string
	Type     string
	Category string
	Year     int
}

// DocumentStore is the subset of the document store client this package
// needs: dedup lookup, insert, and the project-wide listing Reembed reads.
type DocumentStore interface {
	FindExtractionByDedupKey(ctx context.Context, projectID, chunkID string, typ models.Category) (id string, found bool, err error)
	InsertExtraction(ctx context.Context, ext *models.Extraction) (id string, err error)
	ListExtractions(ctx context.Context, projectID string) ([]*models.Extraction, error)
}

// VectorStore is the subset of the vector store client this package needs.
type VectorStore interface {
	UpsertExtractionVector(ctx context.Context, projectID string, ext *models.Extraction, vector []float32, snapshot SourceSnapshot) error
}

// Embedder is the embedding contract's document side (spec.md §6).
type Embedder interface {
	EmbedDocument(ctx context.Context, text string) ([]float32, error)
}

const vectorDimension = 768

// SaveResult mirrors save_extraction's return shape from spec.md §4.9.
type SaveResult struct {
	ExtractionID string
	MongoSaved   bool
	QdrantSaved  bool
}

// Store is the Extraction Storage component.
type Store struct {
	docs      DocumentStore
	vectors   VectorStore
	embedder  Embedder
	projectID string
	log       zerolog.Logger
}

// New builds a Store scoped to projectID.
func New(docs DocumentStore, vectors VectorStore, embedder Embedder, projectID string, log zerolog.Logger) *Store {
	return &Store{docs: docs, vectors: vectors, embedder: embedder, projectID: projectID, log: log}
}

// Connect and Close give Store the connect/close pair the orchestrator's
// Storage interface calls. Store holds no connection of its own: the
// document and vector store clients it writes through are opened and
// closed by whoever constructed them, so both methods return nil.
func (s *Store) Connect(ctx context.Context) error { return nil }

func (s *Store) Close(ctx context.Context) error { return nil }

// SaveExtraction implements the five-step protocol from spec.md §4.9. The
// two stores are not transactionally coupled: a vector-store failure
// leaves the document-store record in place, and re-running over the same
// chunks is safe because step 1 short-circuits.
func (s *Store) SaveExtraction(ctx context.Context, ext *models.Extraction, snapshot SourceSnapshot) (SaveResult, error) {
	existingID, found, err := s.docs.FindExtractionByDedupKey(ctx, s.projectID, ext.ChunkID, ext.Type)
	if err != nil {
		return SaveResult{}, apperr.Wrap(apperr.CodeStorageError, "dedup lookup failed", err)
	}
	if found {
		return SaveResult{ExtractionID: existingID, MongoSaved: true, QdrantSaved: false}, nil
	}

	id, err := s.docs.InsertExtraction(ctx, ext)
	if err != nil {
		return SaveResult{}, apperr.Wrap(apperr.CodeStorageError, "insert extraction failed", err)
	}
	ext.ID = id

	result := SaveResult{ExtractionID: id, MongoSaved: true, QdrantSaved: false}

	vector, err := s.embedder.EmbedDocument(ctx, EmbeddingInput(ext))
	if err != nil {
		s.log.Error().Err(apperr.Wrap(apperr.CodeStorageError, "embedding request failed", err)).
			Str("extraction_id", id).Msg("extraction storage: embedding failed, document record kept")
		return result, nil
	}
	if len(vector) != vectorDimension {
		s.log.Error().Err(apperr.New(apperr.CodeValidation, fmt.Sprintf("embedding vector has %d dims, expected %d", len(vector), vectorDimension))).
			Str("extraction_id", id).Msg("extraction storage: embedding rejected, document record kept")
		return result, nil
	}

	if err := s.vectors.UpsertExtractionVector(ctx, s.projectID, ext, vector, snapshot); err != nil {
		s.log.Error().Err(apperr.Wrap(apperr.CodeStorageError, "vector upsert failed", err)).
			Str("extraction_id", id).Msg("extraction storage: vector store write failed, document record kept")
		return result, nil
	}

	result.QdrantSaved = true
	return result, nil
}

// EmbeddingInput concatenates the most semantically-rich fields of ext's
// content per category, matching the examples in spec.md §4.9 step 3.
func EmbeddingInput(ext *models.Extraction) string {
	get := func(key string) string {
		if v, ok := ext.Content[key].(string); ok {
			return v
		}
		return ""
	}
	var parts []string
	switch ext.Type {
	case models.CategoryDecision:
		parts = []string{get("question"), get("recommended_approach")}
	case models.CategoryPattern:
		parts = []string{get("name"), get("problem"), get("solution")}
	case models.CategoryWarning:
		parts = []string{get("title"), get("description")}
	case models.CategoryMethodology, models.CategoryChecklist, models.CategoryWorkflow:
		parts = []string{get("name")}
	case models.CategoryPersona:
		parts = []string{get("role")}
	default:
		parts = []string{get("name"), get("title")}
	}
	return strings.TrimSpace(strings.Join(nonEmpty(parts), " "))
}

func nonEmpty(parts []string) []string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Reembed re-reads every stored extraction in the project namespace and
// re-upserts its vector, for use when the embedding model or dimension
// changes. It is a pipeline-side maintenance operation, not an HTTP
// endpoint: the query service stays read-only.
func (s *Store) Reembed(ctx context.Context, snapshotFor func(sourceID string) SourceSnapshot) (int, error) {
	extractions, err := s.docs.ListExtractions(ctx, s.projectID)
	if err != nil {
		return 0, apperr.Wrap(apperr.CodeStorageError, "list extractions for reembed failed", err)
	}

	count := 0
	for _, ext := range extractions {
		vector, err := s.embedder.EmbedDocument(ctx, EmbeddingInput(ext))
		if err != nil {
			s.log.Error().Err(err).Str("extraction_id", ext.ID).Msg("reembed: embedding failed, skipping")
			continue
		}
		if len(vector) != vectorDimension {
			s.log.Error().Str("extraction_id", ext.ID).Int("dims", len(vector)).Msg("reembed: wrong vector dimension, skipping")
			continue
		}
		snapshot := SourceSnapshot{}
		if snapshotFor != nil {
			snapshot = snapshotFor(ext.SourceID)
		}
		if err := s.vectors.UpsertExtractionVector(ctx, s.projectID, ext, vector, snapshot); err != nil {
			s.log.Error().Err(err).Str("extraction_id", ext.ID).Msg("reembed: vector upsert failed, skipping")
			continue
		}
		count++
	}
	return count, nil
}
