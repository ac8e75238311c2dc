// Package vectorstore wraps the Qdrant unified vector collection: one
// collection holding both chunk and extraction points, discriminated by a
// content_type payload field, per spec.md §4.11.
package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/extractionstore"
	"knowledgeforge/internal/models"
)

// PayloadIDField holds the caller-supplied string id when it had to be
// mapped to a UUID5 point id, mirroring the teacher's qdrant adapter.
const PayloadIDField = "_original_id"

const (
	contentTypeChunk      = "chunk"
	contentTypeExtraction = "extraction"
)

const dimension = 768

// Hit is one result of a vector search or scroll, with its payload
// decoded into plain Go values for the query layer to project.
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Filters narrows a search or scroll beyond project_id, which is always
// applied, and content_type, which is applied when the caller names one.
type Filters struct {
	ExtractionType string
	SourceID       string
	SourceIDs      []string
	Topics         []string
}

// Store is the Vector Store Client component.
type Store struct {
	client     *qdrant.Client
	collection string
}

// New connects to Qdrant at rawURL and ensures the unified collection
// exists with 768-dimension cosine vectors. apiKey may be empty.
func New(rawURL, apiKey, collection string) (*Store, error) {
	if collection == "" {
		return nil, apperr.New(apperr.CodeValidation, "qdrant collection name is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "parse qdrant url", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	portStr := parsed.Port()
	if portStr == "" {
		portStr = "6334"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeValidation, "invalid port in qdrant url", err)
	}

	cfg := &qdrant.Config{Host: host, Port: port}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
	}

	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "create qdrant client", err)
	}

	s := &Store{client: client, collection: collection}
	if err := s.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "check qdrant collection exists", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "create qdrant collection", err)
	}
	return nil
}

// HealthCheck probes the connection via get_collections.
func (s *Store) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListCollections(ctx); err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "qdrant health check failed", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func validateDimension(vector []float32) error {
	if len(vector) != dimension {
		return apperr.New(apperr.CodeValidation, fmt.Sprintf("vector has %d dims, expected %d", len(vector), dimension))
	}
	return nil
}

// pointID maps a caller-supplied id to a Qdrant point id. Ids that already
// parse as UUIDs pass through; everything else is mapped deterministically
// via UUID5, with the original id preserved in the payload by the caller.
func pointID(id string) (pointID *qdrant.PointId, mapped bool) {
	if _, err := uuid.Parse(id); err == nil {
		return qdrant.NewIDUUID(id), false
	}
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()), true
}

func upsert(ctx context.Context, client *qdrant.Client, collection, originalID string, vector []float32, payload map[string]any) error {
	pid, mapped := pointID(originalID)
	if mapped {
		payload[PayloadIDField] = originalID
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points: []*qdrant.PointStruct{{
			Id:      pid,
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(payload),
		}},
	})
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "qdrant upsert failed", err)
	}
	return nil
}

// UpsertChunkVector upserts a chunk's embedding with a chunk-shaped payload.
func (s *Store) UpsertChunkVector(ctx context.Context, projectID string, chunk *models.Chunk, vector []float32) error {
	if err := validateDimension(vector); err != nil {
		return err
	}
	payload := map[string]any{
		"project_id":   projectID,
		"content_type": contentTypeChunk,
		"source_id":    chunk.SourceID,
		"chunk_id":     chunk.ID,
	}
	return upsert(ctx, s.client, s.collection, chunk.ID, vector, payload)
}

// UpsertExtractionVector upserts an extraction's embedding with the payload
// shape from spec.md §4.9 step 4, satisfying extractionstore.VectorStore.
func (s *Store) UpsertExtractionVector(ctx context.Context, projectID string, ext *models.Extraction, vector []float32, snapshot extractionstore.SourceSnapshot) error {
	if err := validateDimension(vector); err != nil {
		return err
	}
	payload := map[string]any{
		"project_id":      projectID,
		"content_type":    contentTypeExtraction,
		"extraction_type": string(ext.Type),
		"source_id":       ext.SourceID,
		"chunk_id":        ext.ChunkID,
		"topics":          ext.Topics,
		"source_title":    snapshot.Title,
		"source_type":     snapshot.Type,
		"source_category": snapshot.Category,
		"source_year":     snapshot.Year,
	}
	id := ext.ID
	if id == "" {
		id = ext.ChunkID + "|" + string(ext.Type)
	}
	return upsert(ctx, s.client, s.collection, id, vector, payload)
}

func buildFilter(projectID, contentType string, f Filters) *qdrant.Filter {
	must := []*qdrant.Condition{qdrant.NewMatch("project_id", projectID)}
	if contentType != "" {
		must = append(must, qdrant.NewMatch("content_type", contentType))
	}
	if f.ExtractionType != "" {
		must = append(must, qdrant.NewMatch("extraction_type", f.ExtractionType))
	}
	if f.SourceID != "" {
		must = append(must, qdrant.NewMatch("source_id", f.SourceID))
	}
	if len(f.SourceIDs) > 0 {
		ids := make([]string, len(f.SourceIDs))
		copy(ids, f.SourceIDs)
		must = append(must, qdrant.NewMatchKeywords("source_id", ids...))
	}
	if len(f.Topics) > 0 {
		topics := make([]string, len(f.Topics))
		copy(topics, f.Topics)
		must = append(must, qdrant.NewMatchKeywords("topics", topics...))
	}
	return &qdrant.Filter{Must: must}
}

func (s *Store) query(ctx context.Context, vector []float32, limit int, filter *qdrant.Filter) ([]Hit, error) {
	if err := validateDimension(vector); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	lim := uint64(limit)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &lim,
		Filter:         filter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "qdrant query failed", err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, toHit(p.GetId(), float64(p.GetScore()), p.GetPayload()))
	}
	return hits, nil
}

// SearchChunks runs a filtered top-k search restricted to chunk points.
func (s *Store) SearchChunks(ctx context.Context, projectID string, vector []float32, limit int, filters Filters) ([]Hit, error) {
	return s.query(ctx, vector, limit, buildFilter(projectID, contentTypeChunk, filters))
}

// SearchExtractions runs a filtered top-k search restricted to extraction points.
func (s *Store) SearchExtractions(ctx context.Context, projectID string, vector []float32, limit int, filters Filters) ([]Hit, error) {
	return s.query(ctx, vector, limit, buildFilter(projectID, contentTypeExtraction, filters))
}

// SearchKnowledge runs a filtered top-k search across both content types.
func (s *Store) SearchKnowledge(ctx context.Context, projectID string, vector []float32, limit int, filters Filters) ([]Hit, error) {
	return s.query(ctx, vector, limit, buildFilter(projectID, "", filters))
}

// ListExtractions scrolls the collection for extraction_type (and
// optionally topic) with no vector query, per spec.md §4.11.
func (s *Store) ListExtractions(ctx context.Context, projectID string, extractionType models.Category, limit int, topic string) ([]Hit, error) {
	if limit <= 0 {
		limit = 100
	}
	filters := Filters{ExtractionType: string(extractionType)}
	if topic != "" {
		filters.Topics = []string{topic}
	}
	lim := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(projectID, contentTypeExtraction, filters),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "qdrant scroll failed", err)
	}
	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, toHit(p.GetId(), 0, p.GetPayload()))
	}
	return hits, nil
}

// CountExtractionsBySource scrolls with a minimal payload and aggregates
// counts by extraction_type for each requested source id.
func (s *Store) CountExtractionsBySource(ctx context.Context, projectID string, sourceIDs []string) (map[string]map[string]int, error) {
	filters := Filters{SourceIDs: sourceIDs}
	lim := uint32(10000)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         buildFilter(projectID, contentTypeExtraction, filters),
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayloadInclude([]string{"source_id", "extraction_type"}),
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "qdrant scroll failed", err)
	}
	counts := make(map[string]map[string]int)
	for _, p := range points {
		payload := p.GetPayload()
		sourceID := stringValue(payload["source_id"])
		extType := stringValue(payload["extraction_type"])
		if sourceID == "" {
			continue
		}
		if counts[sourceID] == nil {
			counts[sourceID] = make(map[string]int)
		}
		counts[sourceID][extType]++
	}
	return counts, nil
}

func toHit(id *qdrant.PointId, score float64, payload map[string]*qdrant.Value) Hit {
	var idStr string
	if id != nil {
		idStr = id.GetUuid()
		if idStr == "" {
			idStr = id.String()
		}
	}
	decoded := make(map[string]any, len(payload))
	var originalID string
	for k, v := range payload {
		if k == PayloadIDField {
			originalID = v.GetStringValue()
			continue
		}
		decoded[k] = decodeValue(v)
	}
	if originalID != "" {
		idStr = originalID
	}
	return Hit{ID: idStr, Score: score, Payload: decoded}
}

func decodeValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		out := make([]any, 0, len(kind.ListValue.GetValues()))
		for _, item := range kind.ListValue.GetValues() {
			out = append(out, decodeValue(item))
		}
		return out
	default:
		return nil
	}
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
