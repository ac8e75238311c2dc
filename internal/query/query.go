// Package query implements the three endpoint families from spec.md
// §4.12: semantic search, category listings, and their shared response
// envelope.
package query

import (
	"context"
	"sort"
	"time"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
	"knowledgeforge/internal/vectorstore"
)

// DocStore is the subset of the document store client the query service
// reads from. It never writes.
type DocStore interface {
	GetExtraction(ctx context.Context, extractionID string) (*models.Extraction, error)
	GetChunk(ctx context.Context, chunkID string) (*models.Chunk, error)
	ListSourcesByIDs(ctx context.Context, sourceIDs []string) ([]*models.Source, error)
}

// VectorStore is the subset of the vector store client the query service needs.
type VectorStore interface {
	SearchChunks(ctx context.Context, projectID string, vector []float32, limit int, filters vectorstore.Filters) ([]vectorstore.Hit, error)
	SearchExtractions(ctx context.Context, projectID string, vector []float32, limit int, filters vectorstore.Filters) ([]vectorstore.Hit, error)
	ListExtractions(ctx context.Context, projectID string, extractionType models.Category, limit int, topic string) ([]vectorstore.Hit, error)
}

// Embedder embeds a query string with the query-side instruction prefix.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service is the Query Endpoints component.
type Service struct {
	docs      DocStore
	vectors   VectorStore
	embedder  Embedder
	projectID string
	now       func() time.Time
}

// New builds a Service scoped to projectID.
func New(docs DocStore, vectors VectorStore, embedder Embedder, projectID string) *Service {
	return &Service{docs: docs, vectors: vectors, embedder: embedder, projectID: projectID, now: time.Now}
}

// SourceAttribution is a result's provenance, per spec.md §4.12.
type SourceAttribution struct {
	SourceID string          `json:"source_id"`
	ChunkID  string          `json:"chunk_id,omitempty"`
	Title    string          `json:"title"`
	Authors  []string        `json:"authors,omitempty"`
	Position *models.Position `json:"position,omitempty"`
}

// SearchResult is one hit in a search or listing response.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float64           `json:"score"`
	Type    string            `json:"type"`
	Content any               `json:"content"`
	Source  SourceAttribution `json:"source"`
}

// Metadata accompanies every Response.
type Metadata struct {
	Query        string   `json:"query"`
	SourcesCited []string `json:"sources_cited"`
	ResultCount  int      `json:"result_count"`
	SearchType   string   `json:"search_type"`
	LatencyMs    int64    `json:"latency_ms,omitempty"`
}

// Response is the shared envelope for all three endpoint families.
type Response struct {
	Results  []SearchResult `json:"results"`
	Metadata Metadata       `json:"metadata"`
}

const (
	resultTypeChunk      = "chunk"
	resultTypeExtraction = "extraction"
)

// sourceCache batches unique source_id lookups for one request.
type sourceCache struct {
	docs  DocStore
	cache map[string]*models.Source
}

func newSourceCache(docs DocStore) *sourceCache {
	return &sourceCache{docs: docs, cache: make(map[string]*models.Source)}
}

func (c *sourceCache) warm(ctx context.Context, sourceIDs []string) error {
	var missing []string
	seen := make(map[string]bool)
	for _, id := range sourceIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := c.cache[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sources, err := c.docs.ListSourcesByIDs(ctx, missing)
	if err != nil {
		return err
	}
	for _, src := range sources {
		c.cache[src.ID] = src
	}
	return nil
}

func (c *sourceCache) attribution(sourceID, chunkID string, position *models.Position) SourceAttribution {
	attr := SourceAttribution{SourceID: sourceID, ChunkID: chunkID, Position: position}
	if src, ok := c.cache[sourceID]; ok {
		attr.Title = src.Title
		attr.Authors = src.Authors
	}
	return attr
}

// SemanticSearch implements search_knowledge: embed the query, search
// chunks and extractions in parallel, merge by score, enrich with source
// attribution, and cap at limit.
func (s *Service) SemanticSearch(ctx context.Context, query string, limit int) (Response, error) {
	if query == "" {
		return Response{}, apperr.New(apperr.CodeValidation, "query must not be empty")
	}
	if limit < 1 || limit > 100 {
		return Response{}, apperr.New(apperr.CodeValidation, "limit must be between 1 and 100")
	}

	start := s.now()
	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return Response{}, apperr.Wrap(apperr.CodeAPIError, "embed query failed", err)
	}

	type searchOutcome struct {
		hits []vectorstore.Hit
		err  error
	}
	chunkCh := make(chan searchOutcome, 1)
	extCh := make(chan searchOutcome, 1)

	go func() {
		hits, err := s.vectors.SearchChunks(ctx, s.projectID, vector, limit, vectorstore.Filters{})
		chunkCh <- searchOutcome{hits, err}
	}()
	go func() {
		hits, err := s.vectors.SearchExtractions(ctx, s.projectID, vector, limit, vectorstore.Filters{})
		extCh <- searchOutcome{hits, err}
	}()
	chunkOutcome, extOutcome := <-chunkCh, <-extCh
	if chunkOutcome.err != nil {
		return Response{}, apperr.Wrap(apperr.CodeStorageError, "search chunks failed", chunkOutcome.err)
	}
	if extOutcome.err != nil {
		return Response{}, apperr.Wrap(apperr.CodeStorageError, "search extractions failed", extOutcome.err)
	}

	cache := newSourceCache(s.docs)
	var sourceIDs []string
	for _, h := range chunkOutcome.hits {
		sourceIDs = append(sourceIDs, stringField(h.Payload, "source_id"))
	}
	for _, h := range extOutcome.hits {
		sourceIDs = append(sourceIDs, stringField(h.Payload, "source_id"))
	}
	if err := cache.warm(ctx, sourceIDs); err != nil {
		return Response{}, apperr.Wrap(apperr.CodeStorageError, "warm source cache failed", err)
	}

	var results []SearchResult
	for _, h := range chunkOutcome.hits {
		results = append(results, s.toChunkResult(ctx, h, cache))
	}
	for _, h := range extOutcome.hits {
		results = append(results, s.toExtractionResult(ctx, h, cache))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}

	return Response{
		Results: results,
		Metadata: Metadata{
			Query:        query,
			SourcesCited: citedSources(results),
			ResultCount:  len(results),
			SearchType:   "semantic",
			LatencyMs:    s.now().Sub(start).Milliseconds(),
		},
	}, nil
}

func (s *Service) toChunkResult(ctx context.Context, h vectorstore.Hit, cache *sourceCache) SearchResult {
	content := any(nil)
	var position *models.Position
	if chunk, err := s.docs.GetChunk(ctx, h.ID); err == nil {
		content = chunk.Content
		position = &chunk.Position
	}
	sourceID := stringField(h.Payload, "source_id")
	return SearchResult{
		ID:      h.ID,
		Score:   h.Score,
		Type:    resultTypeChunk,
		Content: content,
		Source:  cache.attribution(sourceID, h.ID, position),
	}
}

func (s *Service) toExtractionResult(ctx context.Context, h vectorstore.Hit, cache *sourceCache) SearchResult {
	sourceID := stringField(h.Payload, "source_id")
	chunkID := stringField(h.Payload, "chunk_id")

	var content any
	if ext, err := s.docs.GetExtraction(ctx, h.ID); err == nil {
		content = ext.Content
	} else {
		content = fallbackTitle(h.Payload)
	}

	return SearchResult{
		ID:      h.ID,
		Score:   h.Score,
		Type:    resultTypeExtraction,
		Content: content,
		Source:  cache.attribution(sourceID, chunkID, nil),
	}
}

// citedSources collects the sorted, deduplicated set of source titles cited
// by results, per spec.md §8 scenario 3 ("metadata.sources_cited contains
// the single source title").
func citedSources(results []SearchResult) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range results {
		if r.Source.Title == "" || seen[r.Source.Title] {
			continue
		}
		seen[r.Source.Title] = true
		out = append(out, r.Source.Title)
	}
	sort.Strings(out)
	return out
}

func stringField(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}

func fallbackTitle(payload map[string]any) string {
	for _, key := range []string{"extraction_title", "name", "title", "question"} {
		if v := stringField(payload, key); v != "" {
			return v
		}
	}
	return ""
}

// GetCategory implements the category-listing family: get_decisions,
// get_patterns, get_warnings, get_methodologies. Tier gating happens at
// the HTTP boundary, not here.
func (s *Service) GetCategory(ctx context.Context, category models.Category, topic string, limit int) (Response, error) {
	if limit < 1 || limit > 500 {
		return Response{}, apperr.New(apperr.CodeValidation, "limit must be between 1 and 500")
	}

	hits, err := s.vectors.ListExtractions(ctx, s.projectID, category, limit, topic)
	if err != nil {
		return Response{}, apperr.Wrap(apperr.CodeStorageError, "list extractions failed", err)
	}

	cache := newSourceCache(s.docs)
	var sourceIDs []string
	for _, h := range hits {
		sourceIDs = append(sourceIDs, stringField(h.Payload, "source_id"))
	}
	if err := cache.warm(ctx, sourceIDs); err != nil {
		return Response{}, apperr.Wrap(apperr.CodeStorageError, "warm source cache failed", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, h := range hits {
		results = append(results, SearchResult{
			ID:      h.ID,
			Score:   0,
			Type:    resultTypeExtraction,
			Content: categoryRecord(h.Payload),
			Source:  cache.attribution(stringField(h.Payload, "source_id"), stringField(h.Payload, "chunk_id"), nil),
		})
	}

	queryLabel := topic
	if queryLabel == "" {
		queryLabel = "all"
	}
	return Response{
		Results: results,
		Metadata: Metadata{
			Query:        queryLabel,
			SourcesCited: citedSources(results),
			ResultCount:  len(results),
			SearchType:   "filtered",
		},
	}, nil
}

// categoryRecord maps a vector-store payload to its public record shape,
// filling in "name" from fallbackTitle (extraction_title and the other
// title-like fields) when the payload has no "name" field (spec.md §4.12).
func categoryRecord(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	if _, ok := out["name"]; !ok {
		if title := fallbackTitle(payload); title != "" {
			out["name"] = title
		}
	}
	return out
}
