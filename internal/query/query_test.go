package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
	"knowledgeforge/internal/vectorstore"
)

type fakeDocs struct {
	extractions map[string]*models.Extraction
	chunks      map[string]*models.Chunk
	sources     map[string]*models.Source
}

func (f *fakeDocs) GetExtraction(ctx context.Context, id string) (*models.Extraction, error) {
	if ext, ok := f.extractions[id]; ok {
		return ext, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "not found")
}

func (f *fakeDocs) GetChunk(ctx context.Context, id string) (*models.Chunk, error) {
	if c, ok := f.chunks[id]; ok {
		return c, nil
	}
	return nil, apperr.New(apperr.CodeNotFound, "not found")
}

func (f *fakeDocs) ListSourcesByIDs(ctx context.Context, ids []string) ([]*models.Source, error) {
	var out []*models.Source
	for _, id := range ids {
		if src, ok := f.sources[id]; ok {
			out = append(out, src)
		}
	}
	return out, nil
}

type fakeVectors struct {
	chunkHits []vectorstore.Hit
	extHits   []vectorstore.Hit
	listHits  []vectorstore.Hit
}

func (f *fakeVectors) SearchChunks(ctx context.Context, projectID string, vector []float32, limit int, filters vectorstore.Filters) ([]vectorstore.Hit, error) {
	return f.chunkHits, nil
}

func (f *fakeVectors) SearchExtractions(ctx context.Context, projectID string, vector []float32, limit int, filters vectorstore.Filters) ([]vectorstore.Hit, error) {
	return f.extHits, nil
}

func (f *fakeVectors) ListExtractions(ctx context.Context, projectID string, extractionType models.Category, limit int, topic string) ([]vectorstore.Hit, error) {
	return f.listHits, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 768), nil
}

func TestSemanticSearchMergesAndSortsByScore(t *testing.T) {
	docs := &fakeDocs{
		chunks:  map[string]*models.Chunk{"c1": {ID: "c1", SourceID: "s1", Content: "chunk text"}},
		sources: map[string]*models.Source{"s1": {ID: "s1", Title: "Book One"}},
	}
	vectors := &fakeVectors{
		chunkHits: []vectorstore.Hit{{ID: "c1", Score: 0.5, Payload: map[string]any{"source_id": "s1"}}},
		extHits:   []vectorstore.Hit{{ID: "e1", Score: 0.9, Payload: map[string]any{"source_id": "s1"}}},
	}
	svc := New(docs, vectors, fakeEmbedder{}, "proj1")
	svc.now = func() time.Time { return time.Unix(0, 0) }

	resp, err := svc.SemanticSearch(context.Background(), "how do I deploy", 10)
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "e1", resp.Results[0].ID)
	assert.Equal(t, "c1", resp.Results[1].ID)
	assert.Equal(t, []string{"Book One"}, resp.Metadata.SourcesCited)
	assert.Equal(t, "semantic", resp.Metadata.SearchType)
}

func TestSemanticSearchRejectsEmptyQuery(t *testing.T) {
	svc := New(&fakeDocs{}, &fakeVectors{}, fakeEmbedder{}, "proj1")
	_, err := svc.SemanticSearch(context.Background(), "", 10)
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidation, typed.Code)
}

func TestSemanticSearchRejectsOutOfRangeLimit(t *testing.T) {
	svc := New(&fakeDocs{}, &fakeVectors{}, fakeEmbedder{}, "proj1")
	_, err := svc.SemanticSearch(context.Background(), "q", 0)
	require.Error(t, err)

	_, err = svc.SemanticSearch(context.Background(), "q", 101)
	require.Error(t, err)
}

func TestSemanticSearchCapsAtLimit(t *testing.T) {
	hits := []vectorstore.Hit{
		{ID: "e1", Score: 0.9, Payload: map[string]any{"source_id": "s1"}},
		{ID: "e2", Score: 0.8, Payload: map[string]any{"source_id": "s1"}},
	}
	svc := New(&fakeDocs{}, &fakeVectors{extHits: hits}, fakeEmbedder{}, "proj1")
	resp, err := svc.SemanticSearch(context.Background(), "q", 1)
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1)
	assert.Equal(t, "e1", resp.Results[0].ID)
}

func TestGetCategoryUsesFallbackTitleWhenNameMissing(t *testing.T) {
	hits := []vectorstore.Hit{
		{ID: "e1", Payload: map[string]any{"extraction_title": "Fallback name", "source_id": "s1"}},
	}
	svc := New(&fakeDocs{}, &fakeVectors{listHits: hits}, fakeEmbedder{}, "proj1")
	resp, err := svc.GetCategory(context.Background(), models.CategoryDecision, "", 100)
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	record, ok := resp.Results[0].Content.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Fallback name", record["name"])
	assert.Equal(t, "all", resp.Metadata.Query)
	assert.Equal(t, "filtered", resp.Metadata.SearchType)
}

func TestGetCategoryRejectsOutOfRangeLimit(t *testing.T) {
	svc := New(&fakeDocs{}, &fakeVectors{}, fakeEmbedder{}, "proj1")
	_, err := svc.GetCategory(context.Background(), models.CategoryDecision, "", 501)
	require.Error(t, err)
}
