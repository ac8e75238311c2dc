package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/config"
	"knowledgeforge/internal/models"
	"knowledgeforge/internal/query"
	"knowledgeforge/internal/ratelimit"
	"knowledgeforge/internal/vectorstore"
)

type fakeDocs struct{}

func (fakeDocs) GetExtraction(ctx context.Context, id string) (*models.Extraction, error) {
	return nil, nil
}
func (fakeDocs) GetChunk(ctx context.Context, id string) (*models.Chunk, error) { return nil, nil }
func (fakeDocs) ListSourcesByIDs(ctx context.Context, ids []string) ([]*models.Source, error) {
	return nil, nil
}

type fakeVectors struct{}

func (fakeVectors) SearchChunks(ctx context.Context, projectID string, vector []float32, limit int, filters vectorstore.Filters) ([]vectorstore.Hit, error) {
	return nil, nil
}
func (fakeVectors) SearchExtractions(ctx context.Context, projectID string, vector []float32, limit int, filters vectorstore.Filters) ([]vectorstore.Hit, error) {
	return nil, nil
}
func (fakeVectors) ListExtractions(ctx context.Context, projectID string, extractionType models.Category, limit int, topic string) ([]vectorstore.Hit, error) {
	return nil, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 768), nil
}

type fakeHealth struct{ err error }

func (f fakeHealth) HealthCheck(ctx context.Context) error { return f.err }

const testKey = "kp_00000000000000000000000000000001"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	svc := query.New(fakeDocs{}, fakeVectors{}, fakeEmbedder{}, "proj1")
	registry := ratelimit.NewRegistry(map[string]ratelimit.Tier{testKey: ratelimit.TierRegistered})
	tiers := config.RateLimitTiers{Public: 2, Registered: 1000, Premium: 999_999}
	return New(svc, registry, tiers, fakeHealth{}, zerolog.Nop())
}

func doRequest(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	svc := query.New(fakeDocs{}, fakeVectors{}, fakeEmbedder{}, "proj1")
	registry := ratelimit.NewRegistry(nil)
	tiers := config.RateLimitTiers{Public: 100, Registered: 1000, Premium: 999_999}
	s := New(svc, registry, tiers, fakeHealth{err: context.DeadlineExceeded}, zerolog.Nop())
	rec := doRequest(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearchKnowledgeHappyPath(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"query": "deploy process", "limit": 5})
	req := httptest.NewRequest(http.MethodPost, "/search_knowledge", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp query.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "semantic", resp.Metadata.SearchType)
}

func TestSearchKnowledgeValidationError(t *testing.T) {
	s := newTestServer(t)
	body, _ := json.Marshal(map[string]any{"query": "", "limit": 5})
	req := httptest.NewRequest(http.MethodPost, "/search_knowledge", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := doRequest(s, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope errorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestGetMethodologiesRejectsPublicTier(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/get_methodologies", nil)
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetMethodologiesAllowsRegisteredTier(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/get_methodologies", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetDecisionsAllowsPublicTier(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/get_decisions", nil)
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnrecognizedAPIKeyIsUnauthorized(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/get_decisions", nil)
	req.Header.Set("X-API-Key", "kp_deadbeefdeadbeefdeadbeefdeadbeef")
	rec := doRequest(s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitExceededReturns429WithHeaders(t *testing.T) {
	s := newTestServer(t)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = doRequest(s, httptest.NewRequest(http.MethodGet, "/get_decisions", nil))
	}
	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.NotEmpty(t, last.Header().Get("Retry-After"))
	assert.Equal(t, "0", last.Header().Get("X-RateLimit-Remaining"))
}
