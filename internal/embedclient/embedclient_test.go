package embedclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/apperr"
)

func vector768() []float32 {
	return make([]float32, 768)
}

func serverWithEmbedding(t *testing.T, vector []float32, capturedInput *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if capturedInput != nil {
			*capturedInput = req.Input[0]
		}
		resp := embedResponse{Data: []struct {
			Embedding []float32 `json:"embedding"`
		}{{Embedding: vector}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestEmbedDocumentUsesDocumentPrefix(t *testing.T) {
	var captured string
	ts := serverWithEmbedding(t, vector768(), &captured)
	defer ts.Close()

	c := New(ts.URL, "m", http.DefaultClient, time.Second)
	vec, err := c.EmbedDocument(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Len(t, vec, 768)
	assert.True(t, strings.HasPrefix(captured, documentPrefix))
}

func TestEmbedQueryUsesQueryPrefix(t *testing.T) {
	var captured string
	ts := serverWithEmbedding(t, vector768(), &captured)
	defer ts.Close()

	c := New(ts.URL, "m", http.DefaultClient, time.Second)
	_, err := c.EmbedQuery(context.Background(), "hello world")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(captured, queryPrefix))
}

func TestEmbedRejectsWrongDimension(t *testing.T) {
	ts := serverWithEmbedding(t, []float32{0.1, 0.2}, nil)
	defer ts.Close()

	c := New(ts.URL, "m", http.DefaultClient, time.Second)
	_, err := c.EmbedDocument(context.Background(), "x")
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeValidation, typed.Code)
}

func TestEmbedPropagatesHTTPErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer ts.Close()

	c := New(ts.URL, "m", http.DefaultClient, time.Second)
	_, err := c.EmbedDocument(context.Background(), "x")
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeAPIError, typed.Code)
}
