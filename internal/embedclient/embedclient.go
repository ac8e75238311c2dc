// Package embedclient implements the embedding contract from spec.md §6:
// embed_document and embed_query, each with a distinct instruction prefix,
// both returning 768-dimension vectors.
package embedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"knowledgeforge/internal/apperr"
)

const (
	documentPrefix = "passage: "
	queryPrefix    = "query: "
	dimension      = 768
)

// Client is the embedding contract's HTTP-backed implementation.
type Client struct {
	baseURL string
	model   string
	http    *http.Client
	timeout time.Duration
}

// New builds a Client pointed at an OpenAI-embeddings-shaped endpoint.
func New(baseURL, model string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: baseURL, model: model, http: httpClient, timeout: timeout}
}

// EmbedDocument embeds text for storage, using the document-side instruction prefix.
func (c *Client) EmbedDocument(ctx context.Context, text string) ([]float32, error) {
	return c.embedOne(ctx, documentPrefix+text)
}

// EmbedQuery embeds text for a search request, using the query-side instruction prefix.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embedOne(ctx, queryPrefix+text)
}

// Dimension reports the fixed embedding dimensionality this contract requires.
func (c *Client) Dimension() int { return dimension }

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *Client) embedOne(ctx context.Context, input string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: []string{input}})
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "marshal embedding request", err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInternal, "build embedding request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeAPIError, "embedding request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeAPIError, "read embedding response", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, apperr.New(apperr.CodeAPIError, fmt.Sprintf("embedding service returned %s: %s", resp.Status, string(raw)))
	}

	var parsed embedResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperr.Wrap(apperr.CodeAPIError, "parse embedding response", err)
	}
	if len(parsed.Data) != 1 {
		return nil, apperr.New(apperr.CodeAPIError, fmt.Sprintf("expected 1 embedding, got %d", len(parsed.Data)))
	}
	vector := parsed.Data[0].Embedding
	if len(vector) != dimension {
		return nil, apperr.New(apperr.CodeValidation, fmt.Sprintf("embedding vector has %d dims, expected %d", len(vector), dimension))
	}
	return vector, nil
}
