package extractors

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
	"knowledgeforge/internal/promptloader"
)

type fakeGateway struct {
	text string
	err  error
}

func (f fakeGateway) Extract(ctx context.Context, prompt, content string) (string, error) {
	return f.text, f.err
}

func newTestLoader(t *testing.T) *promptloader.Loader {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "preamble.txt"), []byte("Extract structured knowledge."), 0o644))
	for _, c := range models.Categories {
		require.NoError(t, os.WriteFile(filepath.Join(dir, string(c)+".txt"), []byte("Extract "+string(c)+" records as JSON."), 0o644))
	}
	return promptloader.New(dir)
}

func TestExtractBareArraySuccess(t *testing.T) {
	gw := fakeGateway{text: `[{"question": "Which database?", "confidence": 0.9}]`}
	e := New(models.CategoryDecision, newTestLoader(t), gw, DefaultConfig(), zerolog.Nop())

	results := e.Extract(context.Background(), "content", "src1", models.LevelChunk, "ctx1", []string{"chunk1"})
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	assert.Equal(t, "chunk1", results[0].Extraction.ChunkID)
	assert.Equal(t, "src1", results[0].Extraction.SourceID)
	assert.Equal(t, models.SchemaVersion, results[0].Extraction.SchemaVersion)
}

func TestExtractBareObjectWrapped(t *testing.T) {
	gw := fakeGateway{text: `{"name": "Zero downtime deploys", "problem": "p", "solution": "s"}`}
	e := New(models.CategoryPattern, newTestLoader(t), gw, DefaultConfig(), zerolog.Nop())

	results := e.Extract(context.Background(), "content", "src1", models.LevelSection, "ctx1", []string{"c1", "c2"})
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestExtractFencedBlock(t *testing.T) {
	gw := fakeGateway{text: "Here you go:\n```json\n[{\"title\": \"Slow cold starts\", \"description\": \"d\"}]\n```"}
	e := New(models.CategoryWarning, newTestLoader(t), gw, DefaultConfig(), zerolog.Nop())

	results := e.Extract(context.Background(), "content", "src1", models.LevelChunk, "ctx1", []string{"c1"})
	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestExtractUnparseableTextYieldsParseError(t *testing.T) {
	gw := fakeGateway{text: "This is not valid JSON"}
	e := New(models.CategoryDecision, newTestLoader(t), gw, DefaultConfig(), zerolog.Nop())

	results := e.Extract(context.Background(), "content", "src1", models.LevelChunk, "ctx1", []string{"c1"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "parse")
}

func TestExtractGatewayFailurePropagatesAsFailedResult(t *testing.T) {
	gw := fakeGateway{err: apperr.New(apperr.CodeAPIError, "llm down")}
	e := New(models.CategoryDecision, newTestLoader(t), gw, DefaultConfig(), zerolog.Nop())

	results := e.Extract(context.Background(), "content", "src1", models.LevelChunk, "ctx1", []string{"c1"})
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Error, "Extraction failed")
}

func TestExtractValidationFailureYieldsFailedResultNotAborting(t *testing.T) {
	gw := fakeGateway{text: `[{"question": "ok"}, {"no_question_field": true}]`}
	e := New(models.CategoryDecision, newTestLoader(t), gw, DefaultConfig(), zerolog.Nop())

	results := e.Extract(context.Background(), "content", "src1", models.LevelChunk, "ctx1", []string{"c1"})
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)
}

func TestExtractSyntheticSentinelWhenNoChunkIDs(t *testing.T) {
	gw := fakeGateway{text: `[{"question": "ok?"}]`}
	e := New(models.CategoryDecision, newTestLoader(t), gw, DefaultConfig(), zerolog.Nop())

	results := e.Extract(context.Background(), "content", "src1", models.LevelChapter, "ctx1", nil)
	require.Len(t, results, 1)
	require.True(t, results[0].Success)
	assert.Equal(t, "sentinel_src1_ctx1", results[0].Extraction.ChunkID)
}

func TestRegistryLookupUnsupported(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	_, err := reg.Lookup(models.CategoryDecision)
	require.Error(t, err)
	typed, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeUnsupportedType, typed.Code)
}

func TestRegistryRegisterIdempotentLastWriterWins(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())
	loader := newTestLoader(t)
	first := New(models.CategoryDecision, loader, fakeGateway{text: "first"}, DefaultConfig(), zerolog.Nop())
	second := New(models.CategoryDecision, loader, fakeGateway{text: "second"}, DefaultConfig(), zerolog.Nop())

	reg.Register(first)
	reg.Register(second)

	got, err := reg.Lookup(models.CategoryDecision)
	require.NoError(t, err)
	assert.Same(t, second, got)
}

func TestTagCapsAtFiveAndPreservesOrder(t *testing.T) {
	content := "This uses rag, embeddings, llm, fine-tuning, deployment, evaluation and agents."
	tags := Tag(content, nil)
	assert.Len(t, tags, 5)
	assert.Equal(t, []string{"rag", "embeddings", "llm", "fine-tuning", "deployment"}, tags)
}
