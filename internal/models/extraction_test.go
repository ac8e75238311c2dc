package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtractionDecision(t *testing.T) {
	raw := []byte(`{
		"source_id": "507f1f77bcf86cd799439011",
		"chunk_id": "507f1f77bcf86cd799439012",
		"type": "decision",
		"question": "Which database?",
		"recommended_approach": "Postgres",
		"confidence": 0.9
	}`)
	ext, err := ParseExtraction(raw)
	require.NoError(t, err)
	assert.Equal(t, CategoryDecision, ext.Type)
	assert.Equal(t, "Which database?", ext.Content["question"])
	assert.Equal(t, SchemaVersion, ext.SchemaVersion)
	assert.Equal(t, LevelChunk, ext.ContextLevel)
	assert.Equal(t, []string{"507f1f77bcf86cd799439012"}, ext.ChunkIDs)
}

func TestParseExtractionRejectsCategoryContentMismatch(t *testing.T) {
	raw := []byte(`{"type": "decision", "title": "x", "description": "y"}`)
	_, err := ParseExtraction(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question")
}

func TestParseExtractionRejectsOutOfRangeConfidence(t *testing.T) {
	raw := []byte(`{"type": "decision", "question": "q?", "confidence": 1.5}`)
	_, err := ParseExtraction(raw)
	assert.Error(t, err)
}

func TestParseExtractionUnknownFieldsPreserved(t *testing.T) {
	raw := []byte(`{"type": "pattern", "name": "n", "problem": "p", "solution": "s", "extra_field": "kept"}`)
	ext, err := ParseExtraction(raw)
	require.NoError(t, err)
	assert.Equal(t, "kept", ext.Content["extra_field"])
}

func TestParseExtractionUnknownType(t *testing.T) {
	raw := []byte(`{"type": "nonsense"}`)
	_, err := ParseExtraction(raw)
	assert.Error(t, err)
}

func TestValidateMethodologySteps(t *testing.T) {
	content := map[string]any{
		"name": "Rollout",
		"steps": []any{
			map[string]any{"order": float64(1), "title": "Plan"},
		},
	}
	err := ValidateContent(CategoryMethodology, content)
	assert.ErrorContains(t, err, "description")
}

func TestValidateChecklistItems(t *testing.T) {
	content := map[string]any{
		"name":  "Pre-deploy",
		"items": []any{map[string]any{}},
	}
	err := ValidateContent(CategoryChecklist, content)
	assert.ErrorContains(t, err, "item")
}
