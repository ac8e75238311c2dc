package combiner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/models"
)

func TestCombineNoneIncludesEverythingRegardlessOfBudget(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "a", Content: strings.Repeat("word ", 100)},
		{ID: "b", Content: strings.Repeat("word ", 100)},
	}
	res, err := Combine(chunks, 10, StrategyNone)
	require.NoError(t, err)
	assert.False(t, res.Truncated)
	assert.ElementsMatch(t, []string{"a", "b"}, res.ChunkIDs)
}

func TestCombineTruncateGreedyInclusion(t *testing.T) {
	chunks := []models.Chunk{
		{ID: "a", Content: "one two three"},
		{ID: "b", Content: "four five six"},
		{ID: "c", Content: "seven eight nine"},
	}
	res, err := Combine(chunks, 6, StrategyTruncate)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.ChunkIDs)
	assert.True(t, res.Truncated)
}

func TestCombineTruncateFirstChunkExceedsBudget(t *testing.T) {
	big := strings.Repeat("word ", 1000)
	chunks := []models.Chunk{
		{ID: "big", Content: big},
		{ID: "small", Content: "tiny"},
	}
	res, err := Combine(chunks, 10, StrategyTruncate)
	require.NoError(t, err)
	assert.Equal(t, []string{"big"}, res.ChunkIDs)
	assert.True(t, res.Truncated)
	assert.Less(t, len(res.Content), len(big))
}

func TestCombineSummaryIfExceededBehavesAsTruncate(t *testing.T) {
	big := strings.Repeat("word ", 1000)
	chunks := []models.Chunk{{ID: "big", Content: big}}
	res, err := Combine(chunks, 10, StrategySummaryIfExceeded)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
}

func TestCombineUnknownStrategyPanics(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Combine(nil, 10, Strategy("bogus"))
	})
}
