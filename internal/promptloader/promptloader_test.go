package promptloader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowledgeforge/internal/models"
)

func writePrompt(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestComposeJoinsPreambleAndCategory(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "preamble.txt", "You extract structured knowledge.")
	writePrompt(t, dir, "decision.txt", "Extract decisions as a JSON array.")

	loader := New(dir)
	prompt, err := loader.Compose(models.CategoryDecision)
	require.NoError(t, err)
	assert.Equal(t, "You extract structured knowledge.\nExtract decisions as a JSON array.", prompt)
}

func TestComposeMissingPreambleFailsLoudly(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "decision.txt", "body")

	_, err := New(dir).Compose(models.CategoryDecision)
	assert.ErrorContains(t, err, "preamble")
}

func TestComposeMissingCategoryFailsLoudly(t *testing.T) {
	dir := t.TempDir()
	writePrompt(t, dir, "preamble.txt", "preamble")

	_, err := New(dir).Compose(models.CategoryWarning)
	assert.ErrorContains(t, err, "warning")
}
