// Package promptloader composes the full LLM prompt for a category from a
// shared preamble file plus a per-category prompt file on disk.
package promptloader

import (
	"fmt"
	"os"
	"path/filepath"

	"knowledgeforge/internal/models"
)

// Loader has no runtime state beyond the directory it reads from.
type Loader struct {
	baseDir string
}

// New returns a Loader rooted at baseDir. It performs no I/O itself; a
// missing baseDir only surfaces an error once a prompt is requested.
func New(baseDir string) *Loader {
	return &Loader{baseDir: baseDir}
}

// Compose reads preamble.txt and "<category>.txt" from the base directory
// and returns "preamble + \n + category_specific". It fails loudly if
// either file is absent.
func (l *Loader) Compose(category models.Category) (string, error) {
	preamble, err := l.read("preamble.txt")
	if err != nil {
		return "", fmt.Errorf("load shared preamble: %w", err)
	}
	categorySpecific, err := l.read(string(category) + ".txt")
	if err != nil {
		return "", fmt.Errorf("load prompt for category %q: %w", category, err)
	}
	return preamble + "\n" + categorySpecific, nil
}

func (l *Loader) read(name string) (string, error) {
	path := filepath.Join(l.baseDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}
