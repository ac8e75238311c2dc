package extractors

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/models"
)

// Registry is a process-wide mapping from category tag to a single
// extractor instance. Registration is idempotent: the last writer wins
// with a warning log, matching the teacher's pattern for small,
// concurrently-read shared maps.
type Registry struct {
	mu         sync.RWMutex
	extractors map[models.Category]Extractor
	log        zerolog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry(log zerolog.Logger) *Registry {
	return &Registry{extractors: make(map[models.Category]Extractor), log: log}
}

// Register installs e under its own ExtractionType(). Re-registering the
// same category replaces the prior instance and logs a warning.
func (r *Registry) Register(e Extractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	category := e.ExtractionType()
	if _, exists := r.extractors[category]; exists {
		r.log.Warn().Str("category", string(category)).Msg("extractor registry: overwriting existing registration")
	}
	r.extractors[category] = e
}

// Lookup returns the extractor registered for category, or a typed
// UNSUPPORTED_EXTRACTION_TYPE error if none was registered.
func (r *Registry) Lookup(category models.Category) (Extractor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.extractors[category]
	if !ok {
		return nil, apperr.New(apperr.CodeUnsupportedType, fmt.Sprintf("no extractor registered for category %q", category))
	}
	return e, nil
}

// All returns every registered extractor, in the fixed category order from
// models.Categories (skipping any category with no registration).
func (r *Registry) All() []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []Extractor
	for _, category := range models.Categories {
		if e, ok := r.extractors[category]; ok {
			all = append(all, e)
		}
	}
	return all
}

// ForCategories returns the registered extractors matching categories, in
// that order, skipping any without a registration.
func (r *Registry) ForCategories(categories ...models.Category) []Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Extractor
	for _, category := range categories {
		if e, ok := r.extractors[category]; ok {
			out = append(out, e)
		}
	}
	return out
}
