// Package extractors implements the seven category extractors and the
// registry that routes a category tag to its extractor instance.
package extractors

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"knowledgeforge/internal/llmgateway"
	"knowledgeforge/internal/models"
	"knowledgeforge/internal/promptloader"
)

// Result is the outcome of extracting zero or one record from one LLM
// response element. Gateway and parse failures surface as a single failed
// Result rather than propagating, per spec.md §7.
type Result struct {
	Success    bool
	Extraction *models.Extraction
	Error      string
}

// Config holds the per-extractor defaults from spec.md §4.7.
type Config struct {
	MaxExtractionsPerChunk int
	MinConfidence          float64
	AutoTagTopics          bool
	IncludeContext         bool
}

// DefaultConfig returns the spec-mandated defaults.
func DefaultConfig() Config {
	return Config{
		MaxExtractionsPerChunk: 5,
		MinConfidence:          0.5,
		AutoTagTopics:          true,
		IncludeContext:         true,
	}
}

// Extractor is the interface each of the seven category extractors
// satisfies.
type Extractor interface {
	ExtractionType() models.Category
	GetPrompt() (string, error)
	Extract(ctx context.Context, content, sourceID string, level models.ContextLevel, contextID string, chunkIDs []string) []Result
}

// CategoryExtractor implements the shared protocol from spec.md §4.7 for
// exactly one category; only the category tag and its prompt file differ
// between the seven registered instances.
type CategoryExtractor struct {
	category models.Category
	prompts  *promptloader.Loader
	gateway  llmgateway.Client
	cfg      Config
	log      zerolog.Logger
}

// New builds a CategoryExtractor for category.
func New(category models.Category, prompts *promptloader.Loader, gateway llmgateway.Client, cfg Config, log zerolog.Logger) *CategoryExtractor {
	return &CategoryExtractor{category: category, prompts: prompts, gateway: gateway, cfg: cfg, log: log}
}

func (e *CategoryExtractor) ExtractionType() models.Category { return e.category }

func (e *CategoryExtractor) GetPrompt() (string, error) {
	return e.prompts.Compose(e.category)
}

// Extract drives the four-step protocol from spec.md §4.7: call the
// gateway, parse the response, validate each element, and auto-tag topics.
func (e *CategoryExtractor) Extract(ctx context.Context, content, sourceID string, level models.ContextLevel, contextID string, chunkIDs []string) []Result {
	prompt, err := e.GetPrompt()
	if err != nil {
		return []Result{{Success: false, Error: fmt.Sprintf("Extraction failed: %v", err)}}
	}

	text, err := e.gateway.Extract(ctx, prompt, content)
	if err != nil {
		return []Result{{Success: false, Error: fmt.Sprintf("Extraction failed: %v", err)}}
	}

	items, err := parseJSONItems(text)
	if err != nil {
		return []Result{{Success: false, Error: fmt.Sprintf("extraction parse error: %v", err)}}
	}

	results := make([]Result, 0, len(items))
	for i, raw := range items {
		if e.cfg.MaxExtractionsPerChunk > 0 && i >= e.cfg.MaxExtractionsPerChunk {
			break
		}
		merged, err := ensureType(raw, e.category)
		if err != nil {
			results = append(results, Result{Success: false, Error: err.Error()})
			continue
		}
		ext, err := models.ParseExtraction(merged)
		if err != nil {
			results = append(results, Result{Success: false, Error: err.Error()})
			continue
		}
		if ext.Confidence < e.cfg.MinConfidence {
			results = append(results, Result{Success: false, Error: fmt.Sprintf("confidence %.2f below minimum %.2f", ext.Confidence, e.cfg.MinConfidence)})
			continue
		}

		ext.SourceID = sourceID
		if len(chunkIDs) > 0 {
			ext.ChunkID = chunkIDs[0]
		} else {
			ext.ChunkID = syntheticSentinel(sourceID, contextID)
		}
		ext.ContextLevel = level
		ext.ContextID = contextID
		ext.ChunkIDs = chunkIDs
		ext.SchemaVersion = models.SchemaVersion
		ext.ExtractedAt = time.Now().UTC()

		if e.cfg.AutoTagTopics {
			ext.Topics = Tag(content, ext.Content)
		}

		results = append(results, Result{Success: true, Extraction: ext})
	}

	if len(results) == 0 {
		return []Result{{Success: false, Error: "extraction parse error: no items produced"}}
	}
	return results
}

func syntheticSentinel(sourceID, contextID string) string {
	return "sentinel_" + sourceID + "_" + contextID
}
