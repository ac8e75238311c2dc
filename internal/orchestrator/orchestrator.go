// Package orchestrator drives extraction at the chapter, section, and
// chunk levels of a source's hierarchy, routing each category to its
// fixed level, packing context under a token budget, invoking the
// registered extractors, and handing successful results to storage.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"knowledgeforge/internal/apperr"
	"knowledgeforge/internal/combiner"
	"knowledgeforge/internal/extractionstore"
	"knowledgeforge/internal/extractors"
	"knowledgeforge/internal/hierarchy"
	"knowledgeforge/internal/models"
)

const (
	chapterBudget = 8192
	sectionBudget = 4096
)

var (
	chapterCategories = []models.Category{models.CategoryMethodology, models.CategoryWorkflow}
	sectionCategories = []models.Category{models.CategoryDecision, models.CategoryPattern, models.CategoryChecklist, models.CategoryPersona}
	chunkCategories   = []models.Category{models.CategoryWarning}
)

// DocStore is the subset of the document store client the orchestrator
// needs to drive one source's extraction.
type DocStore interface {
	GetSource(ctx context.Context, sourceID string) (*models.Source, error)
	ListChunks(ctx context.Context, sourceID string) ([]models.Chunk, error)
}

// Storage is the subset of Extraction Storage the orchestrator calls,
// plus the connect/close pair implementing the state machine from
// spec.md §4.8: disconnected -> connected -> disconnected.
type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	SaveExtraction(ctx context.Context, ext *models.Extraction, snapshot extractionstore.SourceSnapshot) (extractionstore.SaveResult, error)
}

// Registry is the subset of the extractor registry the orchestrator needs.
type Registry interface {
	ForCategories(categories ...models.Category) []extractors.Extractor
}

// Metrics mirrors the teacher's small metrics seam: IncCounter and
// ObserveHistogram, no-op by default.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

type noopMetrics struct{}

func (noopMetrics) IncCounter(string, map[string]string)            {}
func (noopMetrics) ObserveHistogram(string, float64, map[string]string) {}

// LevelStats aggregates one level's processing for the run summary.
type LevelStats struct {
	ContextsProcessed int
	Attempts          int
	Successes         int
	Failures          int
	TotalTokens        int
}

// StorageCounts aggregates save_extraction outcomes across all levels.
type StorageCounts struct {
	Saved  int
	Failed int
}

// Summary is the orchestrator's return value for one source.
type Summary struct {
	SourceID string
	PerLevel map[models.ContextLevel]*LevelStats
	Storage  StorageCounts
}

func newSummary(sourceID string) Summary {
	return Summary{
		SourceID: sourceID,
		PerLevel: map[models.ContextLevel]*LevelStats{
			models.LevelChapter: {},
			models.LevelSection: {},
			models.LevelChunk:   {},
		},
	}
}

type connState int

const (
	stateDisconnected connState = iota
	stateConnected
)

// Orchestrator is the Hierarchical Orchestrator component.
type Orchestrator struct {
	docs        DocStore
	storage     Storage
	registry    Registry
	log         zerolog.Logger
	metrics     Metrics
	concurrency int64

	mu    sync.Mutex
	state connState
}

// Option configures an Orchestrator at construction time.
type Option func(*Orchestrator)

// WithMetrics overrides the no-op metrics sink.
func WithMetrics(m Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithConcurrency bounds how many hierarchy contexts within one level may
// be extracted from concurrently (default 1: sequential, one context at a
// time, per spec.md §5's default). Values > 1 fan out behind a semaphore.
func WithConcurrency(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// New builds an Orchestrator.
func New(docs DocStore, storage Storage, registry Registry, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		docs:        docs,
		storage:     storage,
		registry:    registry,
		log:         log,
		metrics:     noopMetrics{},
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Connect transitions the storage adapter disconnected -> connected. It is
// idempotent: calling it twice is a no-op.
func (o *Orchestrator) Connect(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == stateConnected {
		return nil
	}
	if err := o.storage.Connect(ctx); err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "connect extraction storage", err)
	}
	o.state = stateConnected
	return nil
}

// Close transitions connected -> disconnected, for callers that want
// deterministic teardown (the context-manager-style entry/exit pair from
// spec.md §4.8).
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == stateDisconnected {
		return nil
	}
	if err := o.storage.Close(ctx); err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "close extraction storage", err)
	}
	o.state = stateDisconnected
	return nil
}

// ExtractSource runs the full algorithm from spec.md §4.8 for one source,
// auto-connecting storage if it has not been connected yet.
func (o *Orchestrator) ExtractSource(ctx context.Context, sourceID string) (Summary, error) {
	if err := o.Connect(ctx); err != nil {
		return Summary{}, err
	}

	source, err := o.docs.GetSource(ctx, sourceID)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.CodeNotFound, fmt.Sprintf("source %q not found", sourceID), err)
	}

	chunks, err := o.docs.ListChunks(ctx, sourceID)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.CodeStorageError, "list chunks", err)
	}

	tree := hierarchy.Build(sourceID, chunks)
	snapshot := extractionstore.SourceSnapshot{
		Title:    source.Title,
		Type:     string(source.Type),
		Category: source.Category,
		Year:     source.Year,
	}

	summary := newSummary(sourceID)

	chapterCtxs := make([]levelContext, 0, len(tree.ChapterBuckets()))
	for _, chapter := range tree.ChapterBuckets() {
		if chunks := chapter.ChapterChunks(); len(chunks) > 0 {
			chapterCtxs = append(chapterCtxs, levelContext{id: chapter.ID, chunks: chunks})
		}
	}
	if err := o.runLevel(ctx, chapterCtxs, models.LevelChapter, chapterBudget, chapterCategories, sourceID, snapshot, &summary); err != nil {
		return summary, err
	}

	var sectionCtxs []levelContext
	for _, chapter := range tree.ChapterBuckets() {
		for _, section := range chapter.SectionBuckets() {
			if len(section.Chunks) > 0 {
				sectionCtxs = append(sectionCtxs, levelContext{id: section.ID, chunks: section.Chunks})
			}
		}
	}
	if err := o.runLevel(ctx, sectionCtxs, models.LevelSection, sectionBudget, sectionCategories, sourceID, snapshot, &summary); err != nil {
		return summary, err
	}

	var chunkCtxs []levelContext
	for _, c := range tree.AllChunks() {
		chunkCtxs = append(chunkCtxs, levelContext{id: c.ID, chunks: []models.Chunk{c}})
	}
	if err := o.runLevel(ctx, chunkCtxs, models.LevelChunk, 0, chunkCategories, sourceID, snapshot, &summary); err != nil {
		return summary, err
	}

	return summary, nil
}

type levelContext struct {
	id     string
	chunks []models.Chunk
}

// runLevel fans out across contexts bounded by o.concurrency (1 by
// default: sequential). Within one context, extractors run one at a time.
// Failures in one extractor or one context do not stop the others.
func (o *Orchestrator) runLevel(ctx context.Context, contexts []levelContext, level models.ContextLevel, budget int, categories []models.Category, sourceID string, snapshot extractionstore.SourceSnapshot, summary *Summary) error {
	levelExtractors := o.registry.ForCategories(categories...)
	if len(levelExtractors) == 0 || len(contexts) == 0 {
		return nil
	}
	stats := summary.PerLevel[level]

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(o.concurrency)
	var mu sync.Mutex

	for _, lc := range contexts {
		lc := lc
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			o.processContext(gctx, lc, level, budget, levelExtractors, sourceID, snapshot, stats, &mu, &summary.Storage)
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) processContext(ctx context.Context, lc levelContext, level models.ContextLevel, budget int, levelExtractors []extractors.Extractor, sourceID string, snapshot extractionstore.SourceSnapshot, stats *LevelStats, mu *sync.Mutex, storageCounts *StorageCounts) {
	var content string
	var chunkIDs []string
	var tokens int

	if level == models.LevelChunk {
		c := lc.chunks[0]
		content = c.Content
		chunkIDs = []string{c.ID}
		tokens = c.TokenCount
	} else {
		combined, err := combiner.Combine(lc.chunks, budget, combiner.StrategyTruncate)
		if err != nil {
			o.log.Error().Err(err).Str("context_id", lc.id).Msg("orchestrator: combiner failed")
			return
		}
		content = combined.Content
		chunkIDs = combined.ChunkIDs
		tokens = combined.Tokens
	}

	mu.Lock()
	stats.ContextsProcessed++
	stats.TotalTokens += tokens
	mu.Unlock()

	start := time.Now()
	for _, extractor := range levelExtractors {
		results := extractor.Extract(ctx, content, sourceID, level, lc.id, chunkIDs)
		for _, r := range results {
			mu.Lock()
			stats.Attempts++
			mu.Unlock()

			if !r.Success {
				mu.Lock()
				stats.Failures++
				mu.Unlock()
				o.log.Warn().Str("context_id", lc.id).Str("category", string(extractor.ExtractionType())).Str("error", r.Error).Msg("orchestrator: extraction failed")
				continue
			}

			mu.Lock()
			stats.Successes++
			mu.Unlock()

			if _, err := o.storage.SaveExtraction(ctx, r.Extraction, snapshot); err != nil {
				mu.Lock()
				storageCounts.Failed++
				mu.Unlock()
				o.log.Error().Err(err).Str("context_id", lc.id).Msg("orchestrator: save_extraction failed")
				continue
			}
			mu.Lock()
			storageCounts.Saved++
			mu.Unlock()
		}
	}
	o.metrics.ObserveHistogram("orchestrator_context_ms", float64(time.Since(start).Milliseconds()), map[string]string{"level": string(level)})
}
