// Command knowledge-pipeline drives the extraction pipeline: ingest a
// pre-chunked source into the document and vector stores, then run the
// hierarchical orchestrator over it (spec.md §4.1-§4.10).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"knowledgeforge/internal/config"
	"knowledgeforge/internal/docstore"
	"knowledgeforge/internal/embedclient"
	"knowledgeforge/internal/extractionstore"
	"knowledgeforge/internal/extractors"
	"knowledgeforge/internal/llmgateway"
	"knowledgeforge/internal/logging"
	"knowledgeforge/internal/metrics"
	"knowledgeforge/internal/models"
	"knowledgeforge/internal/orchestrator"
	"knowledgeforge/internal/promptloader"
	"knowledgeforge/internal/vectorstore"
	"knowledgeforge/internal/version"
)

// manifest is the ingestion side's input shape: one source plus its
// pre-chunked content. Chunking itself happens upstream; this pipeline
// never re-parses source files (spec.md Non-goals).
type manifest struct {
	Source models.Source  `json:"source"`
	Chunks []models.Chunk `json:"chunks"`
}

func main() {
	var (
		configPath   = flag.String("config", "config.yaml", "path to config.yaml")
		ingestPath   = flag.String("ingest", "", "path to a manifest JSON file to ingest before extracting")
		sourceID     = flag.String("source-id", "", "source id to extract (required unless -ingest provides one)")
		extractOnly  = flag.Bool("extract-only", false, "skip ingestion, only run extraction for -source-id")
		reembed      = flag.Bool("reembed", false, "re-embed every stored extraction in the project namespace and exit")
		shutdownWait = flag.Duration("shutdown-wait", 10*time.Second, "grace period for in-flight work on SIGINT/SIGTERM")
		showVersion  = flag.Bool("version", false, "print the build version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Println("knowledge-pipeline " + version.Version)
		os.Exit(0)
	}

	if err := run(*configPath, *ingestPath, *sourceID, *extractOnly, *reembed, *shutdownWait); err != nil {
		log.Fatal().Err(err).Msg("knowledge-pipeline")
	}
}

func run(configPath, ingestPath, sourceID string, extractOnly, reembed bool, shutdownWait time.Duration) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownMeter := metrics.InitMeterProvider()
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), shutdownWait)
		defer shutCancel()
		_ = shutdownMeter(shutCtx)
	}()

	base := logging.Init()
	ctx = logging.WithLogger(ctx, base)

	docs, err := docstore.Connect(ctx, cfg.MongoDBURI, cfg.MongoDBDatabase, cfg.ProjectID,
		time.Duration(cfg.ConnectionTimeoutMS)*time.Millisecond, uint64(cfg.MaxPoolSize), base)
	if err != nil {
		return fmt.Errorf("connect document store: %w", err)
	}
	defer docs.Close(context.Background())

	vectors, err := vectorstore.New(cfg.QdrantURL, cfg.QdrantAPIKey, "knowledge")
	if err != nil {
		return fmt.Errorf("connect vector store: %w", err)
	}
	defer vectors.Close()

	embedder := embedclient.New(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, nil, 30*time.Second)

	if reembed {
		storage := extractionstore.New(docs, vectors, embedder, cfg.ProjectID, base)
		sourceTitles := make(map[string]string)
		count, err := storage.Reembed(ctx, func(srcID string) extractionstore.SourceSnapshot {
			title, ok := sourceTitles[srcID]
			if !ok {
				if src, err := docs.GetSource(ctx, srcID); err == nil {
					title = src.Title
					sourceTitles[srcID] = title
				}
			}
			return extractionstore.SourceSnapshot{Title: title}
		})
		if err != nil {
			return fmt.Errorf("reembed: %w", err)
		}
		base.Info().Int("count", count).Msg("knowledge-pipeline: reembed complete")
		return nil
	}

	if ingestPath != "" && !extractOnly {
		ingested, err := ingest(ctx, ingestPath, docs, vectors, embedder, cfg.ProjectID)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", ingestPath, err)
		}
		sourceID = ingested
	}

	if extractOnly && sourceID == "" {
		return fmt.Errorf("-source-id is required with -extract-only")
	}
	if sourceID == "" {
		base.Info().Msg("knowledge-pipeline: no source id to extract, exiting after ingest")
		return nil
	}

	gateway := llmgateway.New(cfg.AnthropicAPIKey, cfg.LLMModel, int64(cfg.LLMMaxTokens), nil)
	prompts := promptloader.New(cfg.PromptDir)
	registry := buildRegistry(prompts, gateway, base)
	storage := extractionstore.New(docs, vectors, embedder, cfg.ProjectID, base)
	recorder := metrics.NewRecorder("knowledge-pipeline")

	orch := orchestrator.New(docs, storage, registry, base, orchestrator.WithMetrics(recorder))
	if err := orch.Connect(ctx); err != nil {
		return fmt.Errorf("connect orchestrator: %w", err)
	}
	defer orch.Close(context.Background())

	summary, err := orch.ExtractSource(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("extract source %s: %w", sourceID, err)
	}
	base.Info().
		Str("source_id", sourceID).
		Int("saved", summary.Storage.Saved).
		Int("failed", summary.Storage.Failed).
		Msg("knowledge-pipeline: extraction complete")
	return nil
}

// ingest inserts a manifest's source and chunks, embeds and upserts each
// chunk's vector, and marks the source complete. Returns the source id.
func ingest(ctx context.Context, path string, docs *docstore.Client, vectors *vectorstore.Store, embedder *embedclient.Client, projectID string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return "", fmt.Errorf("parse manifest: %w", err)
	}
	m.Source.ProjectID = projectID
	m.Source.Status = models.StatusProcessing

	sourceID, err := docs.InsertSource(ctx, &m.Source)
	if err != nil {
		return "", fmt.Errorf("insert source: %w", err)
	}
	for i := range m.Chunks {
		m.Chunks[i].ProjectID = projectID
		m.Chunks[i].SourceID = sourceID
	}

	chunkIDs, err := docs.InsertChunks(ctx, m.Chunks)
	if err != nil {
		return "", fmt.Errorf("insert chunks: %w", err)
	}
	for i, chunk := range m.Chunks {
		chunk.ID = chunkIDs[i]
		vector, err := embedder.EmbedDocument(ctx, chunk.Content)
		if err != nil {
			return "", fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
		}
		if err := vectors.UpsertChunkVector(ctx, projectID, &chunk, vector); err != nil {
			return "", fmt.Errorf("upsert chunk vector %s: %w", chunk.ID, err)
		}
	}

	if err := docs.UpdateSourceStatus(ctx, sourceID, models.StatusComplete); err != nil {
		return "", fmt.Errorf("update source status: %w", err)
	}
	return sourceID, nil
}

// buildRegistry registers the seven category extractors under their fixed
// prompt files (spec.md §4.7).
func buildRegistry(prompts *promptloader.Loader, gateway llmgateway.Client, log zerolog.Logger) *extractors.Registry {
	reg := extractors.NewRegistry(log)
	cfg := extractors.DefaultConfig()
	for _, category := range models.Categories {
		reg.Register(extractors.New(category, prompts, gateway, cfg, log))
	}
	return reg
}
