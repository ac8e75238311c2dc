// Command knowledge-query runs the tier-gated, read-only query service:
// semantic search and category listings over the knowledge store
// (spec.md §4.12-§4.13, §6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"knowledgeforge/internal/config"
	"knowledgeforge/internal/docstore"
	"knowledgeforge/internal/embedclient"
	"knowledgeforge/internal/httpserver"
	"knowledgeforge/internal/logging"
	"knowledgeforge/internal/metrics"
	"knowledgeforge/internal/query"
	"knowledgeforge/internal/ratelimit"
	"knowledgeforge/internal/vectorstore"
	"knowledgeforge/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print the build version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Println("knowledge-query " + version.Version)
		os.Exit(0)
	}

	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("knowledge-query")
	}
}

func run() error {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownMeter := metrics.InitMeterProvider()
	defer func() {
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutCancel()
		_ = shutdownMeter(shutCtx)
	}()

	base := logging.Init()

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

	embedder := embedclient.New(cfg.EmbeddingBaseURL, cfg.EmbeddingModel, nil, 10*time.Second)

	registry, err := ratelimit.LoadRegistry(cfg.APIKeysFile)
	if err != nil {
		return fmt.Errorf("load api key registry: %w", err)
	}

	svc := query.New(docs, vectors, embedder, cfg.ProjectID)
	server := httpserver.New(svc, registry, cfg.RateLimitTiers, vectors, base)

	base.Info().Str("addr", cfg.HTTPAddr).Msg("knowledge-query: listening")
	return server.Start(ctx, cfg.HTTPAddr)
}
