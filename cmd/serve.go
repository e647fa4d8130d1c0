package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hannadev/blogsearch/db"
	"github.com/hannadev/blogsearch/internal/config"
	"github.com/hannadev/blogsearch/internal/corpus"
	"github.com/hannadev/blogsearch/internal/gemini"
	"github.com/hannadev/blogsearch/internal/keyword"
	"github.com/hannadev/blogsearch/internal/observability"
	"github.com/hannadev/blogsearch/internal/promptlog"
	"github.com/hannadev/blogsearch/internal/rag"
	"github.com/hannadev/blogsearch/internal/server"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr := cfg.Addr
	if len(os.Args) > 2 {
		addr = os.Args[2]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting blogsearch server", "version", Version, "rag_enabled", cfg.Enabled, "mock_mode", cfg.MockMode)

	shutdownTracing, err := observability.Setup(ctx, cfg.OTELEndpoint, logger)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
			logger.Warn("tracing shutdown error", "error", shutdownErr)
		}
	}()

	loader := corpus.NewLoader(cfg.ContentDir, cfg.CustomDocsPath, logger)
	docs, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	keywordIndex := keyword.NewIndex(docs)
	logger.Info("keyword index built", "documents", len(docs))

	var generator gemini.Generator
	var ragService *rag.Service
	if !cfg.MockMode {
		client, clientErr := gemini.New(ctx, gemini.Options{
			EmbeddingModel:  cfg.EmbeddingModel,
			GenerationModel: cfg.GenerationModel,
		}, logger)
		if clientErr != nil {
			return fmt.Errorf("initializing Gemini client: %w", clientErr)
		}
		generator = client

		if cfg.Enabled {
			ragService = rag.NewService(loader, rag.NewEmbedder(client.Embedder(), logger), rag.ServiceOptions{
				ChunkSize:           cfg.ChunkSize,
				ChunkOverlap:        cfg.ChunkOverlap,
				TopK:                cfg.TopK,
				SimilarityThreshold: cfg.SimilarityThreshold,
				EmbeddingBatchSize:  cfg.EmbeddingBatchSize,
				IndexPath:           cfg.IndexPath,
			}, logger)
		}
	}

	if cfg.DatabaseURL != "" {
		if err = db.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrating prompt log schema: %w", err)
		}
	}
	promptLog, err := promptlog.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connecting prompt log: %w", err)
	}
	defer promptLog.Close()

	srv, err := server.NewServer(server.Config{
		Logger:        logger,
		RAGService:    ragService,
		KeywordIndex:  keywordIndex,
		Generator:     generator,
		PromptLog:     promptLog,
		MockMode:      cfg.MockMode,
		DefaultLocale: cfg.DefaultLocale,
		CORSOrigins:   cfg.CORSOrigins,
		TrustProxy:    cfg.TrustProxy,
		RateBurst:     cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	return srv.Run(ctx, addr)
}
