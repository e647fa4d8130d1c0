package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"

	"github.com/hannadev/blogsearch/internal/config"
	"github.com/hannadev/blogsearch/internal/corpus"
	"github.com/hannadev/blogsearch/internal/gemini"
	"github.com/hannadev/blogsearch/internal/rag"
)

// runSync builds the prebuilt embedding index and writes it to the
// configured index path. The server loads this file on its first search
// instead of embedding the whole corpus at request time.
func runSync() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if config.APIKey() == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is required for sync", config.ErrMissingAPIKey)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	// Concurrent sync runs (CI plus a local build) would race on the
	// index file, so the build holds an advisory lock.
	lock := flock.New(cfg.IndexPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("locking index: %w", err)
	}
	if !locked {
		return fmt.Errorf("another sync is already running (lock: %s)", lock.Path())
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Warn("releasing index lock", "error", unlockErr)
		}
	}()

	client, err := gemini.New(ctx, gemini.Options{
		EmbeddingModel:  cfg.EmbeddingModel,
		GenerationModel: cfg.GenerationModel,
	}, logger)
	if err != nil {
		return fmt.Errorf("initializing Gemini client: %w", err)
	}

	loader := corpus.NewLoader(cfg.ContentDir, cfg.CustomDocsPath, logger)
	docs, err := loader.Load()
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	logger.Info("building index", "documents", len(docs), "model", cfg.EmbeddingModel)

	embedded, err := rag.BuildIndex(ctx, docs, rag.NewEmbedder(client.Embedder(), logger), rag.IndexOptions{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		BatchSize:    cfg.EmbeddingBatchSize,
	})
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	if err = writeIndex(cfg.IndexPath, embedded); err != nil {
		return err
	}

	logger.Info("index written", "path", cfg.IndexPath, "chunks", len(embedded))
	return nil
}

// writeIndex writes the index atomically so a serve process never reads a
// half-written file.
func writeIndex(path string, chunks []rag.EmbeddedChunk) error {
	raw, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encoding index: %w", err)
	}

	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp index: %w", err)
	}
	if _, err = tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing index: %w", err)
	}
	if err = tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing temp index: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing index: %w", err)
	}
	return nil
}
