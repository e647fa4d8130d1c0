package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/hannadev/blogsearch/internal/corpus"
	"github.com/hannadev/blogsearch/internal/log"
)

// DocumentSource supplies the corpus for live ingestion.
type DocumentSource interface {
	Load() ([]corpus.Document, error)
}

// ServiceOptions configures the retrieval service.
type ServiceOptions struct {
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
	EmbeddingBatchSize  int
	IndexPath           string
}

// Service owns the vector store and the once-per-process ingestion state.
// The first search in a process lifetime ingests the index, either from the
// prebuilt snapshot or by live chunking and embedding; later searches reuse
// the warm store.
type Service struct {
	opts     ServiceOptions
	source   DocumentSource
	embedder *Embedder
	store    Store
	logger   log.Logger

	mu       sync.Mutex
	ingested bool
}

// NewService creates a Service with an empty store.
func NewService(source DocumentSource, embedder *Embedder, opts ServiceOptions, logger log.Logger) *Service {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		opts:     opts,
		source:   source,
		embedder: embedder,
		store:    NewInMemoryStore(),
		logger:   logger,
	}
}

// Store exposes the underlying vector store.
func (s *Service) Store() Store {
	return s.store
}

// SearchResult bundles everything a request handler needs from retrieval.
type SearchResult struct {
	Hits    []SemanticHit
	Prompt  string
	Sources []SourceRef
}

// Search runs the full retrieval pipeline for one query: ingest if needed,
// semantic search, locale filtering, prompt and source construction.
func (s *Service) Search(ctx context.Context, query, locale string) (*SearchResult, error) {
	if err := s.ingestIfNeeded(ctx); err != nil {
		return nil, err
	}

	hits, err := Search(ctx, query, s.embedder, s.store, SearchOptions{
		TopK:                s.opts.TopK,
		SimilarityThreshold: s.opts.SimilarityThreshold,
	})
	if err != nil {
		return nil, err
	}

	hits = FilterByLocale(hits, locale)

	return &SearchResult{
		Hits:    hits,
		Prompt:  BuildPrompt(query, hits, locale),
		Sources: SourceRefs(hits),
	}, nil
}

// ingestIfNeeded performs the one-way not-ingested to ingested transition.
// The mutex makes ingestion single-flight: concurrent cold-start requests
// wait for the winner instead of double-embedding. The flag is withheld on
// failure so the next request retries from scratch.
func (s *Service) ingestIfNeeded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ingested {
		return nil
	}

	if chunks := s.loadSnapshot(); len(chunks) > 0 {
		s.store.Upsert(chunks)
		s.ingested = true
		s.logger.Info("prebuilt index loaded", "chunks", len(chunks))
		return nil
	}

	docs, err := s.source.Load()
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}

	s.logger.Info("ingestion started", "documents", len(docs))

	embedded, err := BuildIndex(ctx, docs, s.embedder, IndexOptions{
		ChunkSize:    s.opts.ChunkSize,
		ChunkOverlap: s.opts.ChunkOverlap,
		BatchSize:    s.opts.EmbeddingBatchSize,
	})
	if err != nil {
		return err
	}

	s.store.Upsert(embedded)
	s.ingested = true

	s.logger.Info("ingestion completed", "documents", len(docs), "embedded", len(embedded))
	return nil
}

// loadSnapshot reads the prebuilt index file. Any failure falls back to
// live ingestion and is never surfaced to the caller.
func (s *Service) loadSnapshot() []EmbeddedChunk {
	if s.opts.IndexPath == "" {
		return nil
	}

	raw, err := os.ReadFile(s.opts.IndexPath)
	if err != nil {
		s.logger.Debug("no prebuilt index", "path", s.opts.IndexPath)
		return nil
	}

	var parsed []EmbeddedChunk
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.logger.Warn("malformed prebuilt index", "path", s.opts.IndexPath, "error", err)
		return nil
	}

	chunks := parsed[:0]
	for _, chunk := range parsed {
		if chunk.ID == "" || chunk.Text == "" || len(chunk.Embedding) == 0 {
			s.logger.Warn("skipping invalid index entry", "id", chunk.ID)
			continue
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// IndexOptions controls BuildIndex.
type IndexOptions struct {
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// BuildIndex chunks and embeds documents into index entries. Both live
// ingestion and the offline index build go through here so the two paths
// cannot drift.
func BuildIndex(ctx context.Context, docs []corpus.Document, embedder *Embedder, opts IndexOptions) ([]EmbeddedChunk, error) {
	chunks := ChunkDocuments(embeddableDocuments(docs), ChunkOptions{
		ChunkSize:    opts.ChunkSize,
		ChunkOverlap: opts.ChunkOverlap,
	})
	return embedder.EmbedChunks(ctx, chunks, EmbedOptions{BatchSize: opts.BatchSize})
}

// embeddableDocuments prefixes each document body with its title and
// description so every chunk carries the document's topical signal.
func embeddableDocuments(docs []corpus.Document) []corpus.Document {
	out := make([]corpus.Document, len(docs))
	for i, doc := range docs {
		out[i] = doc
		out[i].Content = doc.Title + "\n\n" + doc.Description + "\n\n" + doc.Content
	}
	return out
}
