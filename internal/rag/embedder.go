package rag

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/hannadev/blogsearch/internal/log"
)

// ErrEmbedding marks an embedding failure after retry exhaustion.
// Callers use errors.Is to distinguish it from other ingestion failures.
var ErrEmbedding = errors.New("embedding failed")

// backoffSchedule is the fixed per-batch retry schedule. Exceeding the last
// slot propagates the error and fails the whole ingestion run.
var backoffSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}

// EmbedOptions controls batch embedding.
type EmbedOptions struct {
	BatchSize int
}

// EmbeddingClient is the slice of the Genkit embedder API this package
// consumes. ai.Embedder satisfies it.
type EmbeddingClient interface {
	Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error)
}

// Embedder converts chunks and queries into vectors through a Genkit embedder.
type Embedder struct {
	embedder EmbeddingClient
	logger   log.Logger
}

// NewEmbedder wraps a Genkit embedder.
func NewEmbedder(embedder EmbeddingClient, logger log.Logger) *Embedder {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Embedder{embedder: embedder, logger: logger}
}

// EmbedChunks embeds chunks in fixed-size batches, preserving order.
// Each batch retries on the backoff schedule; a batch that exhausts its
// retries fails the run with ErrEmbedding. The returned vectors are zipped
// back to their source chunks positionally.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []Chunk, opts EmbedOptions) ([]EmbeddedChunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	batchSize := opts.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	embedded := make([]EmbeddedChunk, 0, len(chunks))

	for start := 0; start < len(chunks); start += batchSize {
		batch := chunks[start:min(start+batchSize, len(chunks))]

		vectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		for i, vector := range vectors {
			embedded = append(embedded, EmbeddedChunk{Chunk: batch[i], Embedding: vector})
		}
	}

	return embedded, nil
}

// embedBatch embeds one batch with the fixed backoff schedule.
func (e *Embedder) embedBatch(ctx context.Context, batch []Chunk) ([][]float32, error) {
	input := make([]*ai.Document, len(batch))
	for i, chunk := range batch {
		input[i] = ai.DocumentFromText(chunk.Text, nil)
	}

	var lastErr error
	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
		if err == nil {
			if len(resp.Embeddings) != len(batch) {
				return nil, fmt.Errorf("%w: got %d embeddings for %d chunks",
					ErrEmbedding, len(resp.Embeddings), len(batch))
			}
			vectors := make([][]float32, len(batch))
			for i, emb := range resp.Embeddings {
				vectors[i] = emb.Embedding
			}
			return vectors, nil
		}

		lastErr = err
		if attempt == len(backoffSchedule) {
			break
		}

		delay := backoffSchedule[attempt]
		e.logger.Debug("embedding batch failed, retrying",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrEmbedding, ctx.Err())
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("%w after %d retries: %w", ErrEmbedding, len(backoffSchedule), lastErr)
}

// EmbedQuery embeds a single query string with the same model used for
// ingestion. No retry: a failed query embedding degrades to keyword search
// at the request layer instead of stalling the response.
func (e *Embedder) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	resp, err := e.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(query, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrEmbedding)
	}
	return resp.Embeddings[0].Embedding, nil
}
