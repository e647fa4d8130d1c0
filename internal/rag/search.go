package rag

import (
	"context"
	"strings"
)

// SearchOptions controls a semantic search.
type SearchOptions struct {
	TopK                int
	SimilarityThreshold float64
}

// Search embeds the query and returns the topK nearest chunks above the
// similarity threshold. An empty query or empty store short-circuits to no
// hits without an embedding call.
//
// The threshold applies after topK selection: when fewer than topK hits
// clear it, fewer hits are returned.
func Search(ctx context.Context, query string, embedder *Embedder, store Store, opts SearchOptions) ([]SemanticHit, error) {
	if strings.TrimSpace(query) == "" || store.Size() == 0 {
		return nil, nil
	}

	embedding, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits := store.Query(embedding, opts.TopK)

	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Score >= opts.SimilarityThreshold {
			filtered = append(filtered, hit)
		}
	}
	return filtered, nil
}
