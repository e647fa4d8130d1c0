package rag

import (
	"context"
	"testing"

	"github.com/hannadev/blogsearch/internal/log"
	"github.com/hannadev/blogsearch/internal/testutil"
)

func TestSearch_ShortCircuits(t *testing.T) {
	mock := testutil.NewMockEmbedder(4)
	embedder := NewEmbedder(mock, log.NewNop())

	store := NewInMemoryStore()
	store.Upsert([]EmbeddedChunk{embedded("a:0", "/posts/a/", []float32{1, 0, 0, 0})})

	hits, err := Search(context.Background(), "   ", embedder, store, SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("blank query returned %d hits, want 0", len(hits))
	}

	empty := NewInMemoryStore()
	hits, err = Search(context.Background(), "real query", embedder, empty, SearchOptions{TopK: 5})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("empty store returned %d hits, want 0", len(hits))
	}

	if mock.Calls() != 0 {
		t.Errorf("short-circuit paths made %d embedding calls, want 0", mock.Calls())
	}
}

func TestSearch_ThresholdAppliedAfterTopK(t *testing.T) {
	mock := testutil.NewMockEmbedder(2)
	mock.SetVector("query", []float32{1, 0})
	embedder := NewEmbedder(mock, log.NewNop())

	store := NewInMemoryStore()
	store.Upsert([]EmbeddedChunk{
		embedded("a:0", "/posts/a/", []float32{1, 0}),    // score 1
		embedded("b:0", "/posts/b/", []float32{0.8, 0.6}), // score 0.8
		embedded("c:0", "/posts/c/", []float32{0, 1}),     // score 0
	})

	hits, err := Search(context.Background(), "query", embedder, store, SearchOptions{
		TopK:                3,
		SimilarityThreshold: 0.5,
	})
	if err != nil {
		t.Fatalf("Search() failed: %v", err)
	}

	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 above threshold", len(hits))
	}
	for _, hit := range hits {
		if hit.Score < 0.5 {
			t.Errorf("hit %s score %v below threshold", hit.Chunk.ID, hit.Score)
		}
	}
}

func TestSearch_RaisingThresholdNeverAddsHits(t *testing.T) {
	mock := testutil.NewMockEmbedder(2)
	mock.SetVector("query", []float32{1, 0})
	embedder := NewEmbedder(mock, log.NewNop())

	store := NewInMemoryStore()
	store.Upsert([]EmbeddedChunk{
		embedded("a:0", "/posts/a/", []float32{1, 0}),
		embedded("b:0", "/posts/b/", []float32{0.6, 0.8}),
	})

	low, err := Search(context.Background(), "query", embedder, store, SearchOptions{TopK: 5, SimilarityThreshold: 0.2})
	if err != nil {
		t.Fatal(err)
	}
	high, err := Search(context.Background(), "query", embedder, store, SearchOptions{TopK: 5, SimilarityThreshold: 0.9})
	if err != nil {
		t.Fatal(err)
	}
	if len(high) > len(low) {
		t.Errorf("raising threshold increased hits: %d -> %d", len(low), len(high))
	}
}
