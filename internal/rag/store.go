package rag

import (
	"math"
	"sort"
	"sync"
)

// Store holds embedded chunks and answers cosine-similarity queries.
type Store interface {
	Upsert(chunks []EmbeddedChunk)
	Query(queryEmbedding []float32, topK int) []SemanticHit
	Size() int
}

// InMemoryStore keeps the whole index in a map for the process lifetime.
// Upserts happen once during ingestion; queries dominate afterwards, so a
// read-write lock fits the access pattern.
type InMemoryStore struct {
	mu     sync.RWMutex
	chunks map[string]EmbeddedChunk
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{chunks: make(map[string]EmbeddedChunk)}
}

// Upsert inserts chunks, replacing any existing entry with the same id.
func (s *InMemoryStore) Upsert(chunks []EmbeddedChunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		s.chunks[chunk.ID] = chunk
	}
}

// Query scores every stored chunk against the query embedding and returns
// the topK highest, sorted by score descending.
func (s *InMemoryStore) Query(queryEmbedding []float32, topK int) []SemanticHit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]SemanticHit, 0, len(s.chunks))
	for _, chunk := range s.chunks {
		hits = append(hits, SemanticHit{
			Chunk: chunk,
			Score: cosineSimilarity(queryEmbedding, chunk.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if topK >= 0 && len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

// Size returns the current entry count.
func (s *InMemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// cosineSimilarity returns the cosine of the angle between a and b.
// Mismatched lengths or zero vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
