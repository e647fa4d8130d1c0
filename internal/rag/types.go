// Package rag implements the retrieval pipeline behind the blog's search
// assistant: chunking, embedding, in-memory vector retrieval, locale-aware
// filtering and grounded prompt construction.
package rag

import "github.com/hannadev/blogsearch/internal/corpus"

// ChunkMetadata carries the parent document fields a retrieval result needs
// to stand on its own.
type ChunkMetadata struct {
	Title   string   `json:"title"`
	TitleEn string   `json:"titleEn,omitempty"`
	Tags    []string `json:"tags"`
	URL     string   `json:"url"`
}

// Chunk is a retrievable slice of a document.
// ID is "{docID}:{sequence}" with a per-document sequence number.
type Chunk struct {
	ID       string        `json:"id"`
	DocID    string        `json:"docId"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// EmbeddedChunk is a Chunk plus its embedding vector. All vectors in one
// store share the dimensionality of the embedding model that produced them.
type EmbeddedChunk struct {
	Chunk
	Embedding []float32 `json:"embedding"`
}

// SemanticHit is a scored retrieval result. Score is cosine similarity.
type SemanticHit struct {
	Chunk EmbeddedChunk
	Score float64
}

// SourceRef is the client-facing projection of a hit's parent document.
type SourceRef struct {
	Title   string `json:"title"`
	TitleEn string `json:"titleEn,omitempty"`
	Slug    string `json:"slug"`
}

// ContextBlock is one numbered context entry in the generation prompt.
// Chunks sharing a source URL merge into a single block.
type ContextBlock struct {
	Index   int
	Title   string
	TitleEn string
	URL     string
	Text    string
}

// metadataFor denormalizes the document fields chunks carry along.
func metadataFor(doc corpus.Document) ChunkMetadata {
	return ChunkMetadata{
		Title:   doc.Title,
		TitleEn: doc.TitleEn,
		Tags:    doc.Tags,
		URL:     doc.URL,
	}
}
