package rag

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hannadev/blogsearch/internal/corpus"
)

func words(n int, prefix string) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%s%d", prefix, i)
	}
	return strings.Join(parts, " ")
}

func TestChunkDocuments_WindowingAndOverlap(t *testing.T) {
	doc := corpus.Document{
		ID:      "post",
		Title:   "Post",
		URL:     "/posts/post/",
		Content: words(25, "w"),
	}

	chunks := ChunkDocuments([]corpus.Document{doc}, ChunkOptions{ChunkSize: 10, ChunkOverlap: 4})

	// step = 6: windows start at 0, 6, 12, 18; the last covers through w24.
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}

	for i, chunk := range chunks {
		wantID := fmt.Sprintf("post:%d", i)
		if chunk.ID != wantID {
			t.Errorf("chunk %d ID = %q, want %q", i, chunk.ID, wantID)
		}
		if chunk.DocID != "post" {
			t.Errorf("chunk %d DocID = %q", i, chunk.DocID)
		}
		if chunk.Text == "" {
			t.Errorf("chunk %d has empty text", i)
		}
	}

	// Consecutive full windows share exactly overlap words.
	first := strings.Fields(chunks[0].Text)
	second := strings.Fields(chunks[1].Text)
	shared := 0
	for _, w := range second {
		for _, f := range first {
			if w == f {
				shared++
				break
			}
		}
	}
	if shared != 4 {
		t.Errorf("consecutive chunks share %d words, want 4", shared)
	}

	// Every source word appears in at least one chunk.
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, w := range strings.Fields(chunk.Text) {
			seen[w] = true
		}
	}
	for i := range 25 {
		if !seen[fmt.Sprintf("w%d", i)] {
			t.Errorf("word w%d not covered by any chunk", i)
		}
	}
}

func TestChunkDocuments_HeadingBoundaries(t *testing.T) {
	doc := corpus.Document{
		ID:      "guide",
		Title:   "Guide",
		URL:     "/posts/guide/",
		Content: "intro text here\n\n# Installation\ninstall steps described\n\n## Usage\nusage details follow",
	}

	chunks := ChunkDocuments([]corpus.Document{doc}, ChunkOptions{ChunkSize: 700, ChunkOverlap: 120})

	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3 (one per section)", len(chunks))
	}
	if !strings.Contains(chunks[1].Text, "Installation") || strings.Contains(chunks[1].Text, "Usage") {
		t.Errorf("section chunk bleeds across headings: %q", chunks[1].Text)
	}
}

func TestChunkDocuments_EmptyDocument(t *testing.T) {
	doc := corpus.Document{ID: "empty", Title: "Empty", URL: "/posts/empty/", Content: "   \n\t  "}

	chunks := ChunkDocuments([]corpus.Document{doc}, ChunkOptions{ChunkSize: 10, ChunkOverlap: 2})
	if len(chunks) != 0 {
		t.Fatalf("got %d chunks for empty document, want 0", len(chunks))
	}
}

func TestChunkDocuments_StepClampedToOne(t *testing.T) {
	doc := corpus.Document{ID: "tiny", Title: "Tiny", URL: "/posts/tiny/", Content: "alpha beta gamma"}

	// Overlap >= size would make the step non-positive without clamping.
	chunks := ChunkDocuments([]corpus.Document{doc}, ChunkOptions{ChunkSize: 2, ChunkOverlap: 5})
	if len(chunks) == 0 {
		t.Fatal("expected chunks, got none")
	}
	if chunks[0].Text != "alpha beta" {
		t.Errorf("first chunk = %q, want %q", chunks[0].Text, "alpha beta")
	}
}

func TestChunkDocuments_MetadataDenormalized(t *testing.T) {
	doc := corpus.Document{
		ID:      "meta",
		Title:   "제목",
		TitleEn: "Title",
		Tags:    []string{"go", "rag"},
		URL:     "/posts/meta/",
		Content: "some body words",
	}

	chunks := ChunkDocuments([]corpus.Document{doc}, ChunkOptions{ChunkSize: 700, ChunkOverlap: 120})
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	meta := chunks[0].Metadata
	if meta.Title != "제목" || meta.TitleEn != "Title" || meta.URL != "/posts/meta/" {
		t.Errorf("metadata not denormalized: %+v", meta)
	}
	if len(meta.Tags) != 2 {
		t.Errorf("metadata tags = %v", meta.Tags)
	}
}
