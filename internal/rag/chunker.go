package rag

import (
	"fmt"
	"strings"

	"github.com/hannadev/blogsearch/internal/corpus"
)

// ChunkOptions controls the sliding-window chunker. Sizes are in words.
type ChunkOptions struct {
	ChunkSize    int
	ChunkOverlap int
}

// ChunkDocuments splits documents into overlapping word windows, preferring
// heading boundaries so a chunk does not bleed across sections. Sequence
// numbers are per document and embedded in the chunk id.
func ChunkDocuments(docs []corpus.Document, opts ChunkOptions) []Chunk {
	var chunks []Chunk

	for _, doc := range docs {
		sections := splitByHeading(doc.Content)
		if len(sections) == 0 {
			sections = []string{doc.Content}
		}

		meta := metadataFor(doc)
		seq := 0

		for _, section := range sections {
			for _, text := range chunkBySize(section, opts.ChunkSize, opts.ChunkOverlap) {
				chunks = append(chunks, Chunk{
					ID:       fmt.Sprintf("%s:%d", doc.ID, seq),
					DocID:    doc.ID,
					Text:     text,
					Metadata: meta,
				})
				seq++
			}
		}
	}

	return chunks
}

// chunkBySize emits sliding windows of chunkSize words advancing by
// chunkSize-chunkOverlap words. The step is clamped to 1 so the loop always
// terminates, and the final partial window is emitted.
func chunkBySize(text string, chunkSize, chunkOverlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	if step < 1 {
		step = 1
	}

	var chunks []string
	for i := 0; i < len(words); i += step {
		end := min(i+chunkSize, len(words))
		slice := strings.TrimSpace(strings.Join(words[i:end], " "))
		if slice != "" {
			chunks = append(chunks, slice)
		}
		if i+chunkSize >= len(words) {
			break
		}
	}

	return chunks
}

// splitByHeading starts a new section at every markdown heading line.
func splitByHeading(markdown string) []string {
	lines := strings.Split(markdown, "\n")

	var sections []string
	var current []string

	flush := func() {
		section := strings.TrimSpace(strings.Join(current, "\n"))
		if section != "" {
			sections = append(sections, section)
		}
		current = current[:0]
	}

	for _, line := range lines {
		if isHeading(line) && len(current) > 0 {
			flush()
		}
		current = append(current, line)
	}
	flush()

	return sections
}

func isHeading(line string) bool {
	trimmed := line
	hashes := 0
	for hashes < len(trimmed) && trimmed[hashes] == '#' {
		hashes++
	}
	if hashes < 1 || hashes > 6 || hashes == len(trimmed) {
		return false
	}
	return trimmed[hashes] == ' ' || trimmed[hashes] == '\t'
}
