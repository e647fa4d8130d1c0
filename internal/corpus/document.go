// Package corpus loads the source documents the search index is built from.
//
// Two origins are merged: published blog posts (markdown files with YAML
// frontmatter) and a small manually curated custom-document set (JSON).
// Documents are constructed fresh on every ingestion run and never mutated.
package corpus

import (
	"fmt"
	"strings"
)

// Source identifies where a document came from.
const (
	SourceBlog   = "blog"
	SourceCustom = "custom"
)

// Document is a unit of source content.
// ID and URL are unique across the merged blog+custom corpus.
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	TitleEn     string   `json:"titleEn,omitempty"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	URL         string   `json:"url"`
	Content     string   `json:"content"`
	Source      string   `json:"source,omitempty"`
}

// validate reports whether the document carries the minimum fields
// required for indexing.
func (d Document) validate() error {
	if d.ID == "" {
		return fmt.Errorf("document missing id")
	}
	if d.Title == "" {
		return fmt.Errorf("document %q missing title", d.ID)
	}
	if strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("document %q missing content", d.ID)
	}
	return nil
}

// NormalizePath normalizes a post path to the canonical leading-slash,
// trailing-slash form used as the document URL.
func NormalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}
	return path
}

// dedupe drops documents whose id or URL collides with an earlier document,
// keeping first-seen entries. Returns the kept documents and the ids of the
// dropped ones.
func dedupe(docs []Document) (kept []Document, dropped []string) {
	seenID := make(map[string]bool, len(docs))
	seenURL := make(map[string]bool, len(docs))

	for _, doc := range docs {
		if seenID[doc.ID] || seenURL[doc.URL] {
			dropped = append(dropped, doc.ID)
			continue
		}
		seenID[doc.ID] = true
		seenURL[doc.URL] = true
		kept = append(kept, doc)
	}
	return kept, dropped
}
