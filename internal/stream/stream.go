// Package stream implements the wire framing of a search response: a
// machine-parseable sources preamble followed by raw generated text,
// delivered incrementally.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/hannadev/blogsearch/internal/rag"
)

// Framing markers. New producers emit the sources-first framing; the legacy
// trailer variant is still accepted by Parse for old clients and transcripts.
const (
	SourcesStart = "<!-- SOURCES_START -->"
	SourcesEnd   = "<!-- SOURCES_END -->"
	legacyMarker = "<!-- SOURCES -->"

	// ErrorMarker terminates the stream when generation fails mid-flight,
	// so the client renders an error state instead of a silently truncated
	// answer.
	ErrorMarker = "<!-- STREAM_ERROR -->"
)

// SourcesPrefix renders the preamble chunk for a source list.
func SourcesPrefix(sources []rag.SourceRef) (string, error) {
	raw, err := json.Marshal(sources)
	if err != nil {
		return "", fmt.Errorf("encoding sources: %w", err)
	}
	return SourcesStart + string(raw) + SourcesEnd + "\n", nil
}

// Merge writes the sources preamble followed by every token in arrival
// order. Tokens are never buffered; if w implements http.Flusher each write
// is flushed so the client sees text as it is generated.
//
// A token error emits ErrorMarker as the terminal chunk and returns the
// error. Everything flushed before the failure stays on the wire.
func Merge(w io.Writer, sources []rag.SourceRef, tokens iter.Seq2[string, error]) error {
	flusher, _ := w.(http.Flusher)
	emit := func(s string) error {
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if len(sources) > 0 {
		prefix, err := SourcesPrefix(sources)
		if err != nil {
			return err
		}
		if err := emit(prefix); err != nil {
			return err
		}
	}

	for token, err := range tokens {
		if err != nil {
			_ = emit(ErrorMarker)
			return fmt.Errorf("generation stream: %w", err)
		}
		if err := emit(token); err != nil {
			return err
		}
	}

	return nil
}

// Parse splits a complete response back into answer text and sources.
// Both the sources-first framing and the legacy trailer variant are
// accepted; malformed source JSON yields the text with no sources.
func Parse(text string) (content string, sources []rag.SourceRef) {
	if start := strings.Index(text, SourcesStart); start >= 0 {
		if end := strings.Index(text, SourcesEnd); end > start {
			rawSources := text[start+len(SourcesStart) : end]
			content = strings.TrimSpace(text[end+len(SourcesEnd):])
			if err := json.Unmarshal([]byte(rawSources), &sources); err != nil {
				return content, nil
			}
			return content, sources
		}
	}

	if before, after, found := strings.Cut(text, legacyMarker); found {
		content = strings.TrimSpace(before)
		if err := json.Unmarshal([]byte(strings.TrimSpace(after)), &sources); err != nil {
			return content, nil
		}
		return content, sources
	}

	return text, nil
}
