package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hannadev/blogsearch/internal/gemini"
	"github.com/hannadev/blogsearch/internal/keyword"
	"github.com/hannadev/blogsearch/internal/log"
	"github.com/hannadev/blogsearch/internal/promptlog"
	"github.com/hannadev/blogsearch/internal/rag"
	"github.com/hannadev/blogsearch/internal/stream"
)

const maxRequestBody = 1 << 20 // 1MB

// chatMessage is one turn of caller-supplied conversation history.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// searchRequest is the POST /api/search body. Prompt and query are
// aliases; the trimmed non-empty one wins.
type searchRequest struct {
	Prompt  string        `json:"prompt"`
	Query   string        `json:"query"`
	History []chatMessage `json:"history"`
	Locale  string        `json:"locale"`
}

// search answers a question about the blog, streaming a sources preamble
// followed by generated answer text.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	logger := s.logger.With("request_id", requestIDFromContext(r.Context()))

	var req searchRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		// A malformed body degrades to an empty query, which renders the
		// grounded refusal template instead of a hard error.
		logger.Debug("malformed search request body", "error", err)
		req = searchRequest{}
	}

	query := strings.TrimSpace(req.Prompt)
	if query == "" {
		query = strings.TrimSpace(req.Query)
	}
	locale := req.Locale
	if locale == "" {
		locale = s.defaultLocale
	}
	locale = rag.NormalizeLocale(locale)

	if s.mockMode {
		s.streamResponse(w, r, gemini.MockSources, gemini.NewMockGenerator(), "", logger)
		return
	}

	prompt, sources, stats := s.buildPrompt(r.Context(), query, locale, logger)
	prompt = prependHistory(prompt, req.History)

	s.streamResponse(w, r, sources, s.generator, prompt, logger)

	s.recordPromptLog(r, promptlog.Entry{
		Query:       query,
		Locale:      locale,
		RAGEnabled:  stats.ragUsed,
		SourceCount: len(sources),
		HitCount:    stats.hits,
		TopScore:    stats.topScore,
		Latency:     time.Since(start),
		UserAgent:   r.UserAgent(),
		Referer:     r.Referer(),
	})
}

type retrievalStats struct {
	ragUsed  bool
	hits     int
	topScore float64
}

// buildPrompt runs retrieval. A failing semantic pipeline degrades to the
// keyword fallback for this one request instead of surfacing an error.
func (s *Server) buildPrompt(ctx context.Context, query, locale string, logger log.Logger) (prompt string, sources []rag.SourceRef, stats retrievalStats) {
	if s.ragService != nil {
		result, err := s.ragService.Search(ctx, query, locale)
		if err == nil {
			stats.ragUsed = true
			stats.hits = len(result.Hits)
			if len(result.Hits) > 0 {
				stats.topScore = result.Hits[0].Score
			}
			return result.Prompt, result.Sources, stats
		}
		logger.Warn("semantic search failed, falling back to keyword search", "error", err)
	}

	hits := s.keywordIndex.Search(query)
	stats.hits = len(hits)
	if len(hits) > 0 {
		stats.topScore = hits[0].Score
	}
	return keyword.BuildPrompt(query, hits, locale), keyword.ToSourceRefs(hits), stats
}

// streamResponse emits the framed byte stream. Headers disable buffering
// along the proxy chain so tokens reach the client as generated.
func (s *Server) streamResponse(w http.ResponseWriter, r *http.Request, sources []rag.SourceRef, gen gemini.Generator, prompt string, logger log.Logger) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("X-Accel-Buffering", "no")

	if err := stream.Merge(w, sources, gen.Stream(r.Context(), prompt)); err != nil {
		// Headers are long gone; the error marker is already on the wire.
		logger.Warn("response stream ended with error", "error", err)
	}
}

// recordPromptLog persists the entry off the request path. The request
// context is detached so client disconnects do not lose the record.
func (s *Server) recordPromptLog(r *http.Request, entry promptlog.Entry) {
	if !s.promptLog.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 5*time.Second)
	go func() {
		defer cancel()
		s.promptLog.Record(ctx, entry)
	}()
}

// prependHistory prefixes the prompt with prior conversation turns so
// follow-up questions resolve pronouns against earlier answers.
func prependHistory(prompt string, history []chatMessage) string {
	if len(history) == 0 {
		return prompt
	}

	var sb strings.Builder
	sb.WriteString("PREVIOUS CONVERSATION:\n")
	for _, msg := range history {
		role := "USER"
		if msg.Role == "assistant" {
			role = "ASSISTANT"
		}
		sb.WriteString(role)
		sb.WriteString(": ")
		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(prompt)
	return sb.String()
}
