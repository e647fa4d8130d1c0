package server

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/hannadev/blogsearch/internal/corpus"
	"github.com/hannadev/blogsearch/internal/gemini"
	"github.com/hannadev/blogsearch/internal/keyword"
	"github.com/hannadev/blogsearch/internal/log"
	"github.com/hannadev/blogsearch/internal/rag"
	"github.com/hannadev/blogsearch/internal/stream"
	"github.com/hannadev/blogsearch/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// seqGenerator replays fixed tokens and records the prompt it was given.
type seqGenerator struct {
	tokens []string
	err    error

	prompt string
}

func (g *seqGenerator) Stream(_ context.Context, prompt string) iter.Seq2[string, error] {
	g.prompt = prompt
	return func(yield func(string, error) bool) {
		for _, token := range g.tokens {
			if !yield(token, nil) {
				return
			}
		}
		if g.err != nil {
			yield("", g.err)
		}
	}
}

type stubSource struct {
	docs []corpus.Document
	err  error
}

func (s *stubSource) Load() ([]corpus.Document, error) {
	return s.docs, s.err
}

func blogDocs() []corpus.Document {
	return []corpus.Document{
		{
			ID:          "react-fiber",
			Title:       "React Fiber in Reconcile Phase",
			Description: "How Fiber walks the tree",
			Tags:        []string{"react"},
			URL:         "/posts/react-fiber/",
			Content:     "Fiber is the reconciliation engine introduced in React 16.",
		},
		{
			ID:          "gardening",
			Title:       "Gardening Notes",
			Description: "Tomatoes",
			Tags:        []string{"garden"},
			URL:         "/posts/gardening/",
			Content:     "Tomatoes need sun.",
		},
	}
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.KeywordIndex == nil {
		cfg.KeywordIndex = keyword.NewIndex(blogDocs())
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	srv, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer() failed: %v", err)
	}
	return srv
}

func postSearch(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestSearch_KeywordFallbackPath(t *testing.T) {
	gen := &seqGenerator{tokens: []string{"Fiber는 ", "재조정 엔진입니다 (출처 1)"}}
	srv := newTestServer(t, Config{Generator: gen})

	rec := postSearch(t, srv, `{"prompt": "react fiber", "locale": "ko"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	content, sources := stream.Parse(rec.Body.String())
	if !strings.Contains(content, "재조정 엔진입니다") {
		t.Errorf("content = %q", content)
	}
	if len(sources) == 0 || sources[0].Slug != "/posts/react-fiber/" {
		t.Errorf("sources = %+v", sources)
	}

	if !strings.Contains(gen.prompt, "[1] React Fiber in Reconcile Phase") {
		t.Errorf("generator prompt missing numbered source:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "(출처 N)") {
		t.Error("generator prompt missing citation instruction")
	}
}

func TestSearch_SemanticPath(t *testing.T) {
	mock := testutil.NewMockEmbedder(4)
	mock.SetVector("What is Fiber?", []float32{1, 0, 0, 0})

	source := &stubSource{docs: blogDocs()}
	svc := rag.NewService(source, rag.NewEmbedder(mock, log.NewNop()), rag.ServiceOptions{
		ChunkSize:           700,
		ChunkOverlap:        120,
		TopK:                5,
		SimilarityThreshold: -1, // hash vectors score low; accept everything
		EmbeddingBatchSize:  100,
	}, log.NewNop())

	gen := &seqGenerator{tokens: []string{"answer"}}
	srv := newTestServer(t, Config{Generator: gen, RAGService: svc})

	rec := postSearch(t, srv, `{"query": "What is Fiber?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	_, sources := stream.Parse(rec.Body.String())
	if len(sources) == 0 {
		t.Fatal("no sources in semantic response")
	}
	if !strings.Contains(gen.prompt, "CONTEXT:") {
		t.Errorf("semantic prompt missing context section:\n%s", gen.prompt)
	}
}

func TestSearch_SemanticFailureFallsBackToKeyword(t *testing.T) {
	source := &stubSource{err: errors.New("content dir gone")}
	svc := rag.NewService(source, rag.NewEmbedder(testutil.NewMockEmbedder(4), log.NewNop()), rag.ServiceOptions{
		ChunkSize: 700, ChunkOverlap: 120, TopK: 5, EmbeddingBatchSize: 100,
	}, log.NewNop())

	gen := &seqGenerator{tokens: []string{"degraded answer"}}
	srv := newTestServer(t, Config{Generator: gen, RAGService: svc})

	rec := postSearch(t, srv, `{"prompt": "react fiber"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (degradation is invisible)", rec.Code)
	}

	if !strings.Contains(gen.prompt, "SOURCES:") {
		t.Errorf("fallback prompt is not the keyword variant:\n%s", gen.prompt)
	}
	content, sources := stream.Parse(rec.Body.String())
	if content != "degraded answer" {
		t.Errorf("content = %q", content)
	}
	if len(sources) == 0 {
		t.Error("fallback path produced no sources")
	}
}

func TestSearch_EmptyQueryRefusal(t *testing.T) {
	gen := &seqGenerator{tokens: []string{"정보를 찾을 수 없습니다"}}
	srv := newTestServer(t, Config{Generator: gen})

	rec := postSearch(t, srv, `{}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(gen.prompt, "관련된 소스를 찾지 못했습니다") {
		t.Errorf("empty query did not render refusal template:\n%s", gen.prompt)
	}
	if strings.Contains(rec.Body.String(), stream.SourcesStart) {
		t.Error("preamble emitted with no sources")
	}
}

func TestSearch_MalformedBodyDegrades(t *testing.T) {
	gen := &seqGenerator{tokens: []string{"ok"}}
	srv := newTestServer(t, Config{Generator: gen})

	rec := postSearch(t, srv, `{broken json`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestSearch_HistoryPrepended(t *testing.T) {
	gen := &seqGenerator{tokens: []string{"ok"}}
	srv := newTestServer(t, Config{Generator: gen})

	body := `{"prompt": "react", "history": [{"role":"user","content":"tell me about fiber"},{"role":"assistant","content":"Fiber is..."}]}`
	postSearch(t, srv, body)

	if !strings.HasPrefix(gen.prompt, "PREVIOUS CONVERSATION:\n") {
		t.Errorf("history not prepended:\n%s", gen.prompt)
	}
	if !strings.Contains(gen.prompt, "ASSISTANT: Fiber is...") {
		t.Errorf("assistant turn missing:\n%s", gen.prompt)
	}
}

func TestSearch_MockMode(t *testing.T) {
	if testing.Short() {
		t.Skip("mock mode replays the canned answer with real pacing")
	}
	srv := newTestServer(t, Config{MockMode: true})

	rec := postSearch(t, srv, `{"prompt": "anything"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	content, sources := stream.Parse(rec.Body.String())
	if len(sources) != len(gemini.MockSources) {
		t.Errorf("got %d sources, want %d", len(sources), len(gemini.MockSources))
	}
	if !strings.Contains(content, "React Fiber는") {
		t.Errorf("mock answer missing: %q", content[:min(len(content), 80)])
	}
}

func TestSearch_MidStreamError(t *testing.T) {
	gen := &seqGenerator{tokens: []string{"partial "}, err: errors.New("model exploded")}
	srv := newTestServer(t, Config{Generator: gen})

	rec := postSearch(t, srv, `{"prompt": "react"}`)
	out := rec.Body.String()
	if !strings.HasSuffix(out, stream.ErrorMarker) {
		t.Errorf("stream did not end with error marker: %q", out)
	}
}

func TestSearch_MethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, Config{Generator: &seqGenerator{}})

	req := httptest.NewRequest(http.MethodGet, "/api/search", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, Config{Generator: &seqGenerator{}})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/ready status = %d", rec.Code)
	}

	empty := newTestServer(t, Config{Generator: &seqGenerator{}, KeywordIndex: keyword.NewIndex(nil)})
	rec = httptest.NewRecorder()
	empty.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("empty index /ready status = %d, want 503", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	srv := newTestServer(t, Config{Generator: &seqGenerator{tokens: []string{"ok"}}, RateBurst: 1})

	first := postSearch(t, srv, `{"prompt": "react"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first request status = %d", first.Code)
	}

	second := postSearch(t, srv, `{"prompt": "react"}`)
	if second.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", second.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, Config{
		Generator:   &seqGenerator{},
		CORSOrigins: []string{"https://hanna-dev.co.kr"},
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://hanna-dev.co.kr")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://hanna-dev.co.kr" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/search", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS headers granted to unknown origin")
	}
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t, Config{Generator: &seqGenerator{tokens: []string{"ok"}}})

	rec := postSearch(t, srv, `{"prompt": "react"}`)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}
}
