// Package server exposes the blog search assistant over HTTP: a streaming
// POST /api/search endpoint plus health probes, behind recovery, request
// id, logging, CORS and per-IP rate limiting middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hannadev/blogsearch/internal/gemini"
	"github.com/hannadev/blogsearch/internal/keyword"
	"github.com/hannadev/blogsearch/internal/log"
	"github.com/hannadev/blogsearch/internal/promptlog"
	"github.com/hannadev/blogsearch/internal/rag"
)

// Config assembles the server's collaborators.
type Config struct {
	Logger        log.Logger
	RAGService    *rag.Service    // nil disables the semantic path
	KeywordIndex  *keyword.Index  // required, backs the fallback path
	Generator     gemini.Generator // required unless MockMode
	PromptLog     *promptlog.Logger // optional
	MockMode      bool
	DefaultLocale string
	CORSOrigins   []string
	TrustProxy    bool
	RateBurst     int // 0 = default 30
}

// Server is the search API HTTP server.
type Server struct {
	mux           *http.ServeMux
	logger        log.Logger
	ragService    *rag.Service
	keywordIndex  *keyword.Index
	generator     gemini.Generator
	promptLog     *promptlog.Logger
	mockMode      bool
	defaultLocale string
}

// NewServer creates the server with all routes and middleware configured.
func NewServer(cfg Config) (*Server, error) {
	if cfg.KeywordIndex == nil {
		return nil, errors.New("keyword index is required")
	}
	if cfg.Generator == nil && !cfg.MockMode {
		return nil, errors.New("generator is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	promptLog := cfg.PromptLog
	if promptLog == nil {
		var err error
		promptLog, err = promptlog.New(context.Background(), "", logger)
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		logger:        logger,
		ragService:    cfg.RAGService,
		keywordIndex:  cfg.KeywordIndex,
		generator:     cfg.Generator,
		promptLog:     promptLog,
		mockMode:      cfg.MockMode,
		defaultLocale: rag.NormalizeLocale(cfg.DefaultLocale),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.search)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 30
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> CORS -> RateLimit -> Routes
	// CORS sits before RateLimit so preflight OPTIONS gets proper headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", s.health)
	topMux.HandleFunc("GET /ready", s.ready)
	topMux.Handle("/", handler)

	s.mux = topMux
	return s, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves until ctx is canceled, then shuts down gracefully.
// WriteTimeout stays unset: answer streams are open-ended.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.logger.Info("server stopped")
	return <-errCh
}
