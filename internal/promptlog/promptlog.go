// Package promptlog records search queries and retrieval stats in Postgres
// for later prompt-quality analysis. The whole package is optional: without
// a database URL the logger is a no-op and the search path never notices.
package promptlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hannadev/blogsearch/internal/log"
)

// Entry is one logged search request.
type Entry struct {
	Query       string
	Locale      string
	RAGEnabled  bool
	SourceCount int
	HitCount    int
	TopScore    float64
	Latency     time.Duration
	UserAgent   string
	Referer     string
}

// Logger writes entries to the prompt_logs table.
type Logger struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// New connects to the database. An empty databaseURL returns a disabled
// logger and no error.
func New(ctx context.Context, databaseURL string, logger log.Logger) (*Logger, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if databaseURL == "" {
		logger.Debug("prompt logging disabled, no database url")
		return &Logger{logger: logger}, nil
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting prompt log store: %w", err)
	}

	return &Logger{pool: pool, logger: logger}, nil
}

// Enabled reports whether entries are actually persisted.
func (l *Logger) Enabled() bool {
	return l != nil && l.pool != nil
}

// Record inserts one entry. Failures are logged and swallowed: prompt
// logging must never break a search request.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if !l.Enabled() {
		return
	}

	_, err := l.pool.Exec(ctx,
		`INSERT INTO prompt_logs
		   (query, locale, rag_enabled, source_count, hit_count, top_score, latency_ms, user_agent, referer)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.Query,
		entry.Locale,
		entry.RAGEnabled,
		entry.SourceCount,
		entry.HitCount,
		entry.TopScore,
		entry.Latency.Milliseconds(),
		entry.UserAgent,
		entry.Referer,
	)
	if err != nil {
		l.logger.Warn("prompt log insert failed", "error", err)
	}
}

// Close releases the connection pool.
func (l *Logger) Close() {
	if l.Enabled() {
		l.pool.Close()
	}
}
