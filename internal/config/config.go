// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (config.yaml in the working directory)
//  3. Default values
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Gemini API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidChunking indicates the chunk size/overlap pair is invalid.
	ErrInvalidChunking = errors.New("invalid chunking configuration")

	// ErrInvalidTopK indicates the top-K value is out of range.
	ErrInvalidTopK = errors.New("invalid top-k")

	// ErrInvalidThreshold indicates the similarity threshold is out of range.
	ErrInvalidThreshold = errors.New("invalid similarity threshold")

	// ErrInvalidBatchSize indicates the embedding batch size is out of range.
	ErrInvalidBatchSize = errors.New("invalid embedding batch size")

	// ErrInvalidLocale indicates an unsupported default locale.
	ErrInvalidLocale = errors.New("invalid locale")
)

const (
	// DefaultEmbeddingModel is the default Gemini embedding model.
	// Deprecated aliases (text-embedding-001, text-embedding-004) are
	// normalized to this value; see NormalizeEmbeddingModel.
	DefaultEmbeddingModel = "gemini-embedding-001"

	// DefaultGenerationModel is the provider-qualified generation model.
	DefaultGenerationModel = "googleai/gemini-2.5-flash-lite"

	// DefaultAddr is the default listen address for the HTTP server.
	DefaultAddr = "127.0.0.1:3500"
)

// Config stores application configuration.
// SECURITY: Sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// RAG pipeline configuration
	Enabled             bool    `mapstructure:"rag_enabled" json:"rag_enabled"`
	EmbeddingModel      string  `mapstructure:"embedding_model" json:"embedding_model"`
	GenerationModel     string  `mapstructure:"generation_model" json:"generation_model"`
	ChunkSize           int     `mapstructure:"chunk_size" json:"chunk_size"`
	ChunkOverlap        int     `mapstructure:"chunk_overlap" json:"chunk_overlap"`
	TopK                int     `mapstructure:"top_k" json:"top_k"`
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold"`
	EmbeddingBatchSize  int     `mapstructure:"embedding_batch_size" json:"embedding_batch_size"`
	MockMode            bool    `mapstructure:"mock_mode" json:"mock_mode"`

	// Content sources
	ContentDir     string `mapstructure:"content_dir" json:"content_dir"`
	CustomDocsPath string `mapstructure:"custom_docs_path" json:"custom_docs_path"`
	IndexPath      string `mapstructure:"index_path" json:"index_path"`

	// Locale defaults ("ko" or "en")
	DefaultLocale string `mapstructure:"default_locale" json:"default_locale"`

	// HTTP server configuration
	Addr        string   `mapstructure:"addr" json:"addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Prompt logging (optional; empty disables logging)
	DatabaseURL string `mapstructure:"database_url" json:"database_url"` // SENSITIVE: masked in MarshalJSON

	// Tracing (optional; empty disables the exporter)
	OTELEndpoint string `mapstructure:"otel_endpoint" json:"otel_endpoint"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// Configuration file not found is not an error, use default values
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	cfg.EmbeddingModel = NormalizeEmbeddingModel(cfg.EmbeddingModel)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
// Pipeline defaults match the values the blog ships with.
func setDefaults(v *viper.Viper) {
	v.SetDefault("rag_enabled", false)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("generation_model", DefaultGenerationModel)
	v.SetDefault("chunk_size", 700)
	v.SetDefault("chunk_overlap", 120)
	v.SetDefault("top_k", 5)
	v.SetDefault("similarity_threshold", 0.6)
	v.SetDefault("embedding_batch_size", 100)
	v.SetDefault("mock_mode", false)

	v.SetDefault("content_dir", "content/blog")
	v.SetDefault("custom_docs_path", "content/rag/custom-documents.json")
	v.SetDefault("index_path", "public/rag-index.json")

	v.SetDefault("default_locale", "ko")

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("cors_origins", []string{"http://localhost:4321"})
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 0)
}

// bindEnvVariables binds environment variables explicitly.
// The RAG_* names are the recognized configuration surface of the search
// feature; BLOGSEARCH_* covers the server process itself.
func bindEnvVariables(v *viper.Viper) {
	// Helper to panic on unexpected bind errors (hardcoded strings can't fail)
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("rag_enabled", "RAG_ENABLED")
	mustBind("embedding_model", "RAG_EMBEDDING_MODEL")
	mustBind("generation_model", "RAG_MODEL")
	mustBind("chunk_size", "RAG_CHUNK_SIZE")
	mustBind("chunk_overlap", "RAG_CHUNK_OVERLAP")
	mustBind("top_k", "RAG_TOP_K")
	mustBind("similarity_threshold", "RAG_SIMILARITY_THRESHOLD")
	mustBind("embedding_batch_size", "RAG_EMBEDDING_BATCH_SIZE")
	mustBind("mock_mode", "RAG_MOCK_MODE")
	mustBind("content_dir", "RAG_CONTENT_DIR")
	mustBind("custom_docs_path", "RAG_CUSTOM_DOCS")
	mustBind("index_path", "RAG_INDEX_PATH")

	mustBind("addr", "BLOGSEARCH_ADDR")
	mustBind("cors_origins", "BLOGSEARCH_CORS_ORIGINS")
	mustBind("trust_proxy", "BLOGSEARCH_TRUST_PROXY")
	mustBind("rate_burst", "BLOGSEARCH_RATE_BURST")

	mustBind("database_url", "DATABASE_URL")
	mustBind("otel_endpoint", "OTEL_EXPORTER_ENDPOINT")

	// NOTE: GEMINI_API_KEY is read directly by Genkit, not via Viper.
	// Validate() checks its presence when the RAG path is enabled.
}

// NormalizeEmbeddingModel maps deprecated embedding model aliases to the
// current default. The aliases are not available on many Free Tier accounts.
func NormalizeEmbeddingModel(value string) string {
	normalized := strings.TrimSpace(value)
	if normalized == "" {
		return DefaultEmbeddingModel
	}
	if normalized == "text-embedding-001" || normalized == "text-embedding-004" {
		return DefaultEmbeddingModel
	}
	return normalized
}

// APIKey returns the Gemini API key from the environment.
func APIKey() string {
	return os.Getenv("GEMINI_API_KEY")
}

// Validate checks all configuration values and fails fast with a sentinel
// error when a value is out of range.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", ErrInvalidChunking, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", ErrInvalidChunking, c.ChunkOverlap)
	}
	if c.TopK <= 0 || c.TopK > 100 {
		return fmt.Errorf("%w: top_k must be in [1, 100], got %d", ErrInvalidTopK, c.TopK)
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity_threshold must be in [0, 1], got %g", ErrInvalidThreshold, c.SimilarityThreshold)
	}
	if c.EmbeddingBatchSize <= 0 || c.EmbeddingBatchSize > 1000 {
		return fmt.Errorf("%w: embedding_batch_size must be in [1, 1000], got %d", ErrInvalidBatchSize, c.EmbeddingBatchSize)
	}
	if c.DefaultLocale != "ko" && c.DefaultLocale != "en" {
		return fmt.Errorf("%w: %q (supported: ko, en)", ErrInvalidLocale, c.DefaultLocale)
	}
	return nil
}

// ValidateServe performs the additional checks required to run the server
// with the RAG path enabled.
func (c *Config) ValidateServe() error {
	if c.Enabled && !c.MockMode && APIKey() == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY is required when RAG_ENABLED is true", ErrMissingAPIKey)
	}
	return nil
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging.
// Secrets of 8 chars or fewer are fully masked to prevent substring matching.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return maskedValue
	}
	return s[:2] + "<" + maskedValue + ">" + s[len(s)-2:]
}

// MarshalJSON implements json.Marshaler with explicit sensitive field masking.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.DatabaseURL = maskSecret(a.DatabaseURL)
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
