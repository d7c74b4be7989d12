package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	LLM       LLMConfig
	Embedding EmbeddingConfig
	Index     IndexConfig
	RAG       RAGConfig
	Ingestion IngestionConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
	RateLimit   float64 // requests per second per client; 0 disables
	RateBurst   int
}

type DatabaseConfig struct {
	URL      string // empty selects the in-memory document store
	MaxConns int
	MinConns int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type AuthConfig struct {
	JWTSecret string // empty disables bearer auth
}

type LLMConfig struct {
	OpenAIKey        string
	AnthropicKey     string
	OllamaURL        string
	DefaultProvider  string
	DefaultModel     string
	FallbackProvider string
	MaxRetries       int
	Temperature      float64
	MaxTokens        int
	TopP             float64
}

type EmbeddingConfig struct {
	Provider  string // "hash", "openai" or "ollama"
	Model     string
	Dimension int
	BatchSize int
}

type IndexConfig struct {
	Path string
}

type RAGConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	TopK                int
	SimilarityThreshold float64
	Overfetch           int
	PassageChars        int
	GenerationTimeout   time.Duration
	QueryGuard          string // "heuristic", "llm" or "off"
}

type IngestionConfig struct {
	NewsAPIKey  string
	Country     string
	Category    string
	BatchSize   int
	Interval    time.Duration
	Enricher    string // "lexicon", "llm" or "disabled"
	Concurrency int
	WatchDir    string
	RSSFeeds    []string
}

type LogConfig struct {
	Level slog.Level
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var p parser
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        p.int("SERVER_PORT", 8080),
			CORSOrigins: getEnvList("CORS_ORIGINS", []string{"*"}),
			RateLimit:   p.float("RATE_LIMIT_RPS", 20),
			RateBurst:   p.int("RATE_LIMIT_BURST", 40),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			MaxConns: p.int("DB_MAX_CONNS", 20),
			MinConns: p.int("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
			CacheTTL: p.duration("CACHE_TTL", time.Hour),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		LLM: LLMConfig{
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			AnthropicKey:     getEnv("ANTHROPIC_API_KEY", ""),
			OllamaURL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			DefaultProvider:  getEnv("LLM_DEFAULT_PROVIDER", "openai"),
			DefaultModel:     getEnv("LLM_MODEL", "gpt-3.5-turbo"),
			FallbackProvider: getEnv("LLM_FALLBACK_PROVIDER", ""),
			MaxRetries:       p.int("LLM_MAX_RETRIES", 2),
			Temperature:      p.float("LLM_TEMPERATURE", 0.2),
			MaxTokens:        p.int("LLM_MAX_TOKENS", 500),
			TopP:             p.float("LLM_TOP_P", 0.9),
		},
		Embedding: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", "hash"),
			Model:     getEnv("EMBEDDING_MODEL", ""),
			Dimension: p.int("EMBEDDING_DIM", 384),
			BatchSize: p.int("EMBEDDING_BATCH_SIZE", 32),
		},
		Index: IndexConfig{
			Path: getEnv("VECTOR_DB_PATH", "./data/vectors.idx"),
		},
		RAG: RAGConfig{
			ChunkSize:           p.int("CHUNK_SIZE", 400),
			ChunkOverlap:        p.int("CHUNK_OVERLAP", 50),
			TopK:                p.int("RAG_TOP_K", 5),
			SimilarityThreshold: p.float("VECTOR_SIMILARITY_THRESHOLD", 0.3),
			Overfetch:           p.int("RAG_OVERFETCH", 2),
			PassageChars:        p.int("RAG_PASSAGE_CHARS", 500),
			GenerationTimeout:   p.duration("LLM_TIMEOUT", 30*time.Second),
			QueryGuard:          getEnv("QUERY_GUARD", "heuristic"),
		},
		Ingestion: IngestionConfig{
			NewsAPIKey:  getEnv("NEWSAPI_KEY", ""),
			Country:     getEnv("NEWSAPI_COUNTRY", "us"),
			Category:    getEnv("INGESTION_CATEGORY", "general"),
			BatchSize:   p.int("INGESTION_BATCH_SIZE", 100),
			Interval:    p.duration("INGESTION_INTERVAL", time.Hour),
			Enricher:    getEnv("ENRICHER", "lexicon"),
			Concurrency: p.int("ENRICH_CONCURRENCY", 4),
			WatchDir:    getEnv("WATCH_DIR", ""),
			RSSFeeds:    getEnvList("RSS_FEEDS", nil),
		},
		Log: LogConfig{
			Level: p.level("LOG_LEVEL", slog.LevelInfo),
		},
	}

	if p.err != nil {
		return nil, p.err
	}
	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate rejects settings that would make the retrieval core misbehave.
// These are configuration faults and should stop the process at startup.
func (c *Config) Validate() error {
	var problems []string
	if c.RAG.ChunkSize <= 0 {
		problems = append(problems, "CHUNK_SIZE must be positive")
	}
	if c.RAG.ChunkOverlap < 0 || c.RAG.ChunkOverlap >= c.RAG.ChunkSize {
		problems = append(problems, "CHUNK_OVERLAP must be in [0, CHUNK_SIZE)")
	}
	if c.Embedding.Dimension <= 0 {
		problems = append(problems, "EMBEDDING_DIM must be positive")
	}
	if c.Embedding.BatchSize <= 0 {
		problems = append(problems, "EMBEDDING_BATCH_SIZE must be positive")
	}
	if c.RAG.TopK <= 0 {
		problems = append(problems, "RAG_TOP_K must be positive")
	}
	if c.RAG.Overfetch < 1 {
		problems = append(problems, "RAG_OVERFETCH must be at least 1")
	}
	if c.RAG.SimilarityThreshold < 0 {
		problems = append(problems, "VECTOR_SIMILARITY_THRESHOLD must not be negative")
	}
	if c.Server.RateLimit < 0 {
		problems = append(problems, "RATE_LIMIT_RPS must not be negative")
	}
	if c.Index.Path == "" {
		problems = append(problems, "VECTOR_DB_PATH is required")
	}
	switch c.Embedding.Provider {
	case "hash", "openai", "ollama":
	default:
		problems = append(problems, fmt.Sprintf("unknown EMBEDDING_PROVIDER %q", c.Embedding.Provider))
	}
	switch c.RAG.QueryGuard {
	case "heuristic", "llm", "off":
	default:
		problems = append(problems, fmt.Sprintf("unknown QUERY_GUARD %q", c.RAG.QueryGuard))
	}
	switch c.Ingestion.Enricher {
	case "lexicon", "llm", "disabled":
	default:
		problems = append(problems, fmt.Sprintf("unknown ENRICHER %q", c.Ingestion.Enricher))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList splits a comma-separated variable, dropping empty items.
func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser keeps the first conversion error so Load can report it once.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return n
}

func (p *parser) float(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return f
}

func (p *parser) duration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return fallback
	}
	return d
}

func (p *parser) level(key string, fallback slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(v)); err != nil {
		p.fail(key, err)
		return fallback
	}
	return lvl
}

func (p *parser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}
