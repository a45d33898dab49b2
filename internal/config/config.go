// Package config loads application settings from viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides (OOK_DB_PATH etc).
const EnvPrefix = "OOK"

// Config holds all application configuration
type Config struct {
	DBPath    string
	LogLevel  string
	Embedding EmbeddingConfig
	Search    SearchConfig
	Enrich    EnrichConfig
	Cache     CacheConfig
	Server    ServerConfig
}

// EmbeddingConfig selects and configures the embedding provider.
type EmbeddingConfig struct {
	Provider  string // hash, openai
	Model     string
	Dimension int
	BaseURL   string
	APIKey    string
}

// SearchConfig configures the lexical and vector indices.
type SearchConfig struct {
	Metric         string // cosine, l2
	LexicalBackend string // fts5, bleve
	BlevePath      string
	Limit          int
}

// EnrichConfig configures OpenLibrary access and pacing.
type EnrichConfig struct {
	BaseURL      string
	UserAgent    string
	Timeout      time.Duration
	RequestDelay time.Duration
	BookDelay    time.Duration
	BaseBackoff  time.Duration
	MaxRetries   int
}

// CacheConfig configures the HTTP response cache.
type CacheConfig struct {
	Enabled bool
	DBFile  string
	TTL     time.Duration
}

// ServerConfig configures the JSON API server.
type ServerConfig struct {
	Addr string
}

// SetDefaults registers default values and environment bindings on the global viper instance.
func SetDefaults() {
	viper.SetDefault("db.path", "./ook.db")
	viper.SetDefault("log.level", "info")

	viper.SetDefault("embedding.provider", "hash")
	viper.SetDefault("embedding.model", "")
	viper.SetDefault("embedding.dimension", 768)
	viper.SetDefault("embedding.base_url", "")
	viper.SetDefault("embedding.api_key", "")

	viper.SetDefault("search.metric", "cosine")
	viper.SetDefault("search.lexical_backend", "fts5")
	viper.SetDefault("search.bleve_path", "")
	viper.SetDefault("search.limit", 10)

	viper.SetDefault("enrich.base_url", "https://openlibrary.org")
	viper.SetDefault("enrich.user_agent", "ook/1.0 (+https://github.com/lepinkainen/ook)")
	viper.SetDefault("enrich.timeout", "10s")
	viper.SetDefault("enrich.request_delay", "250ms")
	viper.SetDefault("enrich.book_delay", "250ms")
	viper.SetDefault("enrich.base_backoff", "1s")
	viper.SetDefault("enrich.max_retries", 5)

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.dbfile", "./cache.db")
	viper.SetDefault("cache.ttl", "720h") // 30 days

	viper.SetDefault("server.addr", "127.0.0.1:8080")

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// Load reads the current viper state into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:   viper.GetString("db.path"),
		LogLevel: viper.GetString("log.level"),
		Embedding: EmbeddingConfig{
			Provider:  viper.GetString("embedding.provider"),
			Model:     viper.GetString("embedding.model"),
			Dimension: viper.GetInt("embedding.dimension"),
			BaseURL:   viper.GetString("embedding.base_url"),
			APIKey:    viper.GetString("embedding.api_key"),
		},
		Search: SearchConfig{
			Metric:         viper.GetString("search.metric"),
			LexicalBackend: viper.GetString("search.lexical_backend"),
			BlevePath:      viper.GetString("search.bleve_path"),
			Limit:          viper.GetInt("search.limit"),
		},
		Enrich: EnrichConfig{
			BaseURL:      viper.GetString("enrich.base_url"),
			UserAgent:    viper.GetString("enrich.user_agent"),
			Timeout:      viper.GetDuration("enrich.timeout"),
			RequestDelay: viper.GetDuration("enrich.request_delay"),
			BookDelay:    viper.GetDuration("enrich.book_delay"),
			BaseBackoff:  viper.GetDuration("enrich.base_backoff"),
			MaxRetries:   viper.GetInt("enrich.max_retries"),
		},
		Cache: CacheConfig{
			Enabled: viper.GetBool("cache.enabled"),
			DBFile:  viper.GetString("cache.dbfile"),
			TTL:     viper.GetDuration("cache.ttl"),
		},
		Server: ServerConfig{
			Addr: viper.GetString("server.addr"),
		},
	}

	if cfg.Search.BlevePath == "" {
		cfg.Search.BlevePath = cfg.DBPath + ".bleve"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "db.path cannot be empty")
	}

	switch c.Embedding.Provider {
	case "hash", "openai":
	default:
		problems = append(problems, fmt.Sprintf("embedding.provider must be one of: hash, openai, got: %s", c.Embedding.Provider))
	}
	if c.Embedding.Dimension <= 0 {
		problems = append(problems, fmt.Sprintf("embedding.dimension must be positive, got: %d", c.Embedding.Dimension))
	}

	switch c.Search.Metric {
	case "cosine", "l2":
	default:
		problems = append(problems, fmt.Sprintf("search.metric must be one of: cosine, l2, got: %s", c.Search.Metric))
	}
	switch c.Search.LexicalBackend {
	case "fts5", "bleve":
	default:
		problems = append(problems, fmt.Sprintf("search.lexical_backend must be one of: fts5, bleve, got: %s", c.Search.LexicalBackend))
	}

	if c.Enrich.BaseURL == "" {
		problems = append(problems, "enrich.base_url cannot be empty")
	}
	if c.Enrich.MaxRetries < 0 {
		problems = append(problems, fmt.Sprintf("enrich.max_retries cannot be negative, got: %d", c.Enrich.MaxRetries))
	}
	if c.Enrich.RequestDelay < 0 || c.Enrich.BookDelay < 0 || c.Enrich.BaseBackoff < 0 {
		problems = append(problems, "enrich delays cannot be negative")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		problems = append(problems, fmt.Sprintf("log.level must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}
