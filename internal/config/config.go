package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	HTTP     HTTPConfig
	Redis    RedisConfig
	Gemini   GeminiConfig
	Ollama   OllamaConfig
	Fetcher  FetcherConfig
	Pipeline PipelineConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	SessionTTL   time.Duration
}

type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

type OllamaConfig struct {
	URL        string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

type FetcherConfig struct {
	MaxConcurrency int
	Timeout        time.Duration
	UserAgent      string
}

// PipelineConfig carries the tunable analysis constants. The relevance
// threshold and risk weights are hand-tuned values inherited from operator
// experience, not derived quantities, so they stay configurable.
type PipelineConfig struct {
	RetentionWindow    time.Duration
	BreakingWindow     time.Duration
	TopK               int
	ChunkSize          int
	ChunkOverlap       int
	RelevanceThreshold float64
	NegativeWeight     float64
	ViralWeight        float64
	MaxRevisions       int
	MaxSocialReplies   int
	SnippetLimit       int
	CriticMode         string // "rules" or "model"
}

type LogConfig struct {
	Level      string
	Format     string
	Output     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

func Load() (*Config, error) {
	// .env is a local development convenience; absent in containers.
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		HTTP: HTTPConfig{
			Port:         getEnvInt("PORT", 8080),
			ReadTimeout:  getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvDuration("HTTP_WRITE_TIMEOUT", 120*time.Second),
			IdleTimeout:  getEnvDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
		},
		Redis: RedisConfig{
			URL:          getEnv("REDIS_URL", ""),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			SessionTTL:   getEnvDuration("SESSION_TTL", 6*time.Hour),
		},
		Gemini: GeminiConfig{
			APIKey:      getEnv("GEMINI_API_KEY", ""),
			Model:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
			MaxTokens:   getEnvInt("GEMINI_MAX_TOKENS", 8192),
			Temperature: getEnvFloat("GEMINI_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("GEMINI_TIMEOUT", 60*time.Second),
			MaxRetries:  getEnvInt("GEMINI_MAX_RETRIES", 3),
			RetryDelay:  getEnvDuration("GEMINI_RETRY_DELAY", 2*time.Second),
		},
		Ollama: OllamaConfig{
			URL:        getEnv("OLLAMA_URL", "http://localhost:11434"),
			Model:      getEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
			Timeout:    getEnvDuration("OLLAMA_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvInt("OLLAMA_MAX_RETRIES", 3),
		},
		Fetcher: FetcherConfig{
			MaxConcurrency: getEnvInt("FETCHER_MAX_CONCURRENCY", 5),
			Timeout:        getEnvDuration("FETCHER_TIMEOUT", 30*time.Second),
			UserAgent:      getEnv("FETCHER_USER_AGENT", "BrandShield-Pipeline/1.0 (+https://brandshield.io/bot)"),
		},
		Pipeline: PipelineConfig{
			RetentionWindow:    getEnvDuration("RETENTION_WINDOW", 48*time.Hour),
			BreakingWindow:     getEnvDuration("BREAKING_WINDOW", 6*time.Hour),
			TopK:               getEnvInt("RETRIEVAL_TOP_K", 3),
			ChunkSize:          getEnvInt("CHUNK_SIZE", 500),
			ChunkOverlap:       getEnvInt("CHUNK_OVERLAP", 50),
			RelevanceThreshold: getEnvFloat("RELEVANCE_THRESHOLD", 0.25),
			NegativeWeight:     getEnvFloat("RISK_NEGATIVE_WEIGHT", 0.6),
			ViralWeight:        getEnvFloat("RISK_VIRAL_WEIGHT", 0.4),
			MaxRevisions:       getEnvInt("MAX_REVISIONS", 2),
			MaxSocialReplies:   getEnvInt("MAX_SOCIAL_REPLIES", 5),
			SnippetLimit:       getEnvInt("EVIDENCE_SNIPPET_LIMIT", 280),
			CriticMode:         getEnv("CRITIC_MODE", "rules"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			Output:     getEnv("LOG_OUTPUT", "stdout"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 28),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", cfg.HTTP.Port)
	}
	if cfg.Pipeline.MaxRevisions < 0 {
		return fmt.Errorf("MAX_REVISIONS must be >= 0, got %d", cfg.Pipeline.MaxRevisions)
	}
	if cfg.Pipeline.ChunkOverlap >= cfg.Pipeline.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)",
			cfg.Pipeline.ChunkOverlap, cfg.Pipeline.ChunkSize)
	}
	if cfg.Pipeline.RelevanceThreshold < 0 || cfg.Pipeline.RelevanceThreshold > 1 {
		return fmt.Errorf("RELEVANCE_THRESHOLD must be within [0,1], got %f", cfg.Pipeline.RelevanceThreshold)
	}
	if cfg.Pipeline.CriticMode != "rules" && cfg.Pipeline.CriticMode != "model" {
		return fmt.Errorf("CRITIC_MODE must be \"rules\" or \"model\", got %q", cfg.Pipeline.CriticMode)
	}
	return nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
