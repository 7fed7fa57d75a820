package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Database    DatabaseConfig
	AI          AIConfig
	Server      ServerConfig
	Cache       CacheConfig
	Similarity  SimilarityConfig
	Maintenance MaintenanceConfig
	Import      ImportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL     string
	SSLMode string
}

// AIConfig holds language-model provider settings. Both keys are optional;
// with neither set the engine runs on heuristics alone.
type AIConfig struct {
	GeminiKey      string
	GeminiModel    string
	EmbeddingModel string
	AnthropicKey   string
	AnthropicModel string
	MaxTokens      int64
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// CacheConfig holds similarity-cache settings
type CacheConfig struct {
	MaxSize       int
	TTL           time.Duration
	SweepInterval time.Duration
}

// SimilarityConfig holds similar-case ranking defaults
type SimilarityConfig struct {
	Limit    int
	MinScore float64
}

// MaintenanceConfig holds background scheduling settings
type MaintenanceConfig struct {
	RecalibrationSpec string
	StatsSpec         string
}

// ImportConfig holds case-import settings
type ImportConfig struct {
	DataDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	config := &Config{
		Database: DatabaseConfig{
			URL:     url,
			SSLMode: getEnvOrDefault("SSL_MODE", "disable"),
		},
		AI: AIConfig{
			GeminiKey:      os.Getenv("GEMINI_API_KEY"),
			GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
			EmbeddingModel: getEnvOrDefault("EMBEDDING_MODEL", "text-embedding-004"),
			AnthropicKey:   os.Getenv("ANTHROPIC_API_KEY"),
			AnthropicModel: getEnvOrDefault("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
			MaxTokens:      int64(getEnvIntOrDefault("MAX_TOKENS", 2048)),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8080"),
			ShutdownTimeout: getEnvDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			MaxSize:       getEnvIntOrDefault("CACHE_MAX_SIZE", 500),
			TTL:           getEnvDurationOrDefault("CACHE_TTL", time.Hour),
			SweepInterval: getEnvDurationOrDefault("CACHE_SWEEP_INTERVAL", time.Minute),
		},
		Similarity: SimilarityConfig{
			Limit:    getEnvIntOrDefault("SIMILARITY_LIMIT", 3),
			MinScore: getEnvFloatOrDefault("SIMILARITY_MIN_SCORE", 40),
		},
		Maintenance: MaintenanceConfig{
			RecalibrationSpec: getEnvOrDefault("RECALIBRATION_CRON", "0 3 * * *"),
			StatsSpec:         getEnvOrDefault("STATS_CRON", "*/30 * * * *"),
		},
		Import: ImportConfig{
			DataDir: getEnvOrDefault("DATA_DIR", "data"),
		},
	}

	if config.Cache.MaxSize <= 0 {
		return nil, fmt.Errorf("CACHE_MAX_SIZE must be positive")
	}
	if config.Similarity.MinScore < 0 || config.Similarity.MinScore > 100 {
		return nil, fmt.Errorf("SIMILARITY_MIN_SCORE must be within [0,100]")
	}

	return config, nil
}

// HasGemini reports whether a Gemini key is configured.
func (c *Config) HasGemini() bool { return c.AI.GeminiKey != "" }

// HasAnthropic reports whether an Anthropic key is configured.
func (c *Config) HasAnthropic() bool { return c.AI.AnthropicKey != "" }

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
