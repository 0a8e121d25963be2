package profile

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
// All values are read once at process start; there is no hot reload.
type Profile struct {
	// LLM configuration (OpenAI-compatible protocol).
	// All providers (openai, deepseek, siliconflow, ollama) use the same config.
	LLMProvider string // Provider identifier: openai, deepseek, siliconflow, ollama
	LLMAPIKey   string
	LLMBaseURL  string // Optional, has default per provider
	LLMModel    string
	LLMTimeout  int // LLM request timeout in seconds (default: 120)

	// Embedding configuration
	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingAPIKey     string
	EmbeddingBaseURL    string
	EmbeddingDimensions int
	EmbeddingTimeout    int // Embedding request timeout in seconds (default: 30)

	// Redis configuration for the embedding and response caches.
	RedisHost     string
	RedisPort     int
	RedisDB       int
	RedisPassword string

	// Response cache tuning. The distance threshold is calibrated against the
	// configured embedding model; changing the model invalidates it.
	CacheDistanceThreshold float64
	CacheTTLSeconds        int

	// Server and storage configuration
	Mode    string // dev, prod
	Addr    string
	Port    int
	Driver  string // postgres, sqlite
	DSN     string
	Version string
}

// Provider default configurations for the LLM.
// Used when LLM_BASE_URL is not explicitly set.
var llmProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-72B-Instruct",
	},
	"ollama": {
		BaseURL: "http://localhost:11434",
		Model:   "llama3.1",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// RedisAddr returns the host:port address of the cache backend.
func (p *Profile) RedisAddr() string {
	return fmt.Sprintf("%s:%d", p.RedisHost, p.RedisPort)
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float64 or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.LLMProvider = getEnvOrDefault("REVIEWSENSE_LLM_PROVIDER", "openai")
	p.LLMAPIKey = getEnvOrDefault("REVIEWSENSE_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("REVIEWSENSE_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("REVIEWSENSE_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("REVIEWSENSE_LLM_TIMEOUT_SECONDS", 120)

	if p.LLMProvider != "" {
		if _, ok := llmProviderDefaults[p.LLMProvider]; !ok {
			slog.Warn("unknown LLM provider, using default: openai", "provider", p.LLMProvider)
			p.LLMProvider = "openai"
		}
	}
	if p.LLMBaseURL == "" || p.LLMModel == "" {
		if defaults, ok := llmProviderDefaults[p.LLMProvider]; ok {
			if p.LLMBaseURL == "" {
				p.LLMBaseURL = defaults.BaseURL
			}
			if p.LLMModel == "" {
				p.LLMModel = defaults.Model
			}
		}
	}

	p.EmbeddingProvider = getEnvOrDefault("REVIEWSENSE_EMBEDDING_PROVIDER", "siliconflow")
	p.EmbeddingModel = getEnvOrDefault("REVIEWSENSE_EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2")
	p.EmbeddingAPIKey = getEnvOrDefault("REVIEWSENSE_EMBEDDING_API_KEY", p.LLMAPIKey)
	p.EmbeddingBaseURL = getEnvOrDefault("REVIEWSENSE_EMBEDDING_BASE_URL", "https://api.siliconflow.cn/v1")
	p.EmbeddingDimensions = getEnvOrDefaultInt("REVIEWSENSE_EMBEDDING_DIMENSIONS", 384)
	p.EmbeddingTimeout = getEnvOrDefaultInt("REVIEWSENSE_EMBEDDING_TIMEOUT_SECONDS", 30)

	p.RedisHost = getEnvOrDefault("REVIEWSENSE_REDIS_HOST", "localhost")
	p.RedisPort = getEnvOrDefaultInt("REVIEWSENSE_REDIS_PORT", 6379)
	p.RedisDB = getEnvOrDefaultInt("REVIEWSENSE_REDIS_DB", 0)
	p.RedisPassword = getEnvOrDefault("REVIEWSENSE_REDIS_PASSWORD", "")

	p.CacheDistanceThreshold = getEnvOrDefaultFloat("REVIEWSENSE_CACHE_DISTANCE_THRESHOLD", 0.2)
	p.CacheTTLSeconds = getEnvOrDefaultInt("REVIEWSENSE_CACHE_TTL_SECONDS", 1800)
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	switch p.Driver {
	case "postgres", "sqlite":
	default:
		return errors.Errorf("unsupported driver %q, expected postgres or sqlite", p.Driver)
	}
	if p.DSN == "" {
		return errors.New("dsn required")
	}

	if p.LLMAPIKey == "" && p.LLMProvider != "ollama" {
		return errors.Errorf("LLM API key required for provider %q", p.LLMProvider)
	}
	if p.EmbeddingDimensions <= 0 {
		return errors.Errorf("invalid embedding dimensions: %d", p.EmbeddingDimensions)
	}
	if p.CacheDistanceThreshold < 0 || p.CacheDistanceThreshold > 1 {
		return errors.Errorf("cache distance threshold out of range [0,1]: %f", p.CacheDistanceThreshold)
	}
	if p.CacheTTLSeconds <= 0 {
		return errors.Errorf("cache ttl must be positive: %d", p.CacheTTLSeconds)
	}

	return nil
}
