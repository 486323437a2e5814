package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Logging    LoggingConfig
	LLM        LLMConfig
	Embedding  EmbeddingConfig
	Redis      RedisConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, takes precedence over the parts below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
	ListingsTable      string
	VectorTable        string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	StaticDir      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// SearchConfig holds retrieval policy defaults
type SearchConfig struct {
	DefaultLimit    int
	MaxLimit        int
	StructuredLimit int
	SemanticK       int
	MaxContextLines int
	FilterSemantic  bool // apply the structured filters to vector search as well
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LLMConfig holds the chat completion endpoint configuration
type LLMConfig struct {
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	MaxRetries  int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// EmbeddingConfig holds the embedding endpoint configuration
type EmbeddingConfig struct {
	APIKey         string
	APIBase        string
	Model          string
	Dimensions     int
	BatchSize      int
	MaxInputTokens int // context length of the embedding model
	Timeout        time.Duration
}

// RedisConfig holds the query embedding cache configuration.
// The cache is disabled when Addr is empty.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// ErrMissingLLMKey is returned by Validate when no chat completion key is configured.
var ErrMissingLLMKey = errors.New("OPENROUTER_API_KEY is not set")

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "real_estate"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
			ListingsTable:      getEnv("PG_LISTINGS_TABLE", "listings"),
			VectorTable:        getEnv("PG_VECTOR_TABLE", "listing_vectors"),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8000),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			StaticDir:      getEnv("STATIC_DIR", "./static"),
			RateLimitRPS:   getEnvAsFloat("RATE_LIMIT_RPS", 5),
			RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
		Search: SearchConfig{
			DefaultLimit:    getEnvAsInt("SEARCH_DEFAULT_LIMIT", 20),
			MaxLimit:        getEnvAsInt("SEARCH_MAX_LIMIT", 100),
			StructuredLimit: getEnvAsInt("SEARCH_STRUCTURED_LIMIT", 10),
			SemanticK:       getEnvAsInt("SEARCH_SEMANTIC_K", 5),
			MaxContextLines: getEnvAsInt("SEARCH_MAX_CONTEXT_LINES", 15),
			FilterSemantic:  getEnvAsBool("SEARCH_FILTER_SEMANTIC", true),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		LLM: LLMConfig{
			APIKey:      getEnv("OPENROUTER_API_KEY", ""),
			APIBase:     getEnv("LLM_API_BASE", "https://openrouter.ai/api/v1"),
			Model:       getEnv("LLM_MODEL", "gpt-4o"),
			Temperature: getEnvAsFloat("LLM_TEMPERATURE", 0.2),
			MaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 1024),
			MaxRetries:  getEnvAsInt("LLM_MAX_RETRIES", 3),
			BaseDelay:   getEnvAsDuration("LLM_RETRY_BASE_DELAY", 2*time.Second),
			Timeout:     getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		},
		Embedding: EmbeddingConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			APIBase:        getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			Model:          getEnv("EMBEDDING_MODEL", "text-embedding-ada-002"),
			Dimensions:     getEnvAsInt("EMBEDDING_DIMENSIONS", 1536),
			BatchSize:      getEnvAsInt("EMBEDDING_BATCH_SIZE", 100),
			MaxInputTokens: getEnvAsInt("EMBEDDING_MAX_INPUT_TOKENS", 8191),
			Timeout:        getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "estatechat:"),
			TTL:      getEnvAsDuration("REDIS_TTL", 24*time.Hour),
		},
	}

	return cfg, nil
}

// Validate reports settings the chat service cannot start without
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return ErrMissingLLMKey
	}
	if c.Search.StructuredLimit <= 0 || c.Search.SemanticK <= 0 || c.Search.MaxContextLines <= 0 {
		return fmt.Errorf("search limits must be positive (structured=%d semantic=%d lines=%d)",
			c.Search.StructuredLimit, c.Search.SemanticK, c.Search.MaxContextLines)
	}
	return nil
}

// GetPostgreSQLDSN returns PostgreSQL connection string
func (c *Config) GetPostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}

	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Int("default", defaultValue).Msg("invalid integer value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Float64("default", defaultValue).Msg("invalid float value, using default")
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Warn().Str("key", key).Bool("default", defaultValue).Msg("invalid boolean value, using default")
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go durations ("2s", "500ms") or a bare number of seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	log.Warn().Str("key", key).Dur("default", defaultValue).Msg("invalid duration value, using default")
	return defaultValue
}
