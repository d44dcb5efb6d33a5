package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Inference  InferenceConfig
	Cache      CacheConfig
	Directory  DirectoryConfig
	Search     SearchConfig
	Extractor  ExtractorConfig
	Logging    LoggingConfig
}

// PostgreSQLConfig holds PostgreSQL database configuration
type PostgreSQLConfig struct {
	DSN                string // full connection string, wins over the parts below
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

// InferenceConfig holds the embedding/generation endpoint configuration
type InferenceConfig struct {
	BaseURL             string
	GenerateModel       string
	Temperature         float64
	GenerateTimeout     time.Duration
	EmbeddingModel      string
	EmbeddingDimensions int
	EmbeddingTimeout    time.Duration
}

// CacheConfig holds the semantic cache tuning knobs
type CacheConfig struct {
	ServeThreshold   float64 // minimum similarity to serve a cached answer
	DedupThreshold   float64 // minimum similarity to update in place instead of inserting
	LexicalThreshold float64 // token-overlap bar for the lexical fallback
	ScanLimit        int     // working-set size for lookup, most-used-first
	MaxEntries       int     // eviction ceiling for active entries
}

// DirectoryConfig holds the reference directory service configuration
type DirectoryConfig struct {
	BaseURL         string
	TTL             time.Duration
	MaxPages        int
	Timeout         time.Duration
	DefaultProvince string // ward lookups without province context fall back to this scope
}

// SearchConfig holds the downstream listing-search collaborator configuration
type SearchConfig struct {
	BaseURL      string
	Timeout      time.Duration
	DefaultLimit int
	MaxLimit     int
}

// ExtractorConfig holds rule-extractor and escalation tuning
type ExtractorConfig struct {
	LocationThreshold float64
	AmenityThreshold  float64
	EscalateBelow     int // escalate when completeness < this and complexity detected
	MaxMessageRunes   int
	MaxCommas         int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (optional)
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", "localhost"),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "rentcore"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Inference: InferenceConfig{
			BaseURL:             getEnv("INFERENCE_BASE_URL", "http://localhost:11434"),
			GenerateModel:       getEnv("INFERENCE_GENERATE_MODEL", "qwen2.5:7b"),
			Temperature:         getEnvAsFloat("INFERENCE_TEMPERATURE", 0.1),
			GenerateTimeout:     getEnvAsDuration("INFERENCE_GENERATE_TIMEOUT", 60*time.Second),
			EmbeddingModel:      getEnv("INFERENCE_EMBEDDING_MODEL", "nomic-embed-text"),
			EmbeddingDimensions: getEnvAsInt("INFERENCE_EMBEDDING_DIMENSIONS", 768),
			EmbeddingTimeout:    getEnvAsDuration("INFERENCE_EMBEDDING_TIMEOUT", 15*time.Second),
		},
		Cache: CacheConfig{
			ServeThreshold:   getEnvAsFloat("CACHE_SERVE_THRESHOLD", 0.85),
			DedupThreshold:   getEnvAsFloat("CACHE_DEDUP_THRESHOLD", 0.92),
			LexicalThreshold: getEnvAsFloat("CACHE_LEXICAL_THRESHOLD", 0.55),
			ScanLimit:        getEnvAsInt("CACHE_SCAN_LIMIT", 200),
			MaxEntries:       getEnvAsInt("CACHE_MAX_ENTRIES", 1000),
		},
		Directory: DirectoryConfig{
			BaseURL:         getEnv("DIRECTORY_BASE_URL", "http://localhost:9090"),
			TTL:             getEnvAsDuration("DIRECTORY_TTL", 24*time.Hour),
			MaxPages:        getEnvAsInt("DIRECTORY_MAX_PAGES", 50),
			Timeout:         getEnvAsDuration("DIRECTORY_TIMEOUT", 10*time.Second),
			DefaultProvince: getEnv("DIRECTORY_DEFAULT_PROVINCE", "79"),
		},
		Search: SearchConfig{
			BaseURL:      getEnv("LISTING_SEARCH_BASE_URL", "http://localhost:9091"),
			Timeout:      getEnvAsDuration("LISTING_SEARCH_TIMEOUT", 15*time.Second),
			DefaultLimit: getEnvAsInt("LISTING_SEARCH_DEFAULT_LIMIT", 10),
			MaxLimit:     getEnvAsInt("LISTING_SEARCH_MAX_LIMIT", 50),
		},
		Extractor: ExtractorConfig{
			LocationThreshold: getEnvAsFloat("EXTRACTOR_LOCATION_THRESHOLD", 0.72),
			AmenityThreshold:  getEnvAsFloat("EXTRACTOR_AMENITY_THRESHOLD", 0.55),
			EscalateBelow:     getEnvAsInt("EXTRACTOR_ESCALATE_BELOW", 2),
			MaxMessageRunes:   getEnvAsInt("EXTRACTOR_MAX_MESSAGE_RUNES", 200),
			MaxCommas:         getEnvAsInt("EXTRACTOR_MAX_COMMAS", 3),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// The hash-embedding fallback buckets tokens modulo the dimension, so a
	// non-positive dimension can never be allowed through.
	if cfg.Inference.EmbeddingDimensions < 1 {
		log.Printf("Warning: INFERENCE_EMBEDDING_DIMENSIONS %d is not positive, using default 768",
			cfg.Inference.EmbeddingDimensions)
		cfg.Inference.EmbeddingDimensions = 768
	}

	// A near-duplicate close enough to be served must never be inserted as a
	// second row, so the dedup bar can never sit below the serve bar.
	if cfg.Cache.DedupThreshold < cfg.Cache.ServeThreshold {
		log.Printf("Warning: CACHE_DEDUP_THRESHOLD %.2f below serve threshold, raising to %.2f",
			cfg.Cache.DedupThreshold, cfg.Cache.ServeThreshold)
		cfg.Cache.DedupThreshold = cfg.Cache.ServeThreshold
	}

	return cfg, nil
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
		log.Printf("Warning: Invalid integer value for %s, using default %d", key, defaultValue)
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
		log.Printf("Warning: Invalid float value for %s, using default %f", key, defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration value for %s, using default %s", key, defaultValue)
		return defaultValue
	}
	return value
}
