// Package config loads process configuration from environment variables with
// sensible defaults. Tunables here are operational knobs, never correctness
// invariants.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds process configuration.
type Config struct {
	LogLevel string

	// Cache
	CacheBackend  string // "memory" or "redis"
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Orchestrator
	Parallel    bool
	MaxWorkers  int
	CallTimeout time.Duration

	// Synthesis
	MaxIterations int
	CatalogPath   string // empty = built-in catalog

	// Batch
	BatchConcurrency int
	BatchRatePerSec  float64

	// Audit
	AuditDBPath   string // empty = stdout logger only
	ArchiveBucket string
	ArchiveRegion string

	// Observability
	OTelEnabled  bool
	OTLPEndpoint string
}

// Load reads configuration from the environment.
func Load() *Config {
	return &Config{
		LogLevel: envString("LOG_LEVEL", "INFO"),

		CacheBackend:  envString("CACHE_BACKEND", "memory"),
		CacheTTL:      envDuration("CACHE_TTL", 15*time.Minute),
		RedisAddr:     envString("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Parallel:    envBool("PARALLEL_MODULES", true),
		MaxWorkers:  envInt("MAX_WORKERS", 4),
		CallTimeout: envDuration("CALL_TIMEOUT", 30*time.Second),

		MaxIterations: envInt("MAX_ITERATIONS", 5),
		CatalogPath:   os.Getenv("SNIPPET_CATALOG"),

		BatchConcurrency: envInt("BATCH_CONCURRENCY", 8),
		BatchRatePerSec:  envFloat("BATCH_RATE_PER_SEC", 0),

		AuditDBPath:   os.Getenv("AUDIT_DB_PATH"),
		ArchiveBucket: os.Getenv("ARCHIVE_BUCKET"),
		ArchiveRegion: envString("ARCHIVE_REGION", "us-east-1"),

		OTelEnabled:  envBool("OTEL_ENABLED", false),
		OTLPEndpoint: envString("OTLP_ENDPOINT", "localhost:4317"),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
