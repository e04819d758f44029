// Package config builds runtime configuration from the environment so main
// stays lean. Every knob has a development default; production overrides
// them per deployment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full runtime configuration.
type Config struct {
	Server ServerConfig
	DB     DBConfig
	Redis  RedisConfig
	Kafka  KafkaConfig
	Outbox OutboxConfig
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr          string
	JWTSigningKey string
}

// DBConfig selects the dossier store. An empty URL falls back to the
// in-memory store, which is only suitable for local development.
type DBConfig struct {
	URL string
}

// RedisConfig configures the notification feed store. An empty URL disables
// Redis and feeds stay in process memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the domain event publisher. No brokers means no
// Kafka sink.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// OutboxConfig tunes the dispatcher loop.
type OutboxConfig struct {
	Interval  time.Duration
	BatchSize int
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr:          envOr("DOSSIERFLOW_ADDR", ":8080"),
			JWTSigningKey: envOr("DOSSIERFLOW_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		},
		DB: DBConfig{
			URL: os.Getenv("DOSSIERFLOW_DATABASE_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("DOSSIERFLOW_REDIS_URL"),
			PoolSize:     envIntOr("DOSSIERFLOW_REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("DOSSIERFLOW_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDurationOr("DOSSIERFLOW_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDurationOr("DOSSIERFLOW_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDurationOr("DOSSIERFLOW_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("DOSSIERFLOW_KAFKA_BROKERS")),
			Topic:   envOr("DOSSIERFLOW_KAFKA_TOPIC", "dossier-events"),
		},
		Outbox: OutboxConfig{
			Interval:  envDurationOr("DOSSIERFLOW_OUTBOX_INTERVAL", 2*time.Second),
			BatchSize: envIntOr("DOSSIERFLOW_OUTBOX_BATCH_SIZE", 100),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(v)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitNonEmpty(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
