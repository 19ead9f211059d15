// Package config reads the gateway's settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr string
	GRPCAddr string

	DatabasePath string

	// RedisAddr and KafkaBrokers are optional; when empty the gateway falls
	// back to an in-memory idempotency cache and drops order events.
	RedisAddr    string
	KafkaBrokers string
	KafkaTopic   string

	CORSOrigins []string

	ServiceName  string
	OTLPEndpoint string

	StrictPlans    bool
	IdempotencyTTL time.Duration
	LogLevel       string
}

func DefaultConfig() Config {
	return Config{
		HTTPAddr:       ":8080",
		GRPCAddr:       ":9090",
		DatabasePath:   "gym_app.db",
		KafkaTopic:     "gym.orders",
		CORSOrigins:    []string{"*"},
		ServiceName:    "gym-membership",
		IdempotencyTTL: 24 * time.Hour,
		LogLevel:       "info",
	}
}

// Load overlays environment variables on DefaultConfig.
func Load() (Config, error) {
	cfg := DefaultConfig()

	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.GRPCAddr = getEnv("GRPC_ADDR", cfg.GRPCAddr)
	cfg.DatabasePath = getEnv("DATABASE_PATH", cfg.DatabasePath)
	cfg.RedisAddr = getEnv("REDIS_ADDR", cfg.RedisAddr)
	cfg.KafkaBrokers = getEnv("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.ServiceName = getEnv("OTEL_SERVICE_NAME", cfg.ServiceName)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	if v := os.Getenv("STRICT_PLANS"); v != "" {
		strict, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: STRICT_PLANS: %w", err)
		}
		cfg.StrictPlans = strict
	}

	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: IDEMPOTENCY_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, fmt.Errorf("config: IDEMPOTENCY_TTL must be positive, got %s", v)
		}
		cfg.IdempotencyTTL = ttl
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
