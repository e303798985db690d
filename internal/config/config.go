// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Configuration holds all service configuration.
type Configuration struct {
	Service ServiceConfig
	Store   StoreConfig
	Ingest  IngestConfig
	Merge   MergeConfig
	Notify  NotifyConfig
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsPort string
}

// StoreConfig selects and configures the keyed store backend.
type StoreConfig struct {
	// Backend is "redis" or "memory".
	Backend   string
	RedisAddr string
	RedisDB   int
}

// IngestConfig configures the fragment sources.
type IngestConfig struct {
	// Kafka consumer for upstream worker output. Disabled when Enabled
	// is false or Brokers is empty.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Redis list the upstream workers push fragments onto.
	RedisListEnabled bool
	RedisListKey     string
}

// MergeConfig configures the merge engine.
type MergeConfig struct {
	Window       time.Duration
	TickInterval time.Duration
	SessionTTL   time.Duration
}

// NotifyConfig configures the change detector and fan-out.
type NotifyConfig struct {
	TickInterval time.Duration
	WriteTimeout time.Duration
}

// Load reads configuration from the environment, applying defaults.
func Load() *Configuration {
	return &Configuration{
		Service: ServiceConfig{
			Principal:   envOrDefault("SERVICE_PRINCIPAL", "svc-caption-merge"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8006"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Store: StoreConfig{
			Backend:   envOrDefault("STORE_BACKEND", "redis"),
			RedisAddr: envOrDefault("REDIS_ADDR", "localhost:6379"),
			RedisDB:   envIntOrDefault("REDIS_DB", 0),
		},
		Ingest: IngestConfig{
			KafkaEnabled:     envBoolOrDefault("KAFKA_ENABLED", false),
			KafkaBrokers:     envListOrDefault("KAFKA_BROKERS", nil),
			KafkaTopic:       envOrDefault("KAFKA_TOPIC", "caption.fragments"),
			KafkaGroupID:     envOrDefault("KAFKA_GROUP_ID", "caption-merge"),
			RedisListEnabled: envBoolOrDefault("REDIS_LIST_ENABLED", true),
			RedisListKey:     envOrDefault("REDIS_LIST_KEY", "caption:unmerged"),
		},
		Merge: MergeConfig{
			Window:       envDurationOrDefault("MERGE_WINDOW", 15*time.Second),
			TickInterval: envDurationOrDefault("MERGE_TICK_INTERVAL", 500*time.Millisecond),
			SessionTTL:   envDurationOrDefault("SESSION_TTL", 30*time.Minute),
		},
		Notify: NotifyConfig{
			TickInterval: envDurationOrDefault("NOTIFY_TICK_INTERVAL", 500*time.Millisecond),
			WriteTimeout: envDurationOrDefault("NOTIFY_WRITE_TIMEOUT", 5*time.Second),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDurationOrDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envListOrDefault(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}
