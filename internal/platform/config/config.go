package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr            string
	RegistryContext string
	JWTSigningKey   string
	// AdminToken gates the operator surfaces (audit reads). Empty leaves
	// them unmounted.
	AdminToken  string
	DatabaseURL string
	Redis       RedisConfig
	Kafka       KafkaConfig
	Oracle      OracleConfig
	FHE         FHEConfig
	LogLevel    string
	LogFormat   string
}

// RedisConfig holds Redis connection settings. An empty URL disables Redis
// and callers fall back to in-process caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds Kafka settings. Empty Brokers disables the outbox relay
// and the audit consumer.
type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
}

// OracleConfig holds decryption authority settings. Timeout bounds the
// round trip; Latency simulates it for the embedded dev authority.
type OracleConfig struct {
	Timeout time.Duration
	Latency time.Duration
}

// FHEConfig holds encryption backend settings for the embedded dev backend.
type FHEConfig struct {
	InitDelay time.Duration
	Latency   time.Duration
}

// ListingCacheTTL enforces retention for cached registry listings.
var ListingCacheTTL = 5 * time.Minute

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            envOr("GEOSEAL_ADDR", ":8080"),
		RegistryContext: envOr("GEOSEAL_CONTEXT", "geoseal-dev"),
		// Default for development - must be overridden in production
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		AdminToken:    os.Getenv("GEOSEAL_ADMIN_TOKEN"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(os.Getenv("KAFKA_BROKERS")),
			ConsumerGroup: envOr("KAFKA_CONSUMER_GROUP", "geoseal-audit"),
		},
		Oracle: OracleConfig{
			Timeout: envDuration("ORACLE_TIMEOUT", 30*time.Second),
			Latency: envDuration("ORACLE_LATENCY", 0),
		},
		FHE: FHEConfig{
			InitDelay: envDuration("FHE_INIT_DELAY", 0),
			Latency:   envDuration("FHE_LATENCY", 0),
		},
		LogLevel:  envOr("LOG_LEVEL", "info"),
		LogFormat: envOr("LOG_FORMAT", "json"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
