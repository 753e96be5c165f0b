package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures the full deployment surface for the anchor registry.
// Everything comes from environment variables so main stays lean.
type Config struct {
	Addr        string
	Environment string

	Database DatabaseConfig
	Identity IdentityConfig
	Ledger   LedgerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// DatabaseConfig selects the durable store backend. An empty URL selects the
// local-file backend instead; the two are never mixed at runtime.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// IdentityConfig configures the local-file identity store backend.
type IdentityConfig struct {
	FilePath string
}

// LedgerConfig configures the external ledger gateway. When Enabled is false
// submissions skip the anchor write entirely and verification reports
// match=true on the stored record alone.
type LedgerConfig struct {
	Enabled     bool
	Endpoint    string
	SigningKey  string
	ContractRef string
	Network     string
	Fast        bool
	Timeout     time.Duration
	CacheTTL    time.Duration
}

// RedisConfig configures the optional read cache in front of ledger lookups.
type RedisConfig struct {
	URL      string
	PoolSize int
}

// KafkaConfig configures the anchor event emitter. Empty brokers disable it.
type KafkaConfig struct {
	Brokers     string
	AnchorTopic string
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Addr:        envOr("YATRI_ADDR", ":8080"),
		Environment: envOr("YATRI_ENV", "development"),
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Identity: IdentityConfig{
			FilePath: envOr("IDENTITY_FILE", "data/identities.json"),
		},
		Ledger: LedgerConfig{
			Enabled:     os.Getenv("LEDGER_ENABLED") == "true",
			Endpoint:    os.Getenv("LEDGER_ENDPOINT"),
			SigningKey:  os.Getenv("LEDGER_SIGNING_KEY"),
			ContractRef: os.Getenv("LEDGER_CONTRACT"),
			Network:     envOr("LEDGER_NETWORK", "testnet"),
			Fast:        os.Getenv("LEDGER_FAST_WRITES") == "true",
			Timeout:     envDuration("LEDGER_TIMEOUT", 15*time.Second),
			CacheTTL:    envDuration("LEDGER_CACHE_TTL", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:      os.Getenv("REDIS_URL"),
			PoolSize: envInt("REDIS_POOL_SIZE", 10),
		},
		Kafka: KafkaConfig{
			Brokers:     os.Getenv("KAFKA_BROKERS"),
			AnchorTopic: envOr("KAFKA_ANCHOR_TOPIC", "identity.anchors"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
