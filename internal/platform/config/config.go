package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	pstrings "coinledger/pkg/platform/strings"
)

// Config is the full runtime configuration, read once in main.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Auth     AuthConfig
	Outbox   OutboxConfig
	Limits   RateLimitConfig
	LogLevel slog.Level
	SeedDemo bool
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// DatabaseConfig selects Postgres; an empty URL runs on in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	TxTimeout       time.Duration
}

// RedisConfig configures the notification publisher; empty URL disables it.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay; no brokers disables it.
type KafkaConfig struct {
	Brokers           []string
	AuditTopic        string
	ClientID          string
	Partitions        int32
	ReplicationFactor int16
}

type AuthConfig struct {
	JWTSigningKey string
	JWTIssuer     string
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// RateLimitConfig caps requests per actor per minute on each route group.
type RateLimitConfig struct {
	Disabled           bool
	CoinOpsPerMinute   int
	GodModePerMinute   int
	CorporatePerMinute int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	return Config{
		Server: Server{
			Addr:            getEnv("COINLEDGER_ADDR", ":8080"),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
			TxTimeout:       getDuration("DATABASE_TX_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           pstrings.SplitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:        getEnv("AUDIT_TOPIC", "coin-ledger.audit"),
			ClientID:          getEnv("KAFKA_CLIENT_ID", "coinledger"),
			Partitions:        int32(getInt("AUDIT_TOPIC_PARTITIONS", 3)),
			ReplicationFactor: int16(getInt("AUDIT_TOPIC_REPLICATION", 1)),
		},
		Auth: AuthConfig{
			JWTSigningKey: jwtSigningKey,
			JWTIssuer:     getEnv("JWT_ISSUER", "chaingive"),
		},
		Outbox: OutboxConfig{
			PollInterval: getDuration("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    getInt("OUTBOX_BATCH_SIZE", 100),
		},
		Limits: RateLimitConfig{
			Disabled:           os.Getenv("RATE_LIMIT_DISABLED") == "true",
			CoinOpsPerMinute:   getInt("RATE_LIMIT_COIN_OPS_PER_MINUTE", 120),
			GodModePerMinute:   getInt("RATE_LIMIT_GOD_MODE_PER_MINUTE", 20),
			CorporatePerMinute: getInt("RATE_LIMIT_CORPORATE_PER_MINUTE", 30),
		},
		LogLevel: parseLevel(os.Getenv("LOG_LEVEL")),
		SeedDemo: os.Getenv("SEED_DEMO_DATA") == "true",
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func parseLevel(raw string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}
