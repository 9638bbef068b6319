package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"COINLEDGER_ADDR", "DATABASE_URL", "KAFKA_BROKERS", "AUDIT_TOPIC", "LOG_LEVEL", "OUTBOX_POLL_INTERVAL", "JWT_SIGNING_KEY"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Nil(t, cfg.Kafka.Brokers)
	assert.Equal(t, "coin-ledger.audit", cfg.Kafka.AuditTopic)
	assert.Equal(t, time.Second, cfg.Outbox.PollInterval)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.NotEmpty(t, cfg.Auth.JWTSigningKey)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("COINLEDGER_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SEED_DEMO_DATA", "true")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "not-a-number")
	t.Setenv("RATE_LIMIT_GOD_MODE_PER_MINUTE", "5")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.True(t, cfg.SeedDemo)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Limits.GodModePerMinute)
	assert.Equal(t, 120, cfg.Limits.CoinOpsPerMinute)
}
