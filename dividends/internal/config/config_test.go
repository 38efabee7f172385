package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "secret")
	t.Setenv("CACHE_TTL", "300")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HTTP_REQUEST_TIMEOUT", "10s")
	t.Setenv("REDIS_ADDR", "cache:6379")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Auth.Token)
	assert.Equal(t, 300*time.Second, cfg.Cache.TTLDuration())
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, "staking_jobs", cfg.Kafka.JobsTopic)
	assert.Equal(t, uint16(42), cfg.Ledger.SS58Prefix)
	assert.Equal(t, 2*time.Second, cfg.Postgres.AuditTimeout)
}

func TestLoadConfig_RequiresToken(t *testing.T) {
	t.Setenv("AUTH_TOKEN", "")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "AUTH_TOKEN")
}

func TestValidate_RejectsNonPositiveTTL(t *testing.T) {
	cfg := Config{
		Auth:   AuthConfig{Token: "x"},
		Cache:  CacheConfig{TTL: 0},
		Kafka:  KafkaConfig{Brokers: []string{"k:9092"}},
		Ledger: LedgerConfig{URL: "ws://node"},
		HTTP:   HTTPConfig{RequestTimeout: time.Second},
	}
	assert.ErrorContains(t, cfg.Validate(), "CACHE_TTL")

	cfg.Cache.TTL = 1
	assert.NoError(t, cfg.Validate())
}
