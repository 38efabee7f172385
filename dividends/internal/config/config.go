package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the dividends API.
type Config struct {
	HTTP     HTTPConfig     `mapstructure:"http"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Ledger   LedgerConfig   `mapstructure:"ledger"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Log      LogConfig      `mapstructure:"log"`
}

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	AllowOrigins   []string      `mapstructure:"allow_origins"`
}

type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type CacheConfig struct {
	// TTL in seconds, as operators set it in CACHE_TTL.
	TTL int `mapstructure:"ttl"`
}

// TTLDuration converts the configured TTL to a duration.
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Second
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers   []string `mapstructure:"brokers"`
	JobsTopic string   `mapstructure:"jobs_topic"`
}

type LedgerConfig struct {
	URL        string `mapstructure:"url"`
	SS58Prefix uint16 `mapstructure:"ss58_prefix"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
	// AuditTimeout bounds a single background audit insert.
	AuditTimeout time.Duration `mapstructure:"audit_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var keys = []string{
	"http.addr", "http.request_timeout", "http.allow_origins",
	"auth.token",
	"cache.ttl",
	"redis.addr", "redis.password", "redis.db",
	"kafka.brokers", "kafka.jobs_topic",
	"ledger.url", "ledger.ss58_prefix",
	"postgres.dsn", "postgres.audit_timeout",
	"log.level", "log.format",
}

// LoadConfig reads .env (when present), environment variables and defaults.
// Keys map to env vars by upper-casing and replacing dots, e.g. cache.ttl
// is CACHE_TTL.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.allow_origins", []string{"*"})
	v.SetDefault("cache.ttl", 120)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.jobs_topic", "staking_jobs")
	v.SetDefault("ledger.url", "wss://entrypoint-finney.opentensor.ai:443")
	v.SetDefault("ledger.ss58_prefix", 42)
	v.SetDefault("postgres.dsn", "postgres://localhost:5432/dividends?sslmode=disable")
	v.SetDefault("postgres.audit_timeout", 2*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Auth.Token == "" {
		errs = append(errs, errors.New("AUTH_TOKEN is required"))
	}
	if c.Cache.TTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_TTL must be positive, got %d", c.Cache.TTL))
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
		errs = append(errs, errors.New("KAFKA_BROKERS cannot be empty"))
	}
	if c.Ledger.URL == "" {
		errs = append(errs, errors.New("LEDGER_URL is required"))
	}
	if c.HTTP.RequestTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_REQUEST_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}
