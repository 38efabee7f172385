package config

import (
	"errors"
	"fmt"

	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration for the rebalance worker.
type Config struct {
	Worker    WorkerConfig    `mapstructure:"worker"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Sentiment SentimentConfig `mapstructure:"sentiment"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Log       LogConfig       `mapstructure:"log"`
}

type WorkerConfig struct {
	Concurrency int           `mapstructure:"concurrency"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
	ClaimTTL    time.Duration `mapstructure:"claim_ttl"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	JobsTopic       string   `mapstructure:"jobs_topic"`
	ExecutionsTopic string   `mapstructure:"executions_topic"`
}

type SentimentConfig struct {
	DaturaURL    string        `mapstructure:"datura_url"`
	DaturaAPIKey string        `mapstructure:"datura_api_key"`
	ChutesURL    string        `mapstructure:"chutes_url"`
	ChutesAPIKey string        `mapstructure:"chutes_api_key"`
	ChutesModel  string        `mapstructure:"chutes_model"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Env names differ from the key path for the worker and sentiment sections:
// WORKER_CONCURRENCY, DATURA_API_KEY, CHUTES_API_KEY and so on.
var bindings = map[string]string{
	"worker.concurrency":       "WORKER_CONCURRENCY",
	"worker.metrics_addr":      "METRICS_ADDR",
	"worker.job_timeout":       "WORKER_JOB_TIMEOUT",
	"worker.claim_ttl":         "WORKER_CLAIM_TTL",
	"redis.addr":               "REDIS_ADDR",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"kafka.brokers":            "KAFKA_BROKERS",
	"kafka.group_id":           "KAFKA_GROUP_ID",
	"kafka.jobs_topic":         "KAFKA_JOBS_TOPIC",
	"kafka.executions_topic":   "KAFKA_EXECUTIONS_TOPIC",
	"sentiment.datura_url":     "DATURA_URL",
	"sentiment.datura_api_key": "DATURA_API_KEY",
	"sentiment.chutes_url":     "CHUTES_URL",
	"sentiment.chutes_api_key": "CHUTES_API_KEY",
	"sentiment.chutes_model":   "CHUTES_MODEL",
	"sentiment.timeout":        "SENTIMENT_TIMEOUT",
	"postgres.dsn":             "POSTGRES_DSN",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
}

// LoadConfig reads .env (when present), environment variables and defaults.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.metrics_addr", ":9100")
	v.SetDefault("worker.job_timeout", 2*time.Minute)
	v.SetDefault("worker.claim_ttl", 24*time.Hour)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.group_id", "rebalancer")
	v.SetDefault("kafka.jobs_topic", "staking_jobs")
	v.SetDefault("kafka.executions_topic", "stake_executions")
	v.SetDefault("sentiment.datura_url", "https://apis.datura.ai/twitter")
	v.SetDefault("sentiment.chutes_url", "https://llm.chutes.ai/v1/completions")
	v.SetDefault("sentiment.chutes_model", "unsloth/Llama-3.2-3B-Instruct")
	v.SetDefault("sentiment.timeout", 30*time.Second)
	v.SetDefault("postgres.dsn", "postgres://localhost:5432/dividends?sslmode=disable")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
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

// Validate rejects configurations the worker cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Worker.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.Worker.Concurrency))
	}
	if c.Worker.ClaimTTL <= 0 {
		errs = append(errs, errors.New("WORKER_CLAIM_TTL must be positive"))
	}
	if len(c.Kafka.Brokers) == 0 || c.Kafka.Brokers[0] == "" {
		errs = append(errs, errors.New("KAFKA_BROKERS cannot be empty"))
	}
	if c.Sentiment.DaturaAPIKey == "" {
		errs = append(errs, errors.New("DATURA_API_KEY is required"))
	}
	if c.Sentiment.ChutesAPIKey == "" {
		errs = append(errs, errors.New("CHUTES_API_KEY is required"))
	}
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("POSTGRES_DSN is required"))
	}
	return errors.Join(errs...)
}
