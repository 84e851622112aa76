package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	PostgresDSN string
	RabbitMQDSN string

	TransactionsQueue string

	Port string
	Env  string

	PrefetchCount      int
	DecisionTimeout    time.Duration
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// Load reads configuration from the environment, consulting a local .env
// file when one exists. Full DSNs may be given directly; otherwise they are
// assembled from the individual POSTGRES_* / RABBITMQ_* parts.
func Load() (*Config, error) {
	// A missing .env is fine in production; env vars take over.
	_ = godotenv.Load()

	cfg := &Config{
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		RabbitMQDSN:       os.Getenv("RABBITMQ_DSN"),
		TransactionsQueue: getEnv("TRANSACTIONS_QUEUE", "transactions"),
		Port:              getEnv("SERVER_PORT", "8080"),
		Env:               getEnv("ENVIRONMENT", "development"),
	}

	if cfg.PostgresDSN == "" {
		dsn, err := assemblePostgresDSN()
		if err != nil {
			return nil, err
		}
		cfg.PostgresDSN = dsn
	}

	if cfg.RabbitMQDSN == "" {
		dsn, err := assembleRabbitMQDSN()
		if err != nil {
			return nil, err
		}
		cfg.RabbitMQDSN = dsn
	}

	var err error
	if cfg.PrefetchCount, err = getEnvInt("PREFETCH_COUNT", 10); err != nil {
		return nil, err
	}
	if cfg.OutboxBatchSize, err = getEnvInt("OUTBOX_BATCH_SIZE", 100); err != nil {
		return nil, err
	}
	if cfg.DecisionTimeout, err = getEnvDuration("DECISION_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.OutboxPollInterval, err = getEnvDuration("OUTBOX_POLL_INTERVAL", time.Second); err != nil {
		return nil, err
	}

	return cfg, nil
}

func assemblePostgresDSN() (string, error) {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return "", fmt.Errorf("POSTGRES_DSN or POSTGRES_HOST environment variable is required")
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(os.Getenv("POSTGRES_USER"), os.Getenv("POSTGRES_PASSWORD")),
		Host:   host + ":" + getEnv("POSTGRES_PORT", "5432"),
		Path:   "/" + os.Getenv("POSTGRES_DB"),
	}
	return u.String(), nil
}

func assembleRabbitMQDSN() (string, error) {
	host := os.Getenv("RABBITMQ_HOST")
	if host == "" {
		return "", fmt.Errorf("RABBITMQ_DSN or RABBITMQ_HOST environment variable is required")
	}

	u := &url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(os.Getenv("RABBITMQ_USER"), os.Getenv("RABBITMQ_PASS")),
		Host:   host + ":" + getEnv("RABBITMQ_PORT", "5672"),
		Path:   "/",
	}
	return u.String(), nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
