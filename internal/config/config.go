package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"buildmarket/internal/money"

	"github.com/joho/godotenv"
)

// Idempotency key strategies for the payment gateway adapter.
const (
	KeyStrategyOrder       = "order"
	KeyStrategyOrderSeller = "order-seller"
)

type Config struct {
	ServerAddress string
	PostgresConn  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string

	PaymentGatewayEndpoint string
	PaymentTimeout         time.Duration
	PaymentMaxRetries      int

	PlatformCommissionBps  int64
	IdempotencyKeyStrategy string

	AllowRebid bool

	BOQArtifactDir string
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment")
	}

	cfg := &Config{
		ServerAddress: getEnvOrDefault("SERVER_ADDRESS", "0.0.0.0:8080"),
		PostgresConn:  os.Getenv("POSTGRES_CONN"),

		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		PaymentGatewayEndpoint: getEnvOrDefault("PAYMENT_GATEWAY_ENDPOINT", "http://localhost:9090/split-payments"),
		PaymentTimeout:         10 * time.Second,
		PaymentMaxRetries:      3,

		IdempotencyKeyStrategy: getEnvOrDefault("IDEMPOTENCY_KEY_STRATEGY", KeyStrategyOrder),

		BOQArtifactDir: getEnvOrDefault("BOQ_ARTIFACT_DIR", "./artifacts"),
	}

	if cfg.PostgresConn == "" {
		return nil, fmt.Errorf("POSTGRES_CONN env variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET env variable is not set")
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}

	if v := os.Getenv("PAYMENT_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PAYMENT_TIMEOUT: %w", err)
		}
		cfg.PaymentTimeout = d
	}

	if v := os.Getenv("PAYMENT_MAX_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid PAYMENT_MAX_RETRIES: %q", v)
		}
		cfg.PaymentMaxRetries = n
	}

	// Commission rate is configured as a decimal ("0.10") but carried as
	// basis points everywhere past this point.
	bps, err := money.ParseRateBps(getEnvOrDefault("PLATFORM_COMMISSION_RATE", "0.10"))
	if err != nil {
		return nil, fmt.Errorf("invalid PLATFORM_COMMISSION_RATE: %w", err)
	}
	cfg.PlatformCommissionBps = bps

	switch cfg.IdempotencyKeyStrategy {
	case KeyStrategyOrder, KeyStrategyOrderSeller:
	default:
		return nil, fmt.Errorf("invalid IDEMPOTENCY_KEY_STRATEGY: %q", cfg.IdempotencyKeyStrategy)
	}

	cfg.AllowRebid = getEnvOrDefault("ALLOW_REBID", "true") == "true"

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
