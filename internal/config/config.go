package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	CartStoreRedis  = "redis"
	CartStoreMongo  = "mongo"
	CartStoreMemory = "memory"
)

type Config struct {
	HTTPPort           string
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64

	Postgres struct {
		Host           string
		Port           int
		User           string
		Password       string
		DBName         string
		MigrationsPath string
	}

	CartStore     string
	SessionTTL    time.Duration
	SecureCookies bool
	Redis         struct {
		Addr     string
		Password string
		DB       int
	}
	Mongo struct {
		URI    string
		DBName string
	}
	CatalogCacheTTL time.Duration

	KafkaBrokers     []string
	OrderEventsTopic string

	PayPay struct {
		BaseURL    string
		APIKey     string
		APISecret  string
		MerchantID string
		Timeout    time.Duration
	}

	Currency          string
	FrontendBaseURL   string
	MaxPollDuration   time.Duration
	OutboxInterval    time.Duration
	ReconcileInterval time.Duration

	LogLevel  string
	LogPretty bool
}

// Load reads the configuration from the environment. When envFile is set its values are loaded
// first; variables already present in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		CartStore:          strings.ToLower(getEnv("CART_STORE", CartStoreRedis)),
		SessionTTL:         getEnvDuration("SESSION_TTL", 24*time.Hour),
		SecureCookies:      getEnvBool("SECURE_COOKIES", false),
		CatalogCacheTTL:    getEnvDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		KafkaBrokers:       getEnvList("KAFKA_BROKERS", []string{"localhost:9092"}),
		OrderEventsTopic:   getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		Currency:           getEnv("CURRENCY", "JPY"),
		FrontendBaseURL:    strings.TrimRight(getEnv("FRONTEND_BASE_URL", "http://localhost:3000"), "/"),
		MaxPollDuration:    getEnvDuration("MAX_POLL_DURATION", 5*time.Minute),
		OutboxInterval:     getEnvDuration("OUTBOX_INTERVAL", time.Second),
		ReconcileInterval:  getEnvDuration("RECONCILE_INTERVAL", 30*time.Second),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvBool("LOG_PRETTY", false),
	}

	cfg.Postgres.Host = getEnv("DB_HOST", "localhost")
	cfg.Postgres.Port = getEnvInt("DB_PORT", 5432)
	cfg.Postgres.User = getEnv("DB_USER", "postgres")
	cfg.Postgres.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Postgres.DBName = getEnv("DB_NAME", "takeout")
	cfg.Postgres.MigrationsPath = getEnv("MIGRATIONS_PATH", "internal/repository/migrations")

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	cfg.Mongo.URI = getEnv("MONGO_URI", "mongodb://localhost:27017")
	cfg.Mongo.DBName = getEnv("MONGO_DB_NAME", "takeout")

	cfg.PayPay.BaseURL = strings.TrimRight(getEnv("PAYPAY_BASE_URL", "https://stg-api.sandbox.paypay.ne.jp"), "/")
	cfg.PayPay.APIKey = getEnv("PAYPAY_API_KEY", "")
	cfg.PayPay.APISecret = getEnv("PAYPAY_API_SECRET", "")
	cfg.PayPay.MerchantID = getEnv("PAYPAY_MERCHANT_ID", "")
	cfg.PayPay.Timeout = getEnvDuration("GATEWAY_TIMEOUT", 10*time.Second)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.CartStore {
	case CartStoreRedis, CartStoreMongo, CartStoreMemory:
	default:
		return fmt.Errorf("CART_STORE must be one of redis, mongo, memory, got %q", c.CartStore)
	}
	if c.PayPay.APIKey == "" || c.PayPay.APISecret == "" || c.PayPay.MerchantID == "" {
		return errors.New("PAYPAY_API_KEY, PAYPAY_API_SECRET and PAYPAY_MERCHANT_ID are required")
	}
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.MaxPollDuration <= 0 {
		return errors.New("MAX_POLL_DURATION must be positive")
	}
	return nil
}

// RedirectURL is where the payment app sends the user back after paying.
func (c *Config) RedirectURL() string {
	return c.FrontendBaseURL + "/checkout/complete"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
