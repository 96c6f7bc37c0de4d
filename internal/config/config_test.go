package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PAYPAY_API_KEY", "key")
	t.Setenv("PAYPAY_API_SECRET", "secret")
	t.Setenv("PAYPAY_MERCHANT_ID", "m-1")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, CartStoreRedis, cfg.CartStore)
	assert.Equal(t, "JPY", cfg.Currency)
	assert.Equal(t, 5*time.Minute, cfg.MaxPollDuration)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "order-events", cfg.OrderEventsTopic)
	assert.Equal(t, "http://localhost:3000/checkout/complete", cfg.RedirectURL())
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("CART_STORE", "Mongo")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("MAX_POLL_DURATION", "90s")
	t.Setenv("DB_PORT", "not-a-number")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("FRONTEND_BASE_URL", "https://shop.example/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, CartStoreMongo, cfg.CartStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 90*time.Second, cfg.MaxPollDuration)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.True(t, cfg.LogPretty)
	assert.Equal(t, "https://shop.example/checkout/complete", cfg.RedirectURL())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PAYPAY_API_KEY=file-key\nPAYPAY_API_SECRET=file-secret\nPAYPAY_MERCHANT_ID=file-merchant\nCURRENCY=USD\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CURRENCY", "EUR")
	// Registered so t.Setenv restores the environment after godotenv writes it.
	t.Setenv("PAYPAY_API_KEY", "")
	t.Setenv("PAYPAY_API_SECRET", "")
	t.Setenv("PAYPAY_MERCHANT_ID", "")
	os.Unsetenv("PAYPAY_API_KEY")
	os.Unsetenv("PAYPAY_API_SECRET")
	os.Unsetenv("PAYPAY_MERCHANT_ID")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.PayPay.APIKey)
	assert.Equal(t, "EUR", cfg.Currency)
}

func TestLoad_MissingEnvFileIsIgnored(t *testing.T) {
	setRequired(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.NoError(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("cart store", func(t *testing.T) {
		setRequired(t)
		t.Setenv("CART_STORE", "etcd")
		_, err := Load("")
		assert.ErrorContains(t, err, "CART_STORE")
	})
	t.Run("gateway credentials", func(t *testing.T) {
		t.Setenv("PAYPAY_API_KEY", "")
		_, err := Load("")
		assert.ErrorContains(t, err, "PAYPAY_API_KEY")
	})
}
