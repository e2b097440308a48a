package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5, cfg.Order.MaxAttempts)
	assert.Equal(t, 25*time.Millisecond, cfg.Order.RetryBase)
	assert.Equal(t, 5*time.Second, cfg.Order.Timeout)
	assert.Equal(t, "0.16", cfg.Pricing.TaxRate.String())
	assert.Equal(t, "5000", cfg.Pricing.FreeShippingOver.String())
	assert.Equal(t, "500", cfg.Pricing.FlatShipping.String())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORE_DRIVER", "MEMORY")
	t.Setenv("ORDER_MAX_ATTEMPTS", "50")
	t.Setenv("ORDER_TIMEOUT", "2s")
	t.Setenv("TAX_RATE", "0.11")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, StoreDriverMemory, cfg.StoreDriver)
	assert.Equal(t, 10, cfg.Order.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Order.Timeout)
	assert.Equal(t, "0.11", cfg.Pricing.TaxRate.String())
}

func TestLoadRejectsGarbage(t *testing.T) {
	t.Setenv("ORDER_TIMEOUT", "soon")
	t.Setenv("TAX_RATE", "sixteen")
	t.Setenv("STORE_DRIVER", "mongo")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ORDER_TIMEOUT")
	assert.Contains(t, err.Error(), "TAX_RATE")
	assert.Contains(t, err.Error(), "STORE_DRIVER")
}
