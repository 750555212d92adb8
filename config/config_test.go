package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abhissng/relay/blame"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "relay", cfg.Service.Name)
	assert.Equal(t, BrokerMemory, cfg.Broker.Kind)
	assert.Equal(t, 3, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.Pipeline.RetryWait)
	assert.Equal(t, 10*time.Second, cfg.Restaurant.FoodTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, IdempotencyLRU, cfg.Pipeline.IdempotencyStore)
}

func TestValidateIdempotencyStore(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	cfg.Pipeline.IdempotencyStore = IdempotencyMemory
	assert.NoError(t, cfg.Validate())

	cfg.Pipeline.IdempotencyStore = "disk"
	assert.True(t, blame.IsCode(cfg.Validate(), blame.ErrorConfigLoadFailure))
}

func TestLoadFileAndEnvironment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("RELAY_PIPELINE_MAX_RETRIES", "5")
	t.Setenv("NATS_TOKEN", "t0k")
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "staging"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging", "relay.yaml"), []byte(`
broker:
  kind: nats
  url: "nats://{{.NATS_TOKEN}}@nats:4222"
restaurant:
  food_timeout: 2s
`), 0o600))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, BrokerNATS, cfg.Broker.Kind)
	assert.Equal(t, "nats://t0k@nats:4222", cfg.Broker.URL)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Restaurant.FoodTimeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")
	t.Setenv("RELAY_BROKER_KIND", "rabbitmq")
	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.True(t, blame.IsCode(err, blame.ErrorConfigLoadFailure))

	cfg, err := func() (*AppConfig, error) {
		t.Setenv("RELAY_BROKER_KIND", "memory")
		t.Setenv("RELAY_RESTAURANT_COOK_FAILURE_THRESHOLD", "1.5")
		return Load(t.TempDir())
	}()
	assert.Nil(t, cfg)
	assert.Error(t, err)
}
