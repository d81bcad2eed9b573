package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv() {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("TWITTER_BEARER_TOKEN", "bearer-token")
	os.Setenv("TWITTER_BOT_USER_ID", "123456")
}

func cleanupEnv() {
	for _, key := range []string{
		"JWT_SECRET", "TWITTER_BEARER_TOKEN", "TWITTER_BOT_USER_ID",
		"POLL_INTERVAL", "MENTION_BATCH_SIZE", "RECONCILE_MODE",
		"DRY_RUN", "API_PORT", "POSTGRES_DB", "APP_URL",
	} {
		os.Unsetenv(key)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv()
	defer cleanupEnv()

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 6831, cfg.APIPort)
	assert.Equal(t, "tipjar", cfg.PostgresDB)
	assert.Equal(t, "testnet", cfg.HederaNetwork)
	assert.Equal(t, "0.0.3", cfg.HederaNodeAccount)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.Equal(t, 10, cfg.MentionBatchSize)
	assert.Equal(t, ReconcileModeCustodial, cfg.ReconcileMode)
	assert.Equal(t, 250, cfg.RateLimitMax)
	assert.False(t, cfg.DryRun)
}

func TestLoadConfig_MissingJWTSecret(t *testing.T) {
	os.Setenv("TWITTER_BEARER_TOKEN", "bearer-token")
	os.Setenv("TWITTER_BOT_USER_ID", "123456")
	defer cleanupEnv()

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "JWT_SECRET is required")
}

func TestLoadConfig_MissingTwitterCredentials(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret")
	defer cleanupEnv()

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "TWITTER_BEARER_TOKEN is required")
}

func TestLoadConfig_InvalidReconcileMode(t *testing.T) {
	setRequiredEnv()
	os.Setenv("RECONCILE_MODE", "maybe")
	defer cleanupEnv()

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "RECONCILE_MODE")
}

func TestLoadConfig_CustomValues(t *testing.T) {
	setRequiredEnv()
	os.Setenv("POLL_INTERVAL", "30s")
	os.Setenv("MENTION_BATCH_SIZE", "25")
	os.Setenv("RECONCILE_MODE", ReconcileModeResign)
	os.Setenv("DRY_RUN", "true")
	defer cleanupEnv()

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 25, cfg.MentionBatchSize)
	assert.Equal(t, ReconcileModeResign, cfg.ReconcileMode)
	assert.True(t, cfg.DryRun)
}

func TestValidate_BatchSizeBounds(t *testing.T) {
	setRequiredEnv()
	os.Setenv("MENTION_BATCH_SIZE", "500")
	defer cleanupEnv()

	cfg, err := LoadConfig()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "MENTION_BATCH_SIZE")
}
