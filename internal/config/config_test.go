package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, "Deribit", cfg.Detection.VenueA)
	assert.Equal(t, "Derive", cfg.Detection.VenueB)
	assert.Equal(t, 100, cfg.Persist.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Persist.FlushInterval.Duration)
	assert.Equal(t, 15*time.Second, cfg.Deribit.PollInterval.Duration)
	assert.Equal(t, 4*time.Hour, cfg.Recommender.Window.Duration)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
mode = "ingest"
log_level = "debug"

[detection]
notional_unit = 2500.0
max_quote_age = "30s"

[persist]
batch_size = 250
flush_interval = "2s"

[deribit]
currencies = ["BTC", "ETH"]
top_instruments = 40
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "ingest", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2500.0, cfg.Detection.NotionalUnit)
	assert.Equal(t, 30*time.Second, cfg.Detection.MaxQuoteAge.Duration)
	assert.Equal(t, 250, cfg.Persist.BatchSize)
	assert.Equal(t, 2*time.Second, cfg.Persist.FlushInterval.Duration)
	assert.Equal(t, []string{"BTC", "ETH"}, cfg.Deribit.Currencies)
	assert.Equal(t, 40, cfg.Deribit.TopInstruments)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Timescale.RunMigrations)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`mode = "ingest"`), 0o600))

	t.Setenv("RFQ_MODE", "server")
	t.Setenv("RFQ_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("RFQ_REDIS_TTL", "90s")
	t.Setenv("RFQ_PERSIST_BATCH_SIZE", "500")
	t.Setenv("RFQ_DERIVE_CURRENCIES", "BTC, ETH, SOL")
	t.Setenv("RFQ_NOTIFY_TELEGRAM_TOKEN", "tok")
	t.Setenv("RFQ_NOTIFY_TELEGRAM_CHAT_ID", "42")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 90*time.Second, cfg.Redis.TTL.Duration)
	assert.Equal(t, 500, cfg.Persist.BatchSize)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, cfg.Derive.Currencies)
	assert.Equal(t, "tok", cfg.Notify.TelegramToken)
	assert.Equal(t, "42", cfg.Notify.TelegramChatID)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"
	cfg.Detection.VenueB = cfg.Detection.VenueA
	cfg.Persist.BatchSize = 0
	cfg.Server.Port = 99999
	cfg.Notify.TelegramToken = "tok" // chat ID missing

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "venue_a and venue_b must differ")
	assert.Contains(t, err.Error(), "batch_size")
	assert.Contains(t, err.Error(), "server: port")
	assert.Contains(t, err.Error(), "telegram_token and telegram_chat_id")
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Password = "hunter2"
	cfg.Timescale.Password = "pgpass"
	cfg.S3.SecretKey = "supersecret"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.Timescale.Password)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Original untouched.
	assert.Equal(t, "hunter2", cfg.Redis.Password)

	// Slices are copies.
	red.Deribit.Currencies[0] = "XRP"
	assert.Equal(t, "BTC", cfg.Deribit.Currencies[0])
}
