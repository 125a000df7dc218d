package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies RFQ_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known RFQ_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Detection ──
	setStr(&cfg.Detection.VenueA, "RFQ_DETECTION_VENUE_A")
	setStr(&cfg.Detection.VenueB, "RFQ_DETECTION_VENUE_B")
	setFloat64(&cfg.Detection.NotionalUnit, "RFQ_DETECTION_NOTIONAL_UNIT")
	setFloat64(&cfg.Detection.SkewThresholdPts, "RFQ_DETECTION_SKEW_THRESHOLD_PTS")
	setFloat64(&cfg.Detection.SkewProfitEstimate, "RFQ_DETECTION_SKEW_PROFIT_ESTIMATE")
	setFloat64(&cfg.Detection.DefaultIVPct, "RFQ_DETECTION_DEFAULT_IV_PCT")
	setFloat64(&cfg.Detection.ExpiryDaysApprox, "RFQ_DETECTION_EXPIRY_DAYS_APPROX")
	setFloat64(&cfg.Detection.ContractSize, "RFQ_DETECTION_CONTRACT_SIZE")
	setDuration(&cfg.Detection.MaxQuoteAge, "RFQ_DETECTION_MAX_QUOTE_AGE")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "RFQ_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RFQ_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RFQ_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RFQ_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RFQ_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RFQ_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RFQ_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.TTL, "RFQ_REDIS_TTL")

	// ── Timescale ──
	setStr(&cfg.Timescale.DSN, "RFQ_TIMESCALE_DSN")
	setStr(&cfg.Timescale.Host, "RFQ_TIMESCALE_HOST")
	setInt(&cfg.Timescale.Port, "RFQ_TIMESCALE_PORT")
	setStr(&cfg.Timescale.Database, "RFQ_TIMESCALE_DATABASE")
	setStr(&cfg.Timescale.User, "RFQ_TIMESCALE_USER")
	setStr(&cfg.Timescale.Password, "RFQ_TIMESCALE_PASSWORD")
	setStr(&cfg.Timescale.SSLMode, "RFQ_TIMESCALE_SSL_MODE")
	setInt(&cfg.Timescale.PoolMaxConns, "RFQ_TIMESCALE_POOL_MAX_CONNS")
	setInt(&cfg.Timescale.PoolMinConns, "RFQ_TIMESCALE_POOL_MIN_CONNS")
	setBool(&cfg.Timescale.RunMigrations, "RFQ_TIMESCALE_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RFQ_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RFQ_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RFQ_S3_REGION")
	setStr(&cfg.S3.Bucket, "RFQ_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RFQ_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RFQ_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RFQ_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RFQ_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "RFQ_S3_PREFIX")

	// ── Persist ──
	setInt(&cfg.Persist.BatchSize, "RFQ_PERSIST_BATCH_SIZE")
	setDuration(&cfg.Persist.FlushInterval, "RFQ_PERSIST_FLUSH_INTERVAL")
	setDuration(&cfg.Persist.FlushTimeout, "RFQ_PERSIST_FLUSH_TIMEOUT")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RFQ_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RFQ_SERVER_PORT")
	setDuration(&cfg.Server.ShutdownTimeout, "RFQ_SERVER_SHUTDOWN_TIMEOUT")

	// ── Venues ──
	setBool(&cfg.Deribit.Enabled, "RFQ_DERIBIT_ENABLED")
	setStr(&cfg.Deribit.BaseURL, "RFQ_DERIBIT_BASE_URL")
	setStringSlice(&cfg.Deribit.Currencies, "RFQ_DERIBIT_CURRENCIES")
	setDuration(&cfg.Deribit.PollInterval, "RFQ_DERIBIT_POLL_INTERVAL")
	setDuration(&cfg.Deribit.ErrorRetryDelay, "RFQ_DERIBIT_ERROR_RETRY_DELAY")
	setInt(&cfg.Deribit.TopInstruments, "RFQ_DERIBIT_TOP_INSTRUMENTS")
	setBool(&cfg.Derive.Enabled, "RFQ_DERIVE_ENABLED")
	setStr(&cfg.Derive.BaseURL, "RFQ_DERIVE_BASE_URL")
	setStringSlice(&cfg.Derive.Currencies, "RFQ_DERIVE_CURRENCIES")
	setDuration(&cfg.Derive.PollInterval, "RFQ_DERIVE_POLL_INTERVAL")
	setDuration(&cfg.Derive.ErrorRetryDelay, "RFQ_DERIVE_ERROR_RETRY_DELAY")

	// ── Recommender ──
	setBool(&cfg.Recommender.Enabled, "RFQ_RECOMMENDER_ENABLED")
	setStr(&cfg.Recommender.Venue, "RFQ_RECOMMENDER_VENUE")
	setDuration(&cfg.Recommender.Interval, "RFQ_RECOMMENDER_INTERVAL")
	setDuration(&cfg.Recommender.Window, "RFQ_RECOMMENDER_WINDOW")
	setFloat64(&cfg.Recommender.ThresholdPts, "RFQ_RECOMMENDER_THRESHOLD_PTS")
	setInt(&cfg.Recommender.MinSamples, "RFQ_RECOMMENDER_MIN_SAMPLES")
	setFloat64(&cfg.Recommender.ProfitPerPoint, "RFQ_RECOMMENDER_PROFIT_PER_POINT")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RFQ_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RFQ_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RFQ_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Types, "RFQ_NOTIFY_TYPES")

	// ── Top-level ──
	setStr(&cfg.Mode, "RFQ_MODE")
	setStr(&cfg.LogLevel, "RFQ_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
