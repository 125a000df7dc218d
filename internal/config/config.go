// Package config defines the top-level configuration for the quote
// aggregator and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by RFQ_* environment variables.
type Config struct {
	Detection   DetectionConfig   `toml:"detection"`
	Redis       RedisConfig       `toml:"redis"`
	Timescale   TimescaleConfig   `toml:"timescale"`
	S3          S3Config          `toml:"s3"`
	Persist     PersistConfig     `toml:"persist"`
	Server      ServerConfig      `toml:"server"`
	Deribit     VenueConfig       `toml:"deribit"`
	Derive      VenueConfig       `toml:"derive"`
	Recommender RecommenderConfig `toml:"recommender"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// DetectionConfig holds the cross-venue detection parameters.
type DetectionConfig struct {
	// VenueA and VenueB are the two venues compared per instrument. VenueA
	// plays the sell side in arbitrage suggestions.
	VenueA string `toml:"venue_a"`
	VenueB string `toml:"venue_b"`
	// NotionalUnit scales the raw price spread into the profit estimate.
	NotionalUnit float64 `toml:"notional_unit"`
	// SkewThresholdPts is the IV gap, in percentage points, that triggers a
	// volatility-skew suggestion.
	SkewThresholdPts   float64 `toml:"skew_threshold_pts"`
	SkewProfitEstimate float64 `toml:"skew_profit_estimate"`
	// DefaultIVPct substitutes for a missing ask IV in gamma enrichment.
	DefaultIVPct     float64 `toml:"default_iv_pct"`
	ExpiryDaysApprox float64 `toml:"expiry_days_approx"`
	ContractSize     float64 `toml:"contract_size"`
	// MaxQuoteAge drops quotes older than this from pairing snapshots.
	// Zero disables the staleness filter.
	MaxQuoteAge duration `toml:"max_quote_age"`
}

// RedisConfig holds hot-cache connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// TTL expires latest-quote slots after the venue goes quiet. Zero keeps
	// them forever.
	TTL duration `toml:"ttl"`
}

// TimescaleConfig holds PostgreSQL/TimescaleDB connection parameters.
type TimescaleConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds cold-archive object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// Prefix is the key prefix for archived tick batches.
	Prefix string `toml:"prefix"`
}

// PersistConfig holds the batched-write tuning parameters.
type PersistConfig struct {
	BatchSize     int      `toml:"batch_size"`
	FlushInterval duration `toml:"flush_interval"`
	FlushTimeout  duration `toml:"flush_timeout"`
}

// ServerConfig holds WebSocket/HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	ShutdownTimeout duration `toml:"shutdown_timeout"`
}

// VenueConfig holds one venue adapter's polling parameters.
type VenueConfig struct {
	Enabled         bool     `toml:"enabled"`
	BaseURL         string   `toml:"base_url"`
	Currencies      []string `toml:"currencies"`
	PollInterval    duration `toml:"poll_interval"`
	ErrorRetryDelay duration `toml:"error_retry_delay"`
	// TopInstruments caps each poll to the N most liquid instruments.
	// Ignored by venues whose API has no liquidity ordering.
	TopInstruments int `toml:"top_instruments"`
}

// RecommenderConfig holds the historical-IV strategy loop parameters.
type RecommenderConfig struct {
	Enabled        bool     `toml:"enabled"`
	Venue          string   `toml:"venue"`
	Interval       duration `toml:"interval"`
	Window         duration `toml:"window"`
	ThresholdPts   float64  `toml:"threshold_pts"`
	MinSamples     int      `toml:"min_samples"`
	ProfitPerPoint float64  `toml:"profit_per_point"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string `toml:"telegram_token"`
	TelegramChatID    string `toml:"telegram_chat_id"`
	DiscordWebhookURL string `toml:"discord_webhook_url"`
	// Types filters which suggestion categories are alerted. Empty allows
	// everything.
	Types []string `toml:"types"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Detection: DetectionConfig{
			VenueA:             string(domain.VenueDeribit),
			VenueB:             string(domain.VenueDerive),
			NotionalUnit:       1000.0,
			SkewThresholdPts:   1.0,
			SkewProfitEstimate: 150.0,
			DefaultIVPct:       50.0,
			ExpiryDaysApprox:   7,
			ContractSize:       1,
			MaxQuoteAge:        duration{0},
		},
		Redis: RedisConfig{
			Enabled:    true,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			TTL:        duration{0},
		},
		Timescale: TimescaleConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "options",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "rfq-ticks",
			UseSSL:         false,
			ForcePathStyle: true,
			Prefix:         "ticks",
		},
		Persist: PersistConfig{
			BatchSize:     100,
			FlushInterval: duration{5 * time.Second},
			FlushTimeout:  duration{10 * time.Second},
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			ShutdownTimeout: duration{5 * time.Second},
		},
		Deribit: VenueConfig{
			Enabled:         true,
			BaseURL:         "https://www.deribit.com/api/v2",
			Currencies:      []string{"BTC"},
			PollInterval:    duration{15 * time.Second},
			ErrorRetryDelay: duration{5 * time.Second},
			TopInstruments:  20,
		},
		Derive: VenueConfig{
			Enabled:         true,
			BaseURL:         "https://api.lyra.finance",
			Currencies:      []string{"BTC"},
			PollInterval:    duration{15 * time.Second},
			ErrorRetryDelay: duration{5 * time.Second},
		},
		Recommender: RecommenderConfig{
			Enabled:        true,
			Venue:          string(domain.VenueDeribit),
			Interval:       duration{15 * time.Second},
			Window:         duration{4 * time.Hour},
			ThresholdPts:   5.0,
			MinSamples:     50,
			ProfitPerPoint: 10.0,
		},
		Notify: NotifyConfig{
			Types: []string{domain.SuggestionArbitrage, domain.SuggestionVolatilitySkew, domain.SuggestionStrategy},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"full":   true,
	"ingest": true,
	"server": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: full, ingest, server)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Detection
	if c.Detection.VenueA == "" || c.Detection.VenueB == "" {
		errs = append(errs, "detection: venue_a and venue_b must not be empty")
	}
	if c.Detection.VenueA == c.Detection.VenueB {
		errs = append(errs, "detection: venue_a and venue_b must differ")
	}
	if c.Detection.NotionalUnit <= 0 {
		errs = append(errs, "detection: notional_unit must be > 0")
	}
	if c.Detection.SkewThresholdPts <= 0 {
		errs = append(errs, "detection: skew_threshold_pts must be > 0")
	}
	if c.Detection.ContractSize <= 0 {
		errs = append(errs, "detection: contract_size must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Timescale
	if strings.TrimSpace(c.Timescale.DSN) == "" {
		if c.Timescale.Host == "" {
			errs = append(errs, "timescale: host must not be empty (or set timescale.dsn)")
		}
		if c.Timescale.Port <= 0 || c.Timescale.Port > 65535 {
			errs = append(errs, fmt.Sprintf("timescale: port must be 1-65535, got %d", c.Timescale.Port))
		}
		if c.Timescale.Database == "" {
			errs = append(errs, "timescale: database must not be empty")
		}
	}
	if c.Timescale.PoolMaxConns < 1 {
		errs = append(errs, "timescale: pool_max_conns must be >= 1")
	}
	if c.Timescale.PoolMinConns < 0 {
		errs = append(errs, "timescale: pool_min_conns must be >= 0")
	}
	if c.Timescale.PoolMinConns > c.Timescale.PoolMaxConns {
		errs = append(errs, "timescale: pool_min_conns must not exceed pool_max_conns")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Persist
	if c.Persist.BatchSize < 1 {
		errs = append(errs, "persist: batch_size must be >= 1")
	}
	if c.Persist.FlushInterval.Duration <= 0 {
		errs = append(errs, "persist: flush_interval must be > 0")
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Venues
	if !c.Deribit.Enabled && !c.Derive.Enabled && c.Mode != "server" {
		errs = append(errs, "at least one venue adapter must be enabled for mode "+c.Mode)
	}
	for name, vc := range map[string]VenueConfig{"deribit": c.Deribit, "derive": c.Derive} {
		if vc.Enabled && vc.PollInterval.Duration < 0 {
			errs = append(errs, name+": poll_interval must not be negative")
		}
	}

	// Recommender
	if c.Recommender.Enabled {
		if c.Recommender.Window.Duration <= 0 {
			errs = append(errs, "recommender: window must be > 0")
		}
		if c.Recommender.MinSamples < 1 {
			errs = append(errs, "recommender: min_samples must be >= 1")
		}
	}

	// Notify - token and chat ID must come together.
	tk := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tk != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must both be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
