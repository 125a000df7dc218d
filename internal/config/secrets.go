package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// Timescale
	out.Timescale = cfg.Timescale
	redact(&out.Timescale.DSN)
	redact(&out.Timescale.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Types != nil {
		out.Notify.Types = make([]string, len(cfg.Notify.Types))
		copy(out.Notify.Types, cfg.Notify.Types)
	}
	if cfg.Deribit.Currencies != nil {
		out.Deribit.Currencies = make([]string, len(cfg.Deribit.Currencies))
		copy(out.Deribit.Currencies, cfg.Deribit.Currencies)
	}
	if cfg.Derive.Currencies != nil {
		out.Derive.Currencies = make([]string, len(cfg.Derive.Currencies))
		copy(out.Derive.Currencies, cfg.Derive.Currencies)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
