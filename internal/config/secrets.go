package config

const redacted = "***"

// Redacted returns a copy of cfg safe for logging: every credential field
// is replaced with a placeholder and slices are duplicated so the caller
// cannot mutate the original through the copy.
func (c *Config) Redacted() Config {
	out := *c

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Api.Key)
	redact(&out.Api.Secret)
	redact(&out.Api.Passphrase)
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Advisor.ApiKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	if c.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), c.Notify.Events...)
	}

	return out
}

func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
