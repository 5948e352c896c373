package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Env  string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	Port string `env:"PORT" envDefault:"8080" validate:"required"`

	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`

	JWTSecret   string `env:"JWT_SECRET,required" validate:"required,min=32"`
	TokenPepper string `env:"TOKEN_PEPPER"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	ResetTokenTTL   time.Duration `env:"RESET_TOKEN_TTL" envDefault:"1h"`
	VerifyTokenTTL  time.Duration `env:"VERIFY_TOKEN_TTL" envDefault:"24h"`

	// LinkBase is the public base URL embedded in emailed links.
	LinkBaseURL string `env:"LINK_BASE_URL" envDefault:"http://localhost:8080"`

	// Mail transport. The local provider logs instead of sending; smtp and
	// resend require their settings and fail config load without them.
	MailProvider string `env:"MAIL_PROVIDER" envDefault:"log" validate:"oneof=log smtp resend"`

	SMTPHost     string `env:"SMTP_HOST"     validate:"required_if=MailProvider smtp"`
	SMTPPort     int    `env:"SMTP_PORT"     validate:"required_if=MailProvider smtp"`
	SMTPUsername string `env:"SMTP_USERNAME" validate:"required_if=MailProvider smtp"`
	SMTPPassword string `env:"SMTP_PASSWORD" validate:"required_if=MailProvider smtp"`
	SMTPFrom     string `env:"SMTP_FROM"     validate:"required_if=MailProvider smtp"`

	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=MailProvider resend"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=MailProvider resend"`

	// SweepSchedule is a standard cron expression (or @hourly style
	// descriptor) controlling when the sweeper purges dead token rows.
	SweepSchedule string `env:"SWEEP_SCHEDULE" envDefault:"@hourly"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		return nil, fmt.Errorf("invalid SWEEP_SCHEDULE %q: %w", cfg.SweepSchedule, err)
	}

	return cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
