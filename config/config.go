package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

type Config struct {
	Env      string `env:"ENV" envDefault:"local" validate:"required,oneof=local staging production"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	Port        string `env:"PORT" envDefault:"8080" validate:"required"`
	MetricsPort string `env:"METRICS_PORT" envDefault:"9090"`

	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	RedisAddr   string `env:"REDIS_ADDR" envDefault:"localhost:6379" validate:"required"`

	JWTSecret string `env:"JWT_SECRET,required" validate:"required,min=32"`

	// Instagram Graph API
	InstagramAccessToken string `env:"INSTAGRAM_ACCESS_TOKEN"`
	InstagramAccountID   string `env:"INSTAGRAM_ACCOUNT_ID,required" validate:"required"`
	GraphAPIVersion      string `env:"FACEBOOK_GRAPH_API_VERSION" envDefault:"v23.0"`
	FacebookAppID        string `env:"FACEBOOK_APP_ID"`
	FacebookAppSecret    string `env:"FACEBOOK_APP_SECRET"`

	// Token lifecycle. The refresh check runs on a cron schedule; the
	// exchange fires when the token expires within the threshold.
	AutoRefreshToken     bool   `env:"AUTO_REFRESH_TOKEN" envDefault:"false"`
	TokenRefreshSchedule string `env:"TOKEN_REFRESH_SCHEDULE" envDefault:"0 4 * * *"`
	TokenThresholdDays   int    `env:"TOKEN_THRESHOLD_DAYS" envDefault:"7" validate:"min=1,max=60"`
	EnvFilePath          string `env:"ENV_FILE_PATH" envDefault:".env"`

	PollIntervalSec int `env:"POLL_INTERVAL_SEC" envDefault:"60" validate:"min=1,max=3600"`

	// Upload storage
	S3Bucket    string `env:"S3_BUCKET"`
	S3Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	S3PublicURL string `env:"S3_PUBLIC_URL"`

	// Operator alerting
	ResendAPIKey string `env:"RESEND_API_KEY" validate:"required_if=Env production,required_if=Env staging"`
	ResendFrom   string `env:"RESEND_FROM"    validate:"required_if=Env production,required_if=Env staging"`
	AlertEmail   string `env:"ALERT_EMAIL"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
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

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c *Config) TokenThreshold() time.Duration {
	return time.Duration(c.TokenThresholdDays) * 24 * time.Hour
}

// S3BaseURL is the public prefix uploaded objects resolve under.
func (c *Config) S3BaseURL() string {
	if c.S3PublicURL != "" {
		return c.S3PublicURL
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.S3Bucket, c.S3Region)
}
