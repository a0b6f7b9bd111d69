// Package config loads settings from pressroom.yaml, a .env file and the environment,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath   = "pressroom.yaml"
	DefaultEnv    = ".env"
	DefaultListen = ":8000"

	// DefaultDatabaseURL is a sqlite file in the working directory.
	DefaultDatabaseURL = "sqlite3:pressroom.sqlite3?_busy_timeout=10000&_journal=WAL&_foreign_keys=on"
)

// Telegram modes.
const (
	TelegramOff     = "off"
	TelegramPolling = "polling"
	TelegramWebhook = "webhook"
)

type Config struct {
	ListenAddr     string         `yaml:"listen_addr"`
	DatabaseURL    string         `yaml:"database_url"`
	RedisURL       string         `yaml:"redis_url"` // empty keeps challenges in memory
	AllowedOrigins []string       `yaml:"allowed_origins"`
	Session        SessionConfig  `yaml:"session"`
	Telegram       TelegramConfig `yaml:"telegram"`
	Log            LogConfig      `yaml:"log"`
}

// SessionConfig holds hex encoded cookie keys.
type SessionConfig struct {
	HashKey      string `yaml:"hash_key"`
	BlockKey     string `yaml:"block_key"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

type TelegramConfig struct {
	Token         string `yaml:"token"`
	Mode          string `yaml:"mode"` // off, polling or webhook
	WebhookURL    string `yaml:"webhook_url"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ConfigError reports an invalid setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e ConfigError) Error() string {
	return "config: " + e.Field + " " + e.Reason
}

func newConfigError(field, reason string) ConfigError {
	return ConfigError{Field: field, Reason: reason}
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		ListenAddr:  DefaultListen,
		DatabaseURL: DefaultDatabaseURL,
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at path (a missing file is fine), then envPath, then
// applies environment overrides. The result is validated.
func Load(path, envPath string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if envPath == "" {
		envPath = DefaultEnv
	}
	if _, err := os.Stat(envPath); err == nil {
		// existing environment variables win over the file
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	cfg.applyEnv()
	cfg.setDerived()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.ListenAddr, "LISTEN_ADDR")
	setString(&c.DatabaseURL, "DATABASE_URL")
	setString(&c.RedisURL, "REDIS_URL")
	setString(&c.Session.HashKey, "SESSION_HASH_KEY")
	setString(&c.Session.BlockKey, "SESSION_BLOCK_KEY")
	setBool(&c.Session.CookieSecure, "COOKIE_SECURE")
	setString(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	setString(&c.Telegram.Mode, "TELEGRAM_MODE")
	setString(&c.Telegram.WebhookURL, "TELEGRAM_WEBHOOK_URL")
	setString(&c.Telegram.WebhookSecret, "TELEGRAM_WEBHOOK_SECRET")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Format, "LOG_FORMAT")

	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, origin)
			}
		}
	}
}

func (c *Config) setDerived() {
	c.Telegram.Mode = strings.ToLower(strings.TrimSpace(c.Telegram.Mode))
	if c.Telegram.Mode == "" {
		c.Telegram.Mode = TelegramOff
		if c.Telegram.Token != "" {
			c.Telegram.Mode = TelegramPolling
		}
	}
	c.Telegram.WebhookURL = strings.TrimSuffix(c.Telegram.WebhookURL, "/")
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Format = strings.ToLower(c.Log.Format)
}

// Validate checks settings that cannot be repaired with a default.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return newConfigError("LISTEN_ADDR", "must not be empty")
	}
	if c.DatabaseURL == "" {
		return newConfigError("DATABASE_URL", "must not be empty")
	}

	switch c.Telegram.Mode {
	case TelegramOff:
	case TelegramPolling:
		if c.Telegram.Token == "" {
			return newConfigError("TELEGRAM_BOT_TOKEN", "is required in polling mode")
		}
	case TelegramWebhook:
		if c.Telegram.Token == "" {
			return newConfigError("TELEGRAM_BOT_TOKEN", "is required in webhook mode")
		}
		if !strings.HasPrefix(c.Telegram.WebhookURL, "https://") {
			return newConfigError("TELEGRAM_WEBHOOK_URL", "must be an https url in webhook mode")
		}
	default:
		return newConfigError("TELEGRAM_MODE", fmt.Sprintf("unknown mode %q", c.Telegram.Mode))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return newConfigError("LOG_LEVEL", fmt.Sprintf("unknown level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return newConfigError("LOG_FORMAT", fmt.Sprintf("unknown format %q", c.Log.Format))
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
