// Package config handles application configuration from environment
// variables and the sources file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration.
type Config struct {
	// TelegramBotToken enables the Telegram bot when set.
	TelegramBotToken string        `envconfig:"TELEGRAM_BOT_TOKEN"`
	DatabasePath     string        `envconfig:"DATABASE_PATH" default:"./data/headlines.db"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	AllowedUsers     UserIDs       `envconfig:"ALLOWED_USERS"`
	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	SourcesFile      string        `envconfig:"SOURCES_FILE" default:"./sources.yaml"`
	NewsAPIKey       string        `envconfig:"NEWS_API_KEY"`
	RefreshTick      time.Duration `envconfig:"REFRESH_TICK" default:"1m"`
}

// UserIDs is a comma-separated list of Telegram user IDs.
type UserIDs []int64

// Decode implements envconfig.Decoder.
func (u *UserIDs) Decode(value string) error {
	var ids UserIDs
	for _, s := range strings.Split(value, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uid, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
		}
		ids = append(ids, uid)
	}
	*u = ids
	return nil
}

// Load reads configuration from environment variables. Variables from a
// .env file in the working directory are used when not already set.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

// Validate checks values that envconfig cannot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("HTTP_ADDR is required")
	}
	if c.RefreshTick <= 0 {
		return fmt.Errorf("REFRESH_TICK must be positive")
	}
	return nil
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
