/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables (optionally
seeded from a local .env file), including the running environment, port, CORS allowed origins,
message log capacity and the chat protocol's content limits.
*/
package configs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultMaxMessages is the number of messages retained by the in-memory log.
	DefaultMaxMessages = 100

	// DefaultJoinHistory is the number of recent messages sent to a user on join.
	DefaultJoinHistory = 50

	// DefaultMaxUsernameLength bounds the display name length in characters.
	DefaultMaxUsernameLength = 32

	// DefaultMaxContentBytes bounds a single message's content.
	DefaultMaxContentBytes = 5000
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int
	StaticDir   string

	// Security Settings
	AllowedOrigins []string

	// Chat Settings
	MaxMessages       int
	JoinHistory       int
	MaxUsernameLength int
	MaxContentBytes   int
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables.
// A .env file in the working directory is loaded first when present; variables already
// set in the process environment take precedence over it.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := intFromEnv("PORT", 3000)
	if err != nil {
		return nil, err
	}
	if port < 1024 || port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", port, 1024, 65535)
	}
	cfg.Port = port

	cfg.StaticDir = os.Getenv("STATIC_DIR")
	if cfg.StaticDir == "" {
		cfg.StaticDir = "client/dist"
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	// --- Chat Settings ---
	if cfg.MaxMessages, err = positiveIntFromEnv("MAX_MESSAGES", DefaultMaxMessages); err != nil {
		return nil, err
	}
	if cfg.JoinHistory, err = positiveIntFromEnv("JOIN_HISTORY", DefaultJoinHistory); err != nil {
		return nil, err
	}
	if cfg.MaxUsernameLength, err = positiveIntFromEnv("MAX_USERNAME_LENGTH", DefaultMaxUsernameLength); err != nil {
		return nil, err
	}
	if cfg.MaxContentBytes, err = positiveIntFromEnv("MAX_CONTENT_BYTES", DefaultMaxContentBytes); err != nil {
		return nil, err
	}

	return cfg, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}

	return value, nil
}

func positiveIntFromEnv(key string, fallback int) (int, error) {
	value, err := intFromEnv(key, fallback)
	if err != nil {
		return 0, err
	}

	if value <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero, got %d", key, value)
	}

	return value, nil
}
