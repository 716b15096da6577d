// Package common provides shared utilities for Emonk
package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for Emonk
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Storage     StorageConfig   `toml:"storage"`
	Clients     ClientsConfig   `toml:"clients"`
	Logging     LoggingConfig   `toml:"logging"`
	Auth        AuthConfig      `toml:"auth"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// SchedulerConfig holds scheduler core tuning knobs.
type SchedulerConfig struct {
	Concurrency   int    `toml:"concurrency"`    // max jobs dispatched per tick, default 8
	TickBudget    string `toml:"tick_budget"`    // max wall-clock time per tick, default "60s"
	TickLimit     int    `toml:"tick_limit"`     // max candidates considered per tick, default 100
	BackoffBase   string `toml:"backoff_base"`   // default "30s"
	BackoffCap    string `toml:"backoff_cap"`    // default "15m"
	HandlerTimeout string `toml:"handler_timeout"` // default "5m"
}

// GetTickBudget parses the tick budget duration, defaulting to 60s.
func (c *SchedulerConfig) GetTickBudget() time.Duration {
	return parseDurationOr(c.TickBudget, 60*time.Second)
}

// GetBackoffBase parses the backoff base duration, defaulting to 30s.
func (c *SchedulerConfig) GetBackoffBase() time.Duration {
	return parseDurationOr(c.BackoffBase, 30*time.Second)
}

// GetBackoffCap parses the backoff cap duration, defaulting to 15m.
func (c *SchedulerConfig) GetBackoffCap() time.Duration {
	return parseDurationOr(c.BackoffCap, 15*time.Minute)
}

// GetHandlerTimeout parses the per-handler timeout, defaulting to 5m.
func (c *SchedulerConfig) GetHandlerTimeout() time.Duration {
	return parseDurationOr(c.HandlerTimeout, 5*time.Minute)
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// StorageConfig holds storage backend selection and location.
type StorageConfig struct {
	Backend   string       `toml:"backend"` // "json" or "surrealdb", default "json"
	JSON      AreaConfig   `toml:"json"`    // data directory for the file-backed job store + conversation log
	SurrealDB SurrealConfig `toml:"surrealdb"`
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// SurrealConfig holds SurrealDB connection configuration.
type SurrealConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Gemini GeminiConfig `toml:"gemini"`
}

// GeminiConfig holds Gemini API configuration for the assistant's LLM calls.
type GeminiConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Timeout string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *GeminiConfig) GetTimeout() time.Duration {
	return parseDurationOr(c.Timeout, 30*time.Second)
}

// AuthConfig holds the credentials that gate the tick endpoint, inbound
// webhooks, and the admin job-management API.
type AuthConfig struct {
	TickToken     string `toml:"tick_token"`     // bearer token or X-Tick-Token header required by POST /cron/tick
	WebhookToken  string `toml:"webhook_token"`  // shared secret required by inbound webhook handlers
	JWTSecret     string `toml:"jwt_secret"`     // signs admin API session tokens
	TokenExpiry   string `toml:"token_expiry"`   // duration string, default "24h"
	AdminPassword string `toml:"admin_password"` // shared secret traded for a signed admin JWT at POST /api/admin/login

	// AdminPasswordHash is derived from AdminPassword once, at load time,
	// by hashAdminPassword — never populated from config directly. Login
	// compares against this, not AdminPassword, the same
	// bcrypt.GenerateFromPassword/CompareHashAndPassword split the teacher
	// uses for every other password check.
	AdminPasswordHash string `toml:"-"`
}

// GetTokenExpiry parses and returns the admin token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	return parseDurationOr(c.TokenExpiry, 24*time.Hour)
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string   `toml:"level" mapstructure:"level"`
	Format     string   `toml:"format" mapstructure:"format"`
	Outputs    []string `toml:"outputs" mapstructure:"outputs"`
	FilePath   string   `toml:"file_path" mapstructure:"file_path"`
	MaxSizeMB  int      `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int      `toml:"max_backups" mapstructure:"max_backups"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Scheduler: SchedulerConfig{
			Concurrency:    8,
			TickBudget:     "60s",
			TickLimit:      100,
			BackoffBase:    "30s",
			BackoffCap:     "15m",
			HandlerTimeout: "5m",
		},
		Storage: StorageConfig{
			Backend: "json",
			JSON:    AreaConfig{Path: "data"},
			SurrealDB: SurrealConfig{
				Address:   "ws://localhost:8000/rpc",
				Namespace: "emonk",
				Database:  "emonk",
			},
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				Model:   "gemini-2.0-flash",
				Timeout: "30s",
			},
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Outputs:    []string{"console", "file"},
			FilePath:   "./logs/emonk.log",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := hashAdminPassword(config); err != nil {
		return nil, err
	}

	return config, nil
}

// hashAdminPassword bcrypt-hashes a configured admin_password once at load
// time, so the plaintext is never what handleAdminLogin compares against.
func hashAdminPassword(config *Config) error {
	if config.Auth.AdminPassword == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(config.Auth.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}
	config.Auth.AdminPasswordHash = string(hash)
	return nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("EMONK_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("EMONK_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("EMONK_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("EMONK_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("EMONK_DATA_PATH"); path != "" {
		config.Storage.JSON.Path = filepath.Join(path)
	}

	if backend := os.Getenv("EMONK_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = strings.ToLower(backend)
	}

	if v := os.Getenv("EMONK_SURREALDB_ADDRESS"); v != "" {
		config.Storage.SurrealDB.Address = v
	}
	if v := os.Getenv("EMONK_SURREALDB_USERNAME"); v != "" {
		config.Storage.SurrealDB.Username = v
	}
	if v := os.Getenv("EMONK_SURREALDB_PASSWORD"); v != "" {
		config.Storage.SurrealDB.Password = v
	}

	if v := os.Getenv("EMONK_GEMINI_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	} else if v := os.Getenv("GOOGLE_API_KEY"); v != "" {
		config.Clients.Gemini.APIKey = v
	}

	if v := os.Getenv("EMONK_TICK_TOKEN"); v != "" {
		config.Auth.TickToken = v
	}
	if v := os.Getenv("EMONK_WEBHOOK_TOKEN"); v != "" {
		config.Auth.WebhookToken = v
	}
	if v := os.Getenv("EMONK_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("EMONK_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
	if v := os.Getenv("EMONK_ADMIN_PASSWORD"); v != "" {
		config.Auth.AdminPassword = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
