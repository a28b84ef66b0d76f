// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	Data   DataConfig        `yaml:"data"`
	Auth   AuthConfig        `yaml:"auth"`
	Search SearchConfig      `yaml:"search"`
	Tree   TreeConfig        `yaml:"tree"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Data.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the read-only notes vault. The directory
// must exist before the server starts.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// DataConfig holds the writable directory for the SQLite database and the
// process lock. Created at startup when missing.
type DataConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the data configuration.
func (c *DataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds session and lockout policy. The admin bootstrap
// credentials come from the ADMIN_USERNAME / ADMIN_PASSWORD environment
// variables, not the config file.
type AuthConfig struct {
	SessionExpiryHours int `yaml:"session_expiry_hours"`
	MaxFailures        int `yaml:"max_failures"`
	LockoutMinutes     int `yaml:"lockout_minutes"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SessionExpiryHours, validation.Min(1)),
		validation.Field(&c.MaxFailures, validation.Min(1)),
		validation.Field(&c.LockoutMinutes, validation.Min(1)),
	)
}

// SessionExpiry returns the session lifetime as a duration.
func (c *AuthConfig) SessionExpiry() time.Duration {
	return time.Duration(c.SessionExpiryHours) * time.Hour
}

// Lockout returns the lockout window as a duration.
func (c *AuthConfig) Lockout() time.Duration {
	return time.Duration(c.LockoutMinutes) * time.Minute
}

// SearchConfig holds the background refresh schedule. A RefreshMinutes
// value <= 0 is coerced to the 5-minute default by the scheduler, so it is
// deliberately not validated here.
type SearchConfig struct {
	RefreshMinutes int `yaml:"refresh_minutes"`
}

// RefreshInterval returns the refresh interval as a duration.
func (c *SearchConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshMinutes) * time.Minute
}

// TreeConfig holds the sidebar tree cache TTL.
type TreeConfig struct {
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the tree cache TTL as a duration.
func (c *TreeConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Data: DataConfig{
			Path: "./data",
		},
		Auth: AuthConfig{
			SessionExpiryHours: 24,
			MaxFailures:        5,
			LockoutMinutes:     15,
		},
		Search: SearchConfig{
			RefreshMinutes: 5,
		},
		Tree: TreeConfig{
			CacheTTLSeconds: 10,
		},
	}
}
