package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	pkgconfig "github.com/starford/ruin/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Query  QueryConfig       `yaml:"query"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Query.Validate()
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

// VaultConfig holds the path to the Markdown vault directory.
//
// SyncOnOpen reconciles the index with the vault before every CLI command,
// so hand-edited files are visible to searches.
type VaultConfig struct {
	Path       string `yaml:"path"`
	SyncOnOpen bool   `yaml:"sync_on_open"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// Week start values.
const (
	WeekStartMonday = "monday"
	WeekStartSunday = "sunday"
)

// QueryConfig holds query language settings.
type QueryConfig struct {
	WeekStart string `yaml:"week_start"`
}

// Validate validates the query configuration.
func (c *QueryConfig) Validate() error {
	if c.WeekStart == "" {
		c.WeekStart = WeekStartMonday
	}
	c.WeekStart = strings.ToLower(c.WeekStart)
	return validation.ValidateStruct(c,
		validation.Field(&c.WeekStart, validation.In(WeekStartMonday, WeekStartSunday)),
	)
}

// Weekday returns the configured first day of the week.
func (c *QueryConfig) Weekday() time.Weekday {
	if c.WeekStart == WeekStartSunday {
		return time.Sunday
	}
	return time.Monday
}

// DefaultHome is the directory holding the vault and index when no config
// file says otherwise.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ruin"
	}
	return filepath.Join(home, ".ruin")
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
			Path:       filepath.Join(DefaultHome(), "vault"),
			SyncOnOpen: true,
		},
		SQLite: SQLiteConfig{
			Path: filepath.Join(DefaultHome(), "index.db"),
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Query: QueryConfig{
			WeekStart: WeekStartMonday,
		},
	}
}

// LoadConfig reads the YAML config at path over the defaults. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, cfg.Validate()
	}
	if err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
