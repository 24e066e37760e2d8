// ABOUTME: Configuration loading and parsing for coven-notes
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a field is left unset
const (
	DefaultValidityDays    = 7
	DefaultHashCost        = 10
	DefaultShutdownTimeout = 10 * time.Second
	MinSecretLength        = 32
	MaxValidityDays        = 65535
)

// EnvConfigPath names the environment variable that overrides the config location.
const EnvConfigPath = "COVEN_NOTES_CONFIG"

// Config represents the complete coven-notes configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Users     UsersConfig     `yaml:"users" toml:"users"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr        string        `yaml:"http_addr" toml:"http_addr"`
	ShutdownTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	ShutdownTimeoutRaw string `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
}

// AuthConfig holds token and cookie configuration
type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret" toml:"jwt_secret"`
	ValidityDays int    `yaml:"validity_days" toml:"validity_days"`
	CookieSecure bool   `yaml:"cookie_secure" toml:"cookie_secure"`
}

// Validity is the session lifetime.
func (a AuthConfig) Validity() time.Duration {
	return time.Duration(a.ValidityDays) * 24 * time.Hour
}

// UsersConfig holds account configuration
type UsersConfig struct {
	// HashCost is the bcrypt cost for password hashes
	HashCost int `yaml:"hash_cost" toml:"hash_cost"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
}

// DefaultPath returns the config location: $COVEN_NOTES_CONFIG if set, otherwise
// notes.yaml under the user's config directory.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "notes.yaml"
	}
	return filepath.Join(dir, "coven", "notes.yaml")
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
}

// Parse decodes raw config content, applies defaults and validates the result.
func Parse(data []byte, isTOML bool) (*Config, error) {
	// Expand environment variables in the raw content
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func applyDefaults(cfg *Config) {
	if cfg.Auth.ValidityDays == 0 {
		cfg.Auth.ValidityDays = DefaultValidityDays
	}
	if cfg.Users.HashCost == 0 {
		cfg.Users.HashCost = DefaultHashCost
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if len(c.Auth.JWTSecret) < MinSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinSecretLength)
	}

	if c.Auth.ValidityDays < 1 || c.Auth.ValidityDays > MaxValidityDays {
		return fmt.Errorf("auth.validity_days must be between 1 and %d, got %d", MaxValidityDays, c.Auth.ValidityDays)
	}

	// bcrypt accepts costs 4 through 31
	if c.Users.HashCost < 4 || c.Users.HashCost > 31 {
		return fmt.Errorf("users.hash_cost must be between 4 and 31, got %d", c.Users.HashCost)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.ShutdownTimeoutRaw != "" {
		cfg.Server.ShutdownTimeout, err = time.ParseDuration(cfg.Server.ShutdownTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing shutdown_timeout %q: %w", cfg.Server.ShutdownTimeoutRaw, err)
		}
	}

	return nil
}

// Starter returns a commented YAML config using secret as the signing key.
func Starter(secret string) string {
	return fmt.Sprintf(`# coven-notes configuration

server:
  http_addr: "127.0.0.1:8080"
  shutdown_timeout: "10s"

auth:
  # at least %d bytes; may reference the environment as "${COVEN_NOTES_JWT_SECRET}"
  jwt_secret: %q
  validity_days: %d
  # set when serving over HTTPS
  cookie_secure: false

users:
  hash_cost: %d

logging:
  level: "info"
  format: "text"

tailscale:
  enabled: false
  hostname: "notes"
  state_dir: ""
  ephemeral: false
`, MinSecretLength, secret, DefaultValidityDays, DefaultHashCost)
}
