// ABOUTME: Configuration loading and parsing for coven-execd
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete coven-execd configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Cooldown CooldownConfig `yaml:"cooldown"`
	Registry RegistryConfig `yaml:"registry"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// CooldownConfig holds post-kill cooldown configuration
type CooldownConfig struct {
	TTL        time.Duration `yaml:"-"`
	MaxEntries int           `yaml:"max_entries"`

	// Raw string value for YAML unmarshaling
	TTLRaw string `yaml:"ttl"`
}

// RegistryConfig holds execution-registry maintenance configuration
type RegistryConfig struct {
	SweepInterval time.Duration `yaml:"-"`
	MaxAge        time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	SweepIntervalRaw string `yaml:"sweep_interval"`
	MaxAgeRaw        string `yaml:"max_age"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default values applied when the config file omits a field.
const (
	DefaultCooldownTTL        = 5 * time.Minute
	DefaultCooldownMaxEntries = 10000
	DefaultSweepInterval      = 10 * time.Minute
	DefaultMaxAge             = 24 * time.Hour
)

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if c.Cooldown.TTL <= 0 {
		return fmt.Errorf("cooldown.ttl must be positive")
	}

	if c.Cooldown.MaxEntries <= 0 {
		return fmt.Errorf("cooldown.max_entries must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Cooldown.TTLRaw != "" {
		cfg.Cooldown.TTL, err = time.ParseDuration(cfg.Cooldown.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cooldown.ttl %q: %w", cfg.Cooldown.TTLRaw, err)
		}
	}

	if cfg.Registry.SweepIntervalRaw != "" {
		cfg.Registry.SweepInterval, err = time.ParseDuration(cfg.Registry.SweepIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing registry.sweep_interval %q: %w", cfg.Registry.SweepIntervalRaw, err)
		}
	}

	if cfg.Registry.MaxAgeRaw != "" {
		cfg.Registry.MaxAge, err = time.ParseDuration(cfg.Registry.MaxAgeRaw)
		if err != nil {
			return fmt.Errorf("parsing registry.max_age %q: %w", cfg.Registry.MaxAgeRaw, err)
		}
	}

	return nil
}

// applyDefaults fills in zero-valued optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Cooldown.TTL == 0 {
		cfg.Cooldown.TTL = DefaultCooldownTTL
	}
	if cfg.Cooldown.MaxEntries == 0 {
		cfg.Cooldown.MaxEntries = DefaultCooldownMaxEntries
	}
	if cfg.Registry.SweepInterval == 0 {
		cfg.Registry.SweepInterval = DefaultSweepInterval
	}
	if cfg.Registry.MaxAge == 0 {
		cfg.Registry.MaxAge = DefaultMaxAge
	}
}
