// ABOUTME: Configuration loading and parsing for tunnelvault
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
	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding an explicit config path.
const EnvConfigPath = "TUNNELVAULT_CONFIG"

// Config represents the complete tunnelvault configuration
type Config struct {
	Vault        VaultConfig        `yaml:"vault" toml:"vault"`
	Logging      LoggingConfig      `yaml:"logging" toml:"logging"`
	Repositories RepositoriesConfig `yaml:"repositories" toml:"repositories"`
	Retry        RetryConfig        `yaml:"retry" toml:"retry"`
}

// VaultConfig locates the encrypted store and its lock.
// Empty paths resolve under the data directory.
type VaultConfig struct {
	Path     string `yaml:"path" toml:"path"`
	KeyFile  string `yaml:"key_file" toml:"key_file"`
	LockFile string `yaml:"lock_file" toml:"lock_file"`
	// Service scopes every slot, so several installs can share one vault file.
	Service string `yaml:"service" toml:"service" default:"net.tunnelvault"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level" default:"info"`
	Format string `yaml:"format" toml:"format" default:"text"`
}

// RepositoriesConfig tunes the derived repositories.
type RepositoriesConfig struct {
	RecentConnectionsLimit int `yaml:"recent_connections_limit" toml:"recent_connections_limit" default:"50"`
}

// RetryConfig controls retries of store operations refused while the vault is busy.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts" toml:"max_attempts" default:"5"`
	InitialInterval time.Duration `yaml:"-" toml:"-"`
	MaxInterval     time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	InitialIntervalRaw string `yaml:"initial_interval" toml:"initial_interval" default:"50ms"`
	MaxIntervalRaw     string `yaml:"max_interval" toml:"max_interval" default:"1s"`
}

// Default returns the configuration used when no file is present, resolved
// against dataDir.
func Default(dataDir string) (*Config, error) {
	var cfg Config
	if err := finish(&cfg, dataDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Relative and empty vault paths resolve against dataDir.
func Load(path, dataDir string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := finish(&cfg, dataDir); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// finish fills defaults, parses durations, resolves paths, and validates.
func finish(cfg *Config, dataDir string) error {
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("applying defaults: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	cfg.Vault.Path = resolve(dataDir, cfg.Vault.Path, "vault.db")
	cfg.Vault.KeyFile = resolve(dataDir, cfg.Vault.KeyFile, "vault.key")
	cfg.Vault.LockFile = resolve(dataDir, cfg.Vault.LockFile, "vault.lock")

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func resolve(dataDir, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) || dataDir == "" {
		return path
	}
	return filepath.Join(dataDir, path)
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

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Vault.Path == "" {
		return fmt.Errorf("vault.path is required")
	}
	if c.Vault.Service == "" {
		return fmt.Errorf("vault.service is required")
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

	if c.Repositories.RecentConnectionsLimit < 1 {
		return fmt.Errorf("repositories.recent_connections_limit must be positive")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if c.Retry.InitialInterval <= 0 {
		return fmt.Errorf("retry.initial_interval must be positive")
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return fmt.Errorf("retry.max_interval must not be shorter than retry.initial_interval")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Retry.InitialIntervalRaw != "" {
		cfg.Retry.InitialInterval, err = time.ParseDuration(cfg.Retry.InitialIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing initial_interval %q: %w", cfg.Retry.InitialIntervalRaw, err)
		}
	}

	if cfg.Retry.MaxIntervalRaw != "" {
		cfg.Retry.MaxInterval, err = time.ParseDuration(cfg.Retry.MaxIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing max_interval %q: %w", cfg.Retry.MaxIntervalRaw, err)
		}
	}

	return nil
}

// DataDir returns the directory holding the vault by default:
// $XDG_DATA_HOME/tunnelvault, or ~/.local/share/tunnelvault.
func DataDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tunnelvault"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "tunnelvault"), nil
}

// FindConfig returns the config file to load, or "" when none exists.
// Search order: $TUNNELVAULT_CONFIG, ./tunnelvault.yaml, ./tunnelvault.toml,
// then the same names under $XDG_CONFIG_HOME/tunnelvault (or ~/.config/tunnelvault).
func FindConfig() string {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path
	}

	dirs := []string{"."}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		dirs = append(dirs, filepath.Join(dir, "tunnelvault"))
	} else if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".config", "tunnelvault"))
	}

	for _, dir := range dirs {
		for _, name := range []string{"tunnelvault.yaml", "tunnelvault.yml", "tunnelvault.toml"} {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
