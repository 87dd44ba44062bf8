// Package config provides configuration types and defaults for modelver.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zjrosen/modelver/internal/log"
	"github.com/zjrosen/modelver/internal/tracing"
)

// Config holds all configuration options for modelver.
type Config struct {
	// StorageRoot is the directory holding the registry document and,
	// by default, the history database.
	StorageRoot string `mapstructure:"storage_root"`

	// RegistryFilename is the registry document name under StorageRoot.
	RegistryFilename string `mapstructure:"registry_filename"`

	Logging LoggingConfig  `mapstructure:"logging"`
	Cache   CacheConfig    `mapstructure:"cache"`
	History HistoryConfig  `mapstructure:"history"`
	Watch   WatchConfig    `mapstructure:"watch"`
	Tracing tracing.Config `mapstructure:"tracing"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Enabled turns file logging on.
	Enabled bool `mapstructure:"enabled"`

	// Path is the log file location. Default: <storage_root>/modelver.log
	Path string `mapstructure:"path"`

	// Level is the minimum level written: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
}

// CacheConfig holds loaded-handle cache configuration.
type CacheConfig struct {
	// Enabled turns the handle cache on. Off by default so every load
	// re-checks artifact drift.
	Enabled bool `mapstructure:"enabled"`

	// TTLMinutes is how long a cached handle stays valid.
	TTLMinutes int `mapstructure:"ttl_minutes"`
}

// HistoryConfig holds audit history configuration.
type HistoryConfig struct {
	// Enabled turns the sqlite audit trail on.
	Enabled bool `mapstructure:"enabled"`

	// Path is the database location. Default: <storage_root>/history.db
	Path string `mapstructure:"path"`
}

// WatchConfig holds registry-file watcher configuration.
type WatchConfig struct {
	// Enabled turns external-modification watching on.
	Enabled bool `mapstructure:"enabled"`

	// DebounceMs coalesces bursts of file events.
	DebounceMs int `mapstructure:"debounce_ms"`
}

// DefaultStorageRoot returns ~/.modelver, or "." if the home directory
// is unavailable.
func DefaultStorageRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".modelver")
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		StorageRoot:      DefaultStorageRoot(),
		RegistryFilename: "model_registry.json",
		Logging: LoggingConfig{
			Enabled: false,
			Path:    "", // Derived from storage root at runtime
			Level:   "info",
		},
		Cache: CacheConfig{
			Enabled:    false,
			TTLMinutes: 10,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "", // Derived from storage root at runtime
		},
		Watch: WatchConfig{
			Enabled:    false,
			DebounceMs: 1000,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// RegistryPath returns the resolved registry document path.
func (c Config) RegistryPath() string {
	name := c.RegistryFilename
	if name == "" {
		name = "model_registry.json"
	}
	return filepath.Join(c.StorageRoot, name)
}

// HistoryPath returns the resolved history database path.
func (c Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(c.StorageRoot, "history.db")
}

// LogPath returns the resolved log file path.
func (c Config) LogPath() string {
	if c.Logging.Path != "" {
		return c.Logging.Path
	}
	return filepath.Join(c.StorageRoot, "modelver.log")
}

// LogLevel maps the configured level string to a log.Level.
func (c Config) LogLevel() log.Level {
	switch c.Logging.Level {
	case "debug":
		return log.LevelDebug
	case "warn":
		return log.LevelWarn
	case "error":
		return log.LevelError
	default:
		return log.LevelInfo
	}
}

// Validate checks the whole configuration for errors.
func (c Config) Validate() error {
	if c.StorageRoot == "" {
		return fmt.Errorf("storage_root is required")
	}
	if err := ValidateLogging(c.Logging); err != nil {
		return err
	}
	if err := ValidateCache(c.Cache); err != nil {
		return err
	}
	if err := ValidateWatch(c.Watch); err != nil {
		return err
	}
	return ValidateTracing(c.Tracing)
}

// ValidateLogging checks logging configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateLogging(cfg LoggingConfig) error {
	switch cfg.Level {
	case "", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level must be \"debug\", \"info\", \"warn\", or \"error\", got %q", cfg.Level)
	}
}

// ValidateCache checks handle-cache configuration for errors.
func ValidateCache(cfg CacheConfig) error {
	if cfg.Enabled && cfg.TTLMinutes <= 0 {
		return fmt.Errorf("cache.ttl_minutes must be positive when cache is enabled, got %d", cfg.TTLMinutes)
	}
	return nil
}

// ValidateWatch checks watcher configuration for errors.
func ValidateWatch(cfg WatchConfig) error {
	if cfg.Enabled && cfg.DebounceMs <= 0 {
		return fmt.Errorf("watch.debounce_ms must be positive when watching is enabled, got %d", cfg.DebounceMs)
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Returns nil if the configuration is valid (empty values use defaults).
func ValidateTracing(cfg tracing.Config) error {
	if cfg.SampleRate < 0.0 || cfg.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", cfg.SampleRate)
	}

	if cfg.Exporter != "" {
		switch cfg.Exporter {
		case "none", "file", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", cfg.Exporter)
		}
	}

	// Only validate path requirements when tracing is enabled
	if cfg.Enabled {
		if cfg.Exporter == "file" && cfg.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if cfg.Exporter == "otlp" && cfg.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}

	return nil
}

// DefaultConfigTemplate returns the default config as a YAML string with comments.
func DefaultConfigTemplate() string {
	return `# Modelver Configuration

# Directory holding the registry document and history database
# storage_root: ~/.modelver

# Registry document name under storage_root
# registry_filename: model_registry.json

# Logging settings
logging:
  enabled: false          # Write a log file
  # path: ~/.modelver/modelver.log
  level: info             # debug, info, warn, error

# Loaded-handle cache
# Off by default: every load then re-hashes the artifact for drift detection
cache:
  enabled: false
  ttl_minutes: 10

# Audit history (sqlite, append-only)
history:
  enabled: true
  # path: ~/.modelver/history.db

# Registry file watching
# Notifies when another process modifies the registry document
watch:
  enabled: false
  debounce_ms: 1000

# Tracing configuration
# tracing:
#   enabled: false                 # Enable/disable tracing (default: false)
#   exporter: file                 # Export backend: none, file, stdout, otlp (default: file)
#   file_path: ~/.modelver/traces/traces.jsonl  # Output file for file exporter
#   otlp_endpoint: localhost:4317  # OTLP collector endpoint (for otlp exporter)
#   sample_rate: 1.0               # Trace sampling rate 0.0-1.0 (default: 1.0)
`
}

// WriteDefaultConfig creates a config file at the given path with default settings and comments.
// Creates the parent directory if it doesn't exist.
func WriteDefaultConfig(configPath string) error {
	log.Debug(log.CatConfig, "Writing default config", "path", configPath)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "Failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "Created default config", "path", configPath)
	return nil
}
