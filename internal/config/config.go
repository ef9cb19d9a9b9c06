package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Auth         AuthConfig         `yaml:"auth"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	Worker       WorkerConfig       `yaml:"worker"`
	Log          LogConfig          `yaml:"log"`
	FeatureFlags FeatureFlagsConfig `yaml:"feature_flags"`
	Events       EventsConfig       `yaml:"events"`
	Archive      ArchiveConfig      `yaml:"archive"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig contains authentication settings.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// WorkspaceConfig contains job workspace settings.
type WorkspaceConfig struct {
	// Root is the directory attempt log paths are derived under.
	Root string `yaml:"root"`
}

// WorkerConfig contains background worker settings.
type WorkerConfig struct {
	SnapshotInterval Duration `yaml:"snapshot_interval"`
	SnapshotDir      string   `yaml:"snapshot_dir"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FeatureFlagsConfig points at the feature flag file. An empty path serves
// every flag's default.
type FeatureFlagsConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig contains lifecycle event broker settings. An empty URL
// disables publishing.
type EventsConfig struct {
	URL      string `yaml:"-"` // env-only, may carry credentials
	Exchange string `yaml:"exchange"`
}

// ArchiveConfig contains S3-compatible archive storage settings. An empty
// bucket disables archiving.
type ArchiveConfig struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"-"` // env-only
	SecretKey string `yaml:"-"` // env-only
	UseSSL    *bool  `yaml:"use_ssl"`
	Prefix    string `yaml:"prefix"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("SYNCPLANE_CONFIG_PATH", "config/syncplane.yaml")

	// Missing file is not an error
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDatabaseConfig resolves only the database settings, skipping
// validation. Offline commands use it so they run without an API key.
func LoadDatabaseConfig() (DatabaseConfig, error) {
	cfg := newDefaults()
	if err := loadYAMLFile(cfg, getEnv("SYNCPLANE_CONFIG_PATH", "config/syncplane.yaml")); err != nil {
		return DatabaseConfig{}, err
	}
	applyEnvOverrides(cfg)
	return cfg.Database, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/syncplane.db",
		},
		Workspace: WorkspaceConfig{
			Root: "data/workspace",
		},
		Worker: WorkerConfig{
			SnapshotInterval: Duration(1 * time.Hour),
			SnapshotDir:      "data/snapshots",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Events: EventsConfig{
			Exchange: "syncplane.attempts",
		},
		Archive: ArchiveConfig{
			Prefix: "attempts",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
// Missing file is not an error; we just use defaults.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("SYNCPLANE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SYNCPLANE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SYNCPLANE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("SYNCPLANE_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("SYNCPLANE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Auth
	if v := os.Getenv("SYNCPLANE_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Workspace
	if v := os.Getenv("SYNCPLANE_WORKSPACE_ROOT"); v != "" {
		cfg.Workspace.Root = v
	}

	// Worker
	if v := os.Getenv("SYNCPLANE_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Worker.SnapshotInterval = Duration(d)
		}
	}
	if v := os.Getenv("SYNCPLANE_SNAPSHOT_DIR"); v != "" {
		cfg.Worker.SnapshotDir = v
	}

	// Log
	if v := os.Getenv("SYNCPLANE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("SYNCPLANE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// Feature flags
	if v := os.Getenv("SYNCPLANE_FEATURE_FLAGS_PATH"); v != "" {
		cfg.FeatureFlags.Path = v
	}

	// Events
	if v := os.Getenv("SYNCPLANE_AMQP_URL"); v != "" {
		cfg.Events.URL = v
	}
	if v := os.Getenv("SYNCPLANE_EVENTS_EXCHANGE"); v != "" {
		cfg.Events.Exchange = v
	}

	// Archive
	if v := os.Getenv("SYNCPLANE_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := os.Getenv("SYNCPLANE_S3_ENDPOINT"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if v := os.Getenv("SYNCPLANE_S3_REGION"); v != "" {
		cfg.Archive.Region = v
	}
	if v := os.Getenv("SYNCPLANE_S3_ACCESS_KEY"); v != "" {
		cfg.Archive.AccessKey = v
	}
	if v := os.Getenv("SYNCPLANE_S3_SECRET_KEY"); v != "" {
		cfg.Archive.SecretKey = v
	}
	if v := os.Getenv("SYNCPLANE_S3_USE_SSL"); v != "" {
		useSSL := v == "true" || v == "1"
		cfg.Archive.UseSSL = &useSSL
	}
}

// validate checks that required configuration values are set.
// In dev mode (SYNCPLANE_DEV_MODE=true), API key validation is skipped.
func (c *Config) validate() error {
	if c.Workspace.Root == "" {
		return errors.New("workspace.root is required")
	}
	if c.Events.URL != "" && c.Events.Exchange == "" {
		return errors.New("events.exchange is required when SYNCPLANE_AMQP_URL is set")
	}
	if c.Archive.Bucket != "" && c.Archive.Endpoint == "" {
		return errors.New("archive.endpoint is required when archive.bucket is set")
	}
	if c.Worker.SnapshotInterval <= 0 {
		return errors.New("worker.snapshot_interval must be positive")
	}

	if os.Getenv("SYNCPLANE_DEV_MODE") == "true" {
		return nil
	}

	if c.Auth.APIKey == "" {
		return errors.New("SYNCPLANE_API_KEY is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
