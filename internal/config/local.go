package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Storage backends
const (
	StorageFile     = "file"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageMySQL    = "mysql"
)

// LocalConfig holds configuration for the CLI and the daemon
type LocalConfig struct {
	Daemon  DaemonConfig  `yaml:"daemon"`
	Catalog CatalogConfig `yaml:"catalog"`
	Storage StorageConfig `yaml:"storage"`
	Events  EventsConfig  `yaml:"events"`
	Archive ArchiveConfig `yaml:"archive"`
}

// DaemonConfig holds daemon server settings
type DaemonConfig struct {
	Port        int      `yaml:"port"`
	Bind        string   `yaml:"bind"`
	LogLevel    string   `yaml:"log_level"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// CatalogConfig selects the question catalog
type CatalogConfig struct {
	// Path to a catalog YAML file; empty uses the embedded default
	Path string `yaml:"path"`
}

// StorageConfig selects and configures the session backend
type StorageConfig struct {
	Backend     string `yaml:"backend"`
	SessionsDir string `yaml:"sessions_dir,omitempty"`
	SQLitePath  string `yaml:"sqlite_path,omitempty"`
	DatabaseURL string `yaml:"-"` // Loaded from secrets.yaml or the environment
}

// EventsConfig holds assessment event publishing settings
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	AMQPURL       string `yaml:"-"` // Loaded from secrets.yaml or the environment
	Queue         string `yaml:"queue"`
	Workers       int    `yaml:"workers"`
	RatePerSecond int    `yaml:"rate_per_second"`
}

// ArchiveConfig holds S3-compatible report archive settings
type ArchiveConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Endpoint  string   `yaml:"endpoint"`
	Region    string   `yaml:"region"`
	Bucket    string   `yaml:"bucket"`
	UseSSL    bool     `yaml:"use_ssl"`
	Formats   []string `yaml:"formats"`
	AccessKey string   `yaml:"-"`
	SecretKey string   `yaml:"-"`
}

// SecretsConfig holds credentials loaded from secrets.yaml
type SecretsConfig struct {
	DatabaseURL string `yaml:"database_url,omitempty"`
	AMQPURL     string `yaml:"amqp_url,omitempty"`
	Archive     struct {
		AccessKey string `yaml:"access_key,omitempty"`
		SecretKey string `yaml:"secret_key,omitempty"`
	} `yaml:"archive,omitempty"`
}

// Dir returns the path to ~/.gapcheck
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".gapcheck"), nil
}

// EnsureDir creates ~/.gapcheck and its subdirectories if they don't exist
func EnsureDir() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}

	for _, subdir := range []string{"", "logs", "sessions"} {
		path := filepath.Join(dir, subdir)
		if err := os.MkdirAll(path, 0755); err != nil {
			return "", fmt.Errorf("create dir %s: %w", path, err)
		}
	}

	return dir, nil
}

// DefaultLocalConfig returns sensible defaults for local mode
func DefaultLocalConfig() *LocalConfig {
	return &LocalConfig{
		Daemon: DaemonConfig{
			Port:     7444,
			Bind:     "127.0.0.1",
			LogLevel: "info",
		},
		Storage: StorageConfig{
			Backend: StorageFile,
		},
		Events: EventsConfig{
			Queue:         "gapcheck.events",
			Workers:       3,
			RatePerSecond: 50,
		},
		Archive: ArchiveConfig{
			Endpoint: "localhost:9000",
			Region:   "us-east-1",
			Bucket:   "gapcheck-reports",
			Formats:  []string{"json", "markdown"},
		},
	}
}

// LoadLocalConfig loads ~/.gapcheck/config.yaml and secrets.yaml, then
// applies environment overrides
func LoadLocalConfig() (*LocalConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadLocalConfigFrom(dir)
}

// LoadLocalConfigFrom loads configuration from dir
func LoadLocalConfigFrom(dir string) (*LocalConfig, error) {
	cfg := DefaultLocalConfig()

	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := loadSecrets(dir, cfg); err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}

	ApplyEnv(cfg)
	cfg.resolvePaths(dir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths fills storage locations left empty with paths under dir
func (c *LocalConfig) resolvePaths(dir string) {
	if c.Storage.SessionsDir == "" {
		c.Storage.SessionsDir = filepath.Join(dir, "sessions")
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = filepath.Join(dir, "gapcheck.db")
	}
}

// Validate checks settings that cannot be defaulted
func (c *LocalConfig) Validate() error {
	var errs []error

	if c.Daemon.Port <= 0 || c.Daemon.Port > 65535 {
		errs = append(errs, &ConfigurationError{Field: "daemon.port", Reason: fmt.Sprintf("%d is not a valid port", c.Daemon.Port)})
	}
	switch strings.ToLower(c.Daemon.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &ConfigurationError{Field: "daemon.log_level", Reason: fmt.Sprintf("unknown level %q", c.Daemon.LogLevel)})
	}
	switch c.Storage.Backend {
	case StorageFile, StorageSQLite:
	case StoragePostgres, StorageMySQL:
		if c.Storage.DatabaseURL == "" {
			errs = append(errs, &ConfigurationError{Field: "storage.database_url", Reason: fmt.Sprintf("required for the %s backend", c.Storage.Backend)})
		}
	default:
		errs = append(errs, &ConfigurationError{Field: "storage.backend", Reason: fmt.Sprintf("unknown backend %q", c.Storage.Backend)})
	}
	if c.Events.Enabled && c.Events.AMQPURL == "" {
		errs = append(errs, &ConfigurationError{Field: "events.amqp_url", Reason: "required when events are enabled"})
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		errs = append(errs, &ConfigurationError{Field: "archive.bucket", Reason: "required when the archive is enabled"})
	}

	return errors.Join(errs...)
}

func loadSecrets(dir string, cfg *LocalConfig) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	cfg.Storage.DatabaseURL = secrets.DatabaseURL
	cfg.Events.AMQPURL = secrets.AMQPURL
	cfg.Archive.AccessKey = secrets.Archive.AccessKey
	cfg.Archive.SecretKey = secrets.Archive.SecretKey
	return nil
}

// SaveLocalConfig saves configuration to ~/.gapcheck/config.yaml
func SaveLocalConfig(cfg *LocalConfig) error {
	dir, err := EnsureDir()
	if err != nil {
		return err
	}
	return SaveLocalConfigTo(dir, cfg)
}

// SaveLocalConfigTo writes cfg to dir/config.yaml
func SaveLocalConfigTo(dir string, cfg *LocalConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets writes credentials to dir/secrets.yaml, readable by the owner only
func SaveSecrets(dir string, secrets SecretsConfig) error {
	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
