// Package config loads gapcheck settings from YAML files and the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ConfigurationError reports an invalid setting
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Reason)
}

// ApplyEnv overrides cfg with GAPCHECK_* environment variables
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("GAPCHECK_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("GAPCHECK_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("GAPCHECK_LOG_LEVEL", cfg.Daemon.LogLevel)
	cfg.Daemon.CORSOrigins = getEnvList("GAPCHECK_CORS_ORIGINS", cfg.Daemon.CORSOrigins)

	cfg.Catalog.Path = getEnv("GAPCHECK_CATALOG", cfg.Catalog.Path)

	cfg.Storage.Backend = getEnv("GAPCHECK_STORAGE", cfg.Storage.Backend)
	cfg.Storage.SessionsDir = getEnv("GAPCHECK_SESSIONS_DIR", cfg.Storage.SessionsDir)
	cfg.Storage.SQLitePath = getEnv("GAPCHECK_SQLITE_PATH", cfg.Storage.SQLitePath)
	cfg.Storage.DatabaseURL = getEnv("GAPCHECK_DATABASE_URL", cfg.Storage.DatabaseURL)

	cfg.Events.Enabled = getEnvBool("GAPCHECK_EVENTS", cfg.Events.Enabled)
	cfg.Events.AMQPURL = getEnv("GAPCHECK_AMQP_URL", cfg.Events.AMQPURL)
	cfg.Events.Queue = getEnv("GAPCHECK_EVENTS_QUEUE", cfg.Events.Queue)
	cfg.Events.Workers = getEnvInt("GAPCHECK_WORKERS", cfg.Events.Workers)

	cfg.Archive.Enabled = getEnvBool("GAPCHECK_ARCHIVE", cfg.Archive.Enabled)
	cfg.Archive.Endpoint = getEnv("GAPCHECK_ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)
	cfg.Archive.Bucket = getEnv("GAPCHECK_ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.AccessKey = getEnv("GAPCHECK_ARCHIVE_ACCESS_KEY", cfg.Archive.AccessKey)
	cfg.Archive.SecretKey = getEnv("GAPCHECK_ARCHIVE_SECRET_KEY", cfg.Archive.SecretKey)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated value, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
