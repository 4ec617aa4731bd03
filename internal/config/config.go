/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL displays use to load media bytes
	DBBackend   DatabaseBackend
	DBDSN       string
	MediaRoot   string
	MetricsBind string

	// Lead time between issuing a play command and its synchronized start.
	// Gives slow or newly started displays a window to resolve the playlist
	// and buffer media before everyone starts together.
	LeadTime time.Duration

	MaxUploadSizeMB int // Optional multipart upload limit override (MB)

	// S3 object storage configuration. Empty bucket means local filesystem.
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Redis catalog lookup cache. Empty address disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS command relay for multi-instance deployments. Empty URL disables
	// the relay; a single instance needs none.
	NATSURL    string
	InstanceID string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("HEIMDALL_ENV", "development"),
		HTTPBind:    getEnv("HEIMDALL_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("HEIMDALL_HTTP_PORT", 8080),
		BaseURL:     getEnv("HEIMDALL_BASE_URL", ""),
		DBBackend:   DatabaseBackend(getEnv("HEIMDALL_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("HEIMDALL_DB_DSN", ""),
		MediaRoot:   getEnv("HEIMDALL_MEDIA_ROOT", "./media"),
		MetricsBind: getEnv("HEIMDALL_METRICS_BIND", "127.0.0.1:9000"),

		LeadTime: time.Duration(getEnvInt("HEIMDALL_LEAD_TIME_MS", 3000)) * time.Millisecond,

		MaxUploadSizeMB: getEnvInt("HEIMDALL_MAX_UPLOAD_SIZE_MB", 0),

		S3AccessKeyID:     getEnv("HEIMDALL_S3_ACCESS_KEY_ID", os.Getenv("AWS_ACCESS_KEY_ID")),
		S3SecretAccessKey: getEnv("HEIMDALL_S3_SECRET_ACCESS_KEY", os.Getenv("AWS_SECRET_ACCESS_KEY")),
		S3Region:          getEnv("HEIMDALL_S3_REGION", "us-east-1"),
		S3Bucket:          getEnv("HEIMDALL_S3_BUCKET", ""),
		S3Endpoint:        getEnv("HEIMDALL_S3_ENDPOINT", ""),
		S3UsePathStyle:    getEnvBool("HEIMDALL_S3_USE_PATH_STYLE", false),

		RedisAddr:     getEnv("HEIMDALL_REDIS_ADDR", ""),
		RedisPassword: getEnv("HEIMDALL_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("HEIMDALL_REDIS_DB", 0),

		NATSURL:    getEnv("HEIMDALL_NATS_URL", ""),
		InstanceID: getEnv("HEIMDALL_INSTANCE_ID", ""),

		TracingEnabled:    getEnvBool("HEIMDALL_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("HEIMDALL_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("HEIMDALL_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		if cfg.DBBackend != DatabaseSQLite {
			return nil, fmt.Errorf("HEIMDALL_DB_DSN must be provided for backend %q", cfg.DBBackend)
		}
		cfg.DBDSN = "heimdall.db"
	}

	if cfg.LeadTime < 0 {
		return nil, fmt.Errorf("HEIMDALL_LEAD_TIME_MS must not be negative")
	}

	if cfg.S3Bucket != "" && cfg.S3AccessKeyID == "" {
		return nil, fmt.Errorf("HEIMDALL_S3_ACCESS_KEY_ID is required when an S3 bucket is configured")
	}

	return cfg, nil
}

// MaxUploadSizeBytes returns the configured upload limit in bytes.
// A value of 0 means "not configured" and callers should use endpoint defaults.
func (c *Config) MaxUploadSizeBytes() int64 {
	if c == nil || c.MaxUploadSizeMB <= 0 {
		return 0
	}
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
