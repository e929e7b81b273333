// Package config defines the configuration structures of the case core.
// No I/O happens here, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"` // "postgres" (lib/pq) | "pgx"
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	DBName           string        `mapstructure:"db_name"`
	SSLMode          string        `mapstructure:"ssl_mode"`
	MaxConns         int           `mapstructure:"max_conns"`
	MaxIdleConns     int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime  time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime  time.Duration `mapstructure:"conn_max_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	AutoMigrate      bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds notification producer parameters.
type KafkaConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Brokers           []string      `mapstructure:"brokers"`
	ClientID          string        `mapstructure:"client_id"`
	NotificationTopic string        `mapstructure:"notification_topic"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	BatchSize         int           `mapstructure:"batch_size"`
}

// MinIOConfig holds object-storage parameters used to publish attachment URLs.
type MinIOConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	AccessKey     string        `mapstructure:"access_key"`
	SecretKey     string        `mapstructure:"secret_key"`
	Bucket        string        `mapstructure:"bucket"`
	UseSSL        bool          `mapstructure:"use_ssl"`
	PresignExpiry time.Duration `mapstructure:"presign_expiry"`
	// PublicBaseURL is used instead of presigning when MinIO is disabled.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// MonitoringConfig controls the Prometheus endpoint.
type MonitoringConfig struct {
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	MetricsPath    string `mapstructure:"metrics_path"`
	Namespace      string `mapstructure:"namespace"`
}

// ReportingConfig holds the tunables of schema evolution and report builds.
type ReportingConfig struct {
	// Parallelism bounds the per-service lookups in flight during a tree build.
	Parallelism int `mapstructure:"parallelism"`
	// MigrationRetryBackoff is the pause before the single retry after a
	// schema conflict.
	MigrationRetryBackoff time.Duration `mapstructure:"migration_retry_backoff"`
	// LockTTL is the expiry of the distributed per-table migration lock.
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	// LockWait is how long a writer waits for another writer's migration.
	LockWait time.Duration `mapstructure:"lock_wait"`
	// CompletedStatuses lists case overall statuses that stop the TAT clock.
	CompletedStatuses []string `mapstructure:"completed_statuses"`
	// SchemaCacheTTL is the lifetime of cached form schemas.
	SchemaCacheTTL time.Duration `mapstructure:"schema_cache_ttl"`
	// PageSize is the number of cases read per directory query.
	PageSize int `mapstructure:"page_size"`
	// NotifyBreaches publishes a breach event per delayed case.
	NotifyBreaches bool `mapstructure:"notify_breaches"`
	// NotifyCompletions publishes an event per case in a pending report.
	NotifyCompletions bool `mapstructure:"notify_completions"`
	// NotifyDedupTTL is how long a sent notification is remembered.
	NotifyDedupTTL time.Duration `mapstructure:"notify_dedup_ttl"`
	// ScanInterval is how often the worker rebuilds the delay tree.
	ScanInterval time.Duration `mapstructure:"scan_interval"`
}

// Config is the root configuration structure.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Reporting  ReportingConfig  `mapstructure:"reporting"`
}

// Validate performs semantic validation of a fully-populated Config and
// returns the first problem found.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Database.Driver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("config: database.driver %q is invalid; expected postgres|pgx", c.Database.Driver)
	}
	if c.Database.Host == "" {
		return fmt.Errorf("config: database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("config: database.port %d is out of range [1, 65535]", c.Database.Port)
	}
	if c.Database.User == "" {
		return fmt.Errorf("config: database.user is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("config: database.db_name is required")
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("config: database.max_conns must be >= 1, got %d", c.Database.MaxConns)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("config: redis.db must be >= 0, got %d", c.Redis.DB)
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must contain at least one broker address")
		}
		if c.Kafka.NotificationTopic == "" {
			return fmt.Errorf("config: kafka.notification_topic is required when kafka is enabled")
		}
	}

	if c.MinIO.Enabled && c.MinIO.Bucket == "" {
		return fmt.Errorf("config: minio.bucket is required when minio is enabled")
	}

	if c.Reporting.Parallelism < 1 {
		return fmt.Errorf("config: reporting.parallelism must be >= 1, got %d", c.Reporting.Parallelism)
	}
	if c.Reporting.MigrationRetryBackoff < 0 {
		return fmt.Errorf("config: reporting.migration_retry_backoff must not be negative")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
