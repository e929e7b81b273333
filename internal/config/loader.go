package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "SCREENINGSTAR"

// envKeys are bound explicitly so Unmarshal sees env-only settings; viper's
// AutomaticEnv only resolves keys it already knows about.
var envKeys = []string{
	"server.port", "server.mode",
	"database.driver", "database.host", "database.port", "database.user", "database.password",
	"database.db_name", "database.ssl_mode", "database.max_conns", "database.auto_migrate",
	"redis.addr", "redis.password", "redis.db", "redis.key_prefix",
	"kafka.enabled", "kafka.brokers", "kafka.notification_topic", "kafka.client_id",
	"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key",
	"minio.bucket", "minio.use_ssl", "minio.public_base_url",
	"log.level", "log.format", "log.output",
	"monitoring.metrics_enabled",
	"reporting.parallelism", "reporting.migration_retry_backoff", "reporting.notify_breaches",
	"reporting.notify_completions", "reporting.notify_dedup_ttl", "reporting.page_size", "reporting.scan_interval",
}

// newViper builds a Viper instance with YAML file type, the SCREENINGSTAR_
// env prefix and a "." to "_" key replacer, so "database.host" resolves to
// SCREENINGSTAR_DATABASE_HOST.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Load reads the YAML file at configPath, merges SCREENINGSTAR_* overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from SCREENINGSTAR_* environment variables and
// defaults only.
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

// LoadOrEnv loads configPath when it is non-empty and falls back to
// LoadFromEnv otherwise.
func LoadOrEnv(configPath string) (*Config, error) {
	if configPath == "" {
		return LoadFromEnv()
	}
	return Load(configPath)
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and passes the parsed
// Config to onChange. Invalid revisions are reported to onError and skipped.
// Only settings that are safe to swap at runtime (log level, report
// parallelism) should be applied by the callback.
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad wraps Load and panics on any error.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
