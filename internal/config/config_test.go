package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
database:
  host: db.internal
  port: 5432
  user: screening
  password: secret
  db_name: screening
redis:
  addr: redis.internal:6379
kafka:
  enabled: true
  brokers: ["kafka-1:9092", "kafka-2:9092"]
minio:
  enabled: true
  bucket: uploads
reporting:
  parallelism: 4
  migration_retry_backoff: 100ms
  completed_statuses: ["completed", "closed"]
log:
  level: debug
  format: console
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, DefaultNotificationTopic, cfg.Kafka.NotificationTopic)
	assert.Equal(t, 4, cfg.Reporting.Parallelism)
	assert.Equal(t, 100*time.Millisecond, cfg.Reporting.MigrationRetryBackoff)
	assert.Equal(t, []string{"completed", "closed"}, cfg.Reporting.CompletedStatuses)
	assert.Equal(t, DefaultLockTTL, cfg.Reporting.LockTTL)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: ["))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "server:\n  port: 70000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	t.Setenv("SCREENINGSTAR_DATABASE_HOST", "db-override")
	t.Setenv("SCREENINGSTAR_REPORTING_PARALLELISM", "16")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db-override", cfg.Database.Host)
	assert.Equal(t, 16, cfg.Reporting.Parallelism)
}

func TestLoadFromEnv_DefaultsOnly(t *testing.T) {
	t.Setenv("SCREENINGSTAR_REDIS_ADDR", "cache:6379")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, DefaultReportParallelism, cfg.Reporting.Parallelism)
}

func TestLoadOrEnv(t *testing.T) {
	cfg, err := LoadOrEnv("")
	require.NoError(t, err)
	assert.Equal(t, DefaultDBName, cfg.Database.DBName)

	cfg, err = LoadOrEnv(writeConfig(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, "screening", cfg.Database.DBName)
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Port: 9000}, Reporting: ReportingConfig{Parallelism: 2}}
	ApplyDefaults(cfg)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 2, cfg.Reporting.Parallelism)
	assert.Equal(t, DefaultDBHost, cfg.Database.Host)
	assert.Equal(t, DefaultCompletedStatuses, cfg.Reporting.CompletedStatuses)
	assert.Equal(t, DefaultScanInterval, cfg.Reporting.ScanInterval)

	ApplyDefaults(nil)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults are valid", func(*Config) {}, ""},
		{"bad mode", func(c *Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"kafka without brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"minio without bucket", func(c *Config) { c.MinIO.Enabled = true; c.MinIO.Bucket = "" }, "minio.bucket"},
		{"zero parallelism", func(c *Config) { c.Reporting.Parallelism = 0 }, "reporting.parallelism"},
		{"bad driver", func(c *Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"bad log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestWatch_InvokesCallbackOnChange(t *testing.T) {
	path := writeConfig(t, validConfigYAML)
	changed := make(chan *Config, 16)

	require.NoError(t, Watch(path, func(c *Config) { changed <- c }, nil))

	updated := strings.Replace(validConfigYAML, "parallelism: 4", "parallelism: 12", 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Reporting.Parallelism == 12 {
				return
			}
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}
