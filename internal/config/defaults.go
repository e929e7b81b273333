package config

import "time"

const (
	DefaultServerPort = 8080
	DefaultServerMode = "release"

	DefaultDBDriver   = "postgres"
	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBUser     = "screeningstar"
	DefaultDBName     = "screeningstar"
	DefaultDBMaxConns = 25

	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "screeningstar"

	DefaultKafkaBroker       = "localhost:9092"
	DefaultNotificationTopic = "screeningstar.notification.send"

	DefaultMinIOEndpoint = "localhost:9000"
	DefaultMinIOBucket   = "case-uploads"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultMetricsPath = "/metrics"
	DefaultNamespace   = "screeningstar"

	DefaultReportParallelism     = 8
	DefaultReportPageSize        = 500
	DefaultMigrationRetryBackoff = 250 * time.Millisecond
	DefaultLockTTL               = 30 * time.Second
	DefaultLockWait              = 10 * time.Second
	DefaultSchemaCacheTTL        = 10 * time.Minute
	DefaultNotifyDedupTTL        = 30 * 24 * time.Hour
	DefaultScanInterval          = 15 * time.Minute
)

// DefaultCompletedStatuses are the overall case statuses that stop the TAT clock.
var DefaultCompletedStatuses = []string{"completed", "completed_green", "completed_red", "completed_yellow", "completed_pink", "completed_orange"}

// ApplyDefaults fills every zero-value field in cfg with its default. Values
// already set are left unchanged.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 20 * time.Second
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = 4 << 20
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DefaultDBDriver
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.User == "" {
		cfg.Database.User = DefaultDBUser
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = cfg.Database.MaxConns / 2
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.NotificationTopic == "" {
		cfg.Kafka.NotificationTopic = DefaultNotificationTopic
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = "screeningstar-core"
	}
	if cfg.Kafka.WriteTimeout == 0 {
		cfg.Kafka.WriteTimeout = 10 * time.Second
	}

	if cfg.MinIO.Endpoint == "" {
		cfg.MinIO.Endpoint = DefaultMinIOEndpoint
	}
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.MinIO.PresignExpiry == 0 {
		cfg.MinIO.PresignExpiry = 24 * time.Hour
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	if cfg.Monitoring.MetricsPath == "" {
		cfg.Monitoring.MetricsPath = DefaultMetricsPath
	}
	if cfg.Monitoring.Namespace == "" {
		cfg.Monitoring.Namespace = DefaultNamespace
	}

	if cfg.Reporting.Parallelism == 0 {
		cfg.Reporting.Parallelism = DefaultReportParallelism
	}
	if cfg.Reporting.PageSize == 0 {
		cfg.Reporting.PageSize = DefaultReportPageSize
	}
	if cfg.Reporting.MigrationRetryBackoff == 0 {
		cfg.Reporting.MigrationRetryBackoff = DefaultMigrationRetryBackoff
	}
	if cfg.Reporting.LockTTL == 0 {
		cfg.Reporting.LockTTL = DefaultLockTTL
	}
	if cfg.Reporting.LockWait == 0 {
		cfg.Reporting.LockWait = DefaultLockWait
	}
	if cfg.Reporting.SchemaCacheTTL == 0 {
		cfg.Reporting.SchemaCacheTTL = DefaultSchemaCacheTTL
	}
	if cfg.Reporting.NotifyDedupTTL == 0 {
		cfg.Reporting.NotifyDedupTTL = DefaultNotifyDedupTTL
	}
	if cfg.Reporting.ScanInterval == 0 {
		cfg.Reporting.ScanInterval = DefaultScanInterval
	}
	if len(cfg.Reporting.CompletedStatuses) == 0 {
		cfg.Reporting.CompletedStatuses = append([]string(nil), DefaultCompletedStatuses...)
	}
}

// NewDefaultConfig returns a Config with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
