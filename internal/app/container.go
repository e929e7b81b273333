// Package app wires configuration, infrastructure clients and application
// services into one Container shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/attachment"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/notify"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/reporting"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/config"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres/repositories"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/redis"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/messaging/kafka"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/storage/minio"
)

// Container holds every long-lived dependency. Optional clients (Redis,
// Kafka, MinIO, metrics) are nil when disabled or unreachable.
type Container struct {
	Config *config.Config
	Logger logging.Logger

	DB        *postgres.Connection
	Redis     *redis.Client
	Producer  *kafka.Producer
	Storage   *minio.Client
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Directory   *repositories.CaseDirectoryRepo
	Calendar    *repositories.CalendarRepo
	Annexures   *repositories.AnnexureRepo
	Registry    *formschema.Registry
	Writer      *annexure.Service
	Records     *annexure.RecordStore
	Attachments *attachment.Resolver
	Status      *reporting.CompletionAggregator
	Delay       *reporting.DelayCalculator
	Dispatcher  notify.Dispatcher

	closers []func() error
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, service string) (logging.Logger, error) {
	lc := logging.LogConfig{Level: cfg.Level, Format: cfg.Format, ServiceName: service}
	if cfg.Output != "" {
		lc.OutputPaths = []string{cfg.Output}
	}
	return logging.NewLogger(lc)
}

// New connects to Postgres (required) and to the optional backends, then
// builds the services. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, log logging.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: log}
	if err := c.build(ctx); err != nil {
		c.Close()
		return nil, err
	}
	log.Info("container ready",
		logging.Bool("redis", c.Redis != nil),
		logging.Bool("kafka", c.Producer != nil),
		logging.Bool("minio", c.Storage != nil),
		logging.Bool("metrics", c.Metrics != nil))
	return c, nil
}

func (c *Container) build(ctx context.Context) (err error) {
	cfg, log := c.Config, c.Logger

	if cfg.Monitoring.MetricsEnabled {
		collector, cerr := prometheus.NewMetricsCollector(prometheus.CollectorConfigFrom(cfg.Monitoring), log)
		if cerr != nil {
			return cerr
		}
		c.Collector = collector
		c.Metrics = prometheus.NewAppMetrics(collector)
	}

	c.DB, err = postgres.NewConnection(cfg.Database, log)
	if err != nil {
		return err
	}
	c.closers = append(c.closers, c.DB.Close)
	if cfg.Database.AutoMigrate {
		if err = postgres.RunMigrations(c.DB.DSN()); err != nil {
			return err
		}
		log.Info("static migrations applied")
	}

	var locks redis.LockFactory
	var regOpts []formschema.Option
	var sent notify.Deduper = notify.NewMemoryDeduper(cfg.Reporting.NotifyDedupTTL)
	if rc, rerr := redis.NewClient(cfg.Redis, log); rerr != nil {
		log.Warn("redis unavailable, running without schema cache and distributed migration lock", logging.Err(rerr))
	} else {
		c.Redis = rc
		c.closers = append(c.closers, rc.Close)
		locks = redis.NewLockFactory(rc, log)
		cache := redis.NewCache(rc, log, redis.WithNamespace("formschema"), redis.WithDefaultTTL(cfg.Reporting.SchemaCacheTTL))
		regOpts = append(regOpts, formschema.WithCache(cache, cfg.Reporting.SchemaCacheTTL))
		sent = redis.NewSentMarker(rc, cfg.Reporting.NotifyDedupTTL)
	}
	regOpts = append(regOpts, formschema.WithMetrics(c.Metrics))

	c.Dispatcher = notify.Nop{}
	if cfg.Kafka.Enabled {
		c.Producer, err = kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), log)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, c.Producer.Close)
		c.Dispatcher = kafka.NewNotificationPublisher(c.Producer, cfg.Kafka.NotificationTopic)
	}
	c.Dispatcher = notify.Deduplicate(c.Dispatcher, sent, log)

	var urls attachment.FileURLResolver
	if cfg.MinIO.Enabled {
		c.Storage, err = minio.NewClient(cfg.MinIO, log)
		if err != nil {
			return err
		}
		if berr := c.Storage.EnsureBucket(ctx); berr != nil {
			log.Warn("attachment bucket check failed", logging.Err(berr))
		}
		urls = c.Storage
	} else {
		base := cfg.MinIO.PublicBaseURL
		if base == "" {
			base = fmt.Sprintf("http://%s/%s", cfg.MinIO.Endpoint, strings.Trim(cfg.MinIO.Bucket, "/"))
		}
		urls, err = attachment.NewPublicURLResolver(base)
		if err != nil {
			return err
		}
	}

	c.Directory = repositories.NewCaseDirectoryRepo(c.DB, log)
	c.Calendar = repositories.NewCalendarRepo(c.DB, log)
	c.Annexures = repositories.NewAnnexureRepo(c.DB, log)
	c.Registry = formschema.NewRegistry(repositories.NewFormSchemaRepo(c.DB, log), log, regOpts...)

	engine := annexure.NewEngine(c.Annexures, locks, annexure.EngineConfig{
		RetryBackoff: cfg.Reporting.MigrationRetryBackoff,
		LockTTL:      cfg.Reporting.LockTTL,
		LockWait:     cfg.Reporting.LockWait,
	}, log, c.Metrics)
	c.Records = annexure.NewRecordStore(c.Annexures, log, c.Metrics)
	c.Writer = annexure.NewService(engine, c.Records, c.Registry, log)
	c.Attachments = attachment.NewResolver(c.Directory, c.Registry, c.Records, urls, log)

	deps := reporting.Deps{
		Directory:  c.Directory,
		Schemas:    c.Registry,
		Store:      c.Annexures,
		Dispatcher: c.Dispatcher,
		Log:        log,
		Metrics:    c.Metrics,
	}
	rcfg := ReportingConfigFrom(cfg.Reporting)
	c.Status = reporting.NewCompletionAggregator(deps, rcfg)
	c.Delay = reporting.NewDelayCalculator(deps, c.Calendar, rcfg)

	return nil
}

// ReportingConfigFrom maps the reporting section onto the report builders' config.
func ReportingConfigFrom(cfg config.ReportingConfig) reporting.Config {
	return reporting.Config{
		Parallelism:       cfg.Parallelism,
		PageSize:          cfg.PageSize,
		CompletedStatuses: cfg.CompletedStatuses,
		NotifyBreaches:    cfg.NotifyBreaches,
		NotifyCompletions: cfg.NotifyCompletions,
	}
}

// Close releases clients in reverse order of creation.
func (c *Container) Close() error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}
	return first
}
