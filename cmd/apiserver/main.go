// Command apiserver serves the form schema, annexure and report APIs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/app"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/config"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	httpserver "github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http/handlers"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http/middleware"
)

const defaultConfigPath = "configs/config.yaml"

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := app.NewLogger(cfg.Log, "screeningstar-api")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	logger.Info("starting screeningstar API server",
		logging.String("version", version),
		logging.String("commit", commit),
		logging.Int("port", cfg.Server.Port))

	if err := run(cfg, *configPath, logger); err != nil {
		logger.Error("API server exited with error", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	watchConfig(configPath, logger)

	router := httpserver.NewRouter(httpserver.RouterConfig{
		FormSchemaHandler: handlers.NewFormSchemaHandler(c.Registry, logger),
		AnnexureHandler:   handlers.NewAnnexureHandler(c.Writer, logger),
		ReportHandler:     handlers.NewReportHandler(c.Status, c.Delay, c.Attachments, logger),
		HealthHandler:     handlers.NewHealthHandler(version, c.Metrics, healthCheckers(c)...),
		Logger:            logger,
		LoggingConfig:     middleware.DefaultLoggingConfig(),
		MetricsCollector:  c.Collector,
		Metrics:           c.Metrics,
		MetricsPath:       cfg.Monitoring.MetricsPath,
		MaxBodySize:       cfg.Server.MaxBodySize,
	})
	srv := httpserver.NewServer(cfg.Server, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	return srv.Stop(context.Background())
}

// loadConfig reads path when it exists and falls back to environment
// variables and defaults otherwise.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

// watchConfig reports on-disk edits. Every setting is read once at startup,
// so a change only takes effect after a restart.
func watchConfig(path string, logger logging.Logger) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	err := config.Watch(path,
		func(next *config.Config) {
			logger.Warn("configuration changed on disk, restart to apply",
				logging.String("path", path),
				logging.String("log_level", next.Log.Level),
				logging.Int("report_parallelism", next.Reporting.Parallelism))
		},
		func(err error) {
			logger.Error("ignoring invalid configuration revision", logging.Err(err))
		})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}
