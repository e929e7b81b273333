// Command worker rebuilds the TAT delay tree on a schedule so breach
// notifications go out without anyone opening the report. It also serves
// liveness, readiness and metrics for its orchestrator.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/app"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/application/reporting"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/config"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	httpserver "github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http/handlers"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHealthPort       = 9091
	maxRetries              = 3
	defaultScanTimeout      = 5 * time.Minute
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	interval := flag.Duration("interval", 0, "scan interval (overrides reporting.scan_interval)")
	healthPort := flag.Int("health-port", defaultHealthPort, "port for /healthz, /readyz and /metrics")
	once := flag.Bool("once", false, "run a single scan and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *interval > 0 {
		cfg.Reporting.ScanInterval = *interval
	}
	// The scanner exists to publish breaches.
	cfg.Reporting.NotifyBreaches = true

	logger, err := app.NewLogger(cfg.Log, "screeningstar-worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	if !cfg.Kafka.Enabled {
		logger.Warn("kafka disabled, breach events will be dropped")
	}

	if err := run(cfg, *healthPort, *once, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker exited with error", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

func run(cfg *config.Config, healthPort int, once bool, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	scanner := reporting.NewScanner(c.Delay, reporting.ScannerConfig{
		Interval:   cfg.Reporting.ScanInterval,
		Timeout:    defaultScanTimeout,
		MaxRetries: maxRetries,
	}, logger)
	if once {
		return scanner.ScanOnce(ctx)
	}

	healthSrv := startHealthServer(c, healthPort, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return scanner.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return healthSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func startHealthServer(c *app.Container, port int, logger logging.Logger) *http.Server {
	checkers := []handlers.HealthChecker{
		handlers.CheckerFunc{Component: "postgres", Fn: c.DB.HealthCheck},
	}
	if c.Producer != nil {
		checkers = append(checkers, handlers.CheckerFunc{Component: "kafka", Fn: c.Producer.HealthCheck})
	}

	router := httpserver.NewRouter(httpserver.RouterConfig{
		HealthHandler:    handlers.NewHealthHandler(version, c.Metrics, checkers...),
		MetricsCollector: c.Collector,
		MetricsPath:      c.Config.Monitoring.MetricsPath,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("health server listening", logging.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("health server error", logging.Err(err))
		}
	}()
	return srv
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
