package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http/handlers"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure behind the route tree.
type RouterConfig struct {
	FormSchemaHandler *handlers.FormSchemaHandler
	AnnexureHandler   *handlers.AnnexureHandler
	ReportHandler     *handlers.ReportHandler
	HealthHandler     *handlers.HealthHandler

	Logger           logging.Logger
	LoggingConfig    middleware.LoggingConfig
	MetricsCollector prometheus.MetricsCollector
	Metrics          *prometheus.AppMetrics
	MetricsPath      string
	// MaxBodySize caps request bodies; zero means no cap.
	MaxBodySize int64
}

// NewRouter builds the complete route tree. Nil handlers leave their routes
// unregistered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, cfg.LoggingConfig))
	}
	if cfg.MaxBodySize > 0 {
		r.Use(chimw.RequestSize(cfg.MaxBodySize))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if h := cfg.FormSchemaHandler; h != nil {
			api.Get("/form-schemas/modules", h.ListModules)
			api.Route("/services/{serviceID}/form-schema", func(sr chi.Router) {
				sr.Get("/", h.Get)
				sr.Put("/", h.Upsert)
			})
		}
		api.Route("/cases/{caseID}", func(cr chi.Router) {
			if cfg.AnnexureHandler != nil {
				cr.Put("/annexures/{table}", cfg.AnnexureHandler.Upsert)
			}
			if cfg.ReportHandler != nil {
				cr.Get("/attachments", cfg.ReportHandler.Attachments)
			}
		})
		if h := cfg.ReportHandler; h != nil {
			api.Get("/reports/case-status", h.CaseStatus)
			api.Get("/reports/tat-delay", h.TATDelay)
		}
	})

	return r
}
