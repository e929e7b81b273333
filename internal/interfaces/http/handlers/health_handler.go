package handlers

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
)

const readinessTimeout = 5 * time.Second

// HealthChecker is a backend checked by /readyz.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a ping function. An Optional backend that is down
// degrades readiness without failing it: the core keeps serving without the
// cache, the notification producer or presigned URLs.
type CheckerFunc struct {
	Component string
	Fn        func(ctx context.Context) error
	Optional  bool
}

func (c CheckerFunc) Name() string                    { return c.Component }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

type optionalChecker interface{ IsOptional() bool }

func (c CheckerFunc) IsOptional() bool { return c.Optional }

// HealthHandler serves /healthz and /readyz.
type HealthHandler struct {
	checkers []HealthChecker
	version  string
	started  time.Time
	metrics  *prometheus.AppMetrics
}

func NewHealthHandler(version string, metrics *prometheus.AppMetrics, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{checkers: checkers, version: version, started: time.Now(), metrics: metrics}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ReadinessResponse.Status is "ready", "degraded" (an optional backend is
// down) or "not_ready".
type ReadinessResponse struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

type ComponentCheck struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Latency  string `json:"latency,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Liveness never touches a backend.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.started).Truncate(time.Second).String(),
	})
}

// Readiness answers 503 only when a required backend is down.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := h.checkAll(ctx)
	resp := ReadinessResponse{Status: "ready"}
	if len(checks) > 0 {
		resp.Components = make(map[string]ComponentCheck, len(checks))
	}
	code := http.StatusOK
	for i, c := range checks {
		resp.Components[h.checkers[i].Name()] = c
		if c.Status == "healthy" {
			continue
		}
		if !c.Optional {
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
		} else if resp.Status == "ready" {
			resp.Status = "degraded"
		}
	}
	writeJSON(w, code, resp)
}

// checkAll checks every backend concurrently; results line up with h.checkers.
func (h *HealthHandler) checkAll(ctx context.Context) []ComponentCheck {
	out := make([]ComponentCheck, len(h.checkers))
	var g errgroup.Group
	for i, c := range h.checkers {
		i, c := i, c
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			cc := ComponentCheck{Status: "healthy", Latency: time.Since(start).Truncate(time.Microsecond).String()}
			if o, ok := c.(optionalChecker); ok {
				cc.Optional = o.IsOptional()
			}
			if err != nil {
				cc.Status = "unhealthy"
				cc.Error = err.Error()
			}
			prometheus.SetHealth(h.metrics, c.Name(), err == nil)
			out[i] = cc
			return nil
		})
	}
	_ = g.Wait()
	return out
}
