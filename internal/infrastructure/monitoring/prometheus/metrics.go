package prometheus

import (
	"strconv"
	"time"
)

// AppMetrics holds the case core metrics. A nil *AppMetrics is valid and
// records nothing, so components can run without a registry.
type AppMetrics struct {
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	MigrationsTotal   CounterVec
	MigrationDuration HistogramVec
	MigrationRetries  CounterVec
	LockWaitDuration  HistogramVec

	AnnexureUpsertsTotal CounterVec

	ReportBuildDuration HistogramVec
	ReportCasesTotal    GaugeVec
	ServiceLookupErrors CounterVec

	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec

	NotificationsTotal CounterVec
	HealthCheckStatus  GaugeVec
}

var (
	DefaultHTTPDurationBuckets   = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDDLDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 15}
	DefaultReportDurationBuckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")

	m.MigrationsTotal = collector.RegisterCounter("annexure_migrations_total", "Annexure DDL statements applied", "operation", "result")
	m.MigrationDuration = collector.RegisterHistogram("annexure_migration_duration_seconds", "Annexure DDL duration", DefaultDDLDurationBuckets, "operation")
	m.MigrationRetries = collector.RegisterCounter("annexure_migration_retries_total", "Migrations retried after a schema conflict", "operation")
	m.LockWaitDuration = collector.RegisterHistogram("annexure_lock_wait_seconds", "Time spent acquiring the per-table migration lock", DefaultDDLDurationBuckets, "scope")

	m.AnnexureUpsertsTotal = collector.RegisterCounter("annexure_upserts_total", "Annexure record writes", "outcome")

	m.ReportBuildDuration = collector.RegisterHistogram("report_build_duration_seconds", "Report tree build duration", DefaultReportDurationBuckets, "report")
	m.ReportCasesTotal = collector.RegisterGauge("report_cases", "Cases in the last built report tree", "report")
	m.ServiceLookupErrors = collector.RegisterCounter("report_service_lookup_errors_total", "Per-service status lookups that failed", "report")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")

	m.NotificationsTotal = collector.RegisterCounter("notifications_total", "Notification events raised", "type")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")

	return m
}

func RecordHTTPRequest(m *AppMetrics, method, route string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMigration counts one ensureTable/ensureColumns step. result is
// "applied", "noop" or "error".
func RecordMigration(m *AppMetrics, operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.MigrationsTotal.WithLabelValues(operation, result).Inc()
	m.MigrationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordMigrationRetry(m *AppMetrics, operation string) {
	if m == nil {
		return
	}
	m.MigrationRetries.WithLabelValues(operation).Inc()
}

func RecordLockWait(m *AppMetrics, scope string, d time.Duration) {
	if m == nil {
		return
	}
	m.LockWaitDuration.WithLabelValues(scope).Observe(d.Seconds())
}

func RecordUpsert(m *AppMetrics, outcome string) {
	if m == nil {
		return
	}
	m.AnnexureUpsertsTotal.WithLabelValues(outcome).Inc()
}

func RecordReportBuild(m *AppMetrics, report string, cases int, lookupErrors int, d time.Duration) {
	if m == nil {
		return
	}
	m.ReportBuildDuration.WithLabelValues(report).Observe(d.Seconds())
	m.ReportCasesTotal.WithLabelValues(report).Set(float64(cases))
	if lookupErrors > 0 {
		m.ServiceLookupErrors.WithLabelValues(report).Add(float64(lookupErrors))
	}
}

func RecordCacheAccess(m *AppMetrics, cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

func RecordNotification(m *AppMetrics, eventType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.NotificationsTotal.WithLabelValues(eventType).Add(float64(n))
}

func SetHealth(m *AppMetrics, component string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	m.HealthCheckStatus.WithLabelValues(component).Set(v)
}
