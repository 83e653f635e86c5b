package observability

import (
	"context"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/prismbi/prism-backend/internal/platform/logger"
)

// Metrics is the process-wide metric registry. Nil receivers are legal
// everywhere so call sites never need an enabled-check.
type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	pipelineOps     *CounterVec
	pipelineLatency *HistogramVec
	pipelineRetries *CounterVec
	conflictTotal   *Counter

	versionsCreated *Counter

	importDashboards *CounterVec
	importCharts     *Counter

	eventsPublished    *CounterVec
	cacheInvalidations *Counter

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = &Metrics{
			apiRequests: NewCounterVec("pb_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec(
				"pb_api_request_duration_seconds",
				"API request latency in seconds by method/route/status.",
				[]string{"method", "route", "status"},
				[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			),
			apiInflight: NewGauge("pb_api_inflight_requests", "In-flight API requests."),
			pipelineOps: NewCounterVec(
				"pb_dashboard_pipeline_total",
				"Dashboard pipeline executions by operation/status.",
				[]string{"op", "status"},
			),
			pipelineLatency: NewHistogramVec(
				"pb_dashboard_pipeline_duration_seconds",
				"Dashboard pipeline duration in seconds by operation/status.",
				[]string{"op", "status"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			),
			pipelineRetries: NewCounterVec(
				"pb_dashboard_pipeline_retry_total",
				"Dashboard pipeline retries by operation.",
				[]string{"op"},
			),
			conflictTotal:   NewCounter("pb_dashboard_pipeline_conflict_total", "Dashboard pipeline transactions aborted by write conflicts."),
			versionsCreated: NewCounter("pb_dashboard_versions_created_total", "Dashboard version rows appended."),
			importDashboards: NewCounterVec(
				"pb_bundle_import_dashboards_total",
				"Bundle import dashboard outcomes.",
				[]string{"outcome"},
			),
			importCharts: NewCounter("pb_bundle_import_charts_total", "Charts upserted by bundle imports."),
			eventsPublished: NewCounterVec(
				"pb_dashboard_events_published_total",
				"Dashboard mutation events published by type.",
				[]string{"type"},
			),
			cacheInvalidations: NewCounter("pb_dashboard_cache_invalidation_total", "Dashboard cache invalidations issued."),
			pgStats:            NewGaugeVec("pb_postgres_stats", "Postgres connection stats.", []string{"metric"}),
			redisUp:            NewGauge("pb_redis_up", "Redis connectivity (1=up, 0=down)."),
			redisPing:          NewGauge("pb_redis_ping_seconds", "Redis ping latency in seconds."),
		}
		if log != nil {
			log.Info("observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveOperation, IncConflict and IncRetry satisfy the aggregate
// pipeline's telemetry interface.
func (m *Metrics) ObserveOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	m.pipelineOps.Inc(name, status)
	if dur > 0 {
		m.pipelineLatency.Observe(dur.Seconds(), name, status)
	}
}

func (m *Metrics) IncConflict(name string) {
	if m == nil {
		return
	}
	m.conflictTotal.Inc()
}

func (m *Metrics) IncRetry(name string) {
	if m == nil {
		return
	}
	if name == "" {
		name = "unknown"
	}
	m.pipelineRetries.Inc(name)
}

func (m *Metrics) IncVersionCreated() {
	if m == nil {
		return
	}
	m.versionsCreated.Inc()
}

func (m *Metrics) IncImportDashboard(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.importDashboards.Inc(outcome)
}

func (m *Metrics) AddImportCharts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.importCharts.Add(float64(n))
}

func (m *Metrics) IncEventPublished(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.eventsPublished.Inc(eventType)
}

func (m *Metrics) IncCacheInvalidation() {
	if m == nil {
		return
	}
	m.cacheInvalidations.Inc()
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	writers := []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.pipelineOps, m.pipelineLatency, m.pipelineRetries, m.conflictTotal,
		m.versionsCreated,
		m.importDashboards, m.importCharts,
		m.eventsPublished, m.cacheInvalidations,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, mw := range writers {
		if err := mw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func scrapeInterval() time.Duration {
	v := strings.TrimSpace(os.Getenv("METRICS_SCRAPE_INTERVAL_SECONDS"))
	if v == "" {
		return 10 * time.Second
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 10 * time.Second
	}
	return time.Duration(n) * time.Second
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
