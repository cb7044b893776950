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

	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge
	apiReqTotal *Counter
	apiReqError *Counter

	rpcCalls *CounterVec

	reorderTotal  *CounterVec
	reorderBlocks *HistogramVec

	datasetLoads   *CounterVec
	datasetCache   *CounterVec
	datasetLatency *HistogramVec
	datasetRows    *HistogramVec

	upstreamRequests *CounterVec
	upstreamLatency  *HistogramVec

	dbStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide registry, or nil when metrics are disabled.
// Every method is nil-safe.
func Current() *Metrics {
	return instance
}

func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = New()
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

// New builds an unregistered registry. Tests use it directly.
func New() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("if_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"if_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight: NewGauge("if_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("if_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("if_api_requests_error_total", "Total API requests with 5xx status."),
		rpcCalls:    NewCounterVec("if_rpc_calls_total", "RPC procedure calls by procedure/result code.", []string{"procedure", "code"}),
		reorderTotal: NewCounterVec(
			"if_block_reorder_total",
			"Block reorder transactions by result.",
			[]string{"result"},
		),
		reorderBlocks: NewHistogramVec(
			"if_block_reorder_size",
			"Number of blocks renumbered per reorder.",
			[]string{},
			[]float64{1, 2, 5, 10, 20, 50, 100, 200},
		),
		datasetLoads: NewCounterVec("if_dataset_loads_total", "Dataset loads by source/result.", []string{"source", "result"}),
		datasetCache: NewCounterVec("if_dataset_cache_total", "Dataset cache lookups by result.", []string{"result"}),
		datasetLatency: NewHistogramVec(
			"if_dataset_load_duration_seconds",
			"Dataset fetch+parse latency by source/result.",
			[]string{"source", "result"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		datasetRows: NewHistogramVec(
			"if_dataset_rows",
			"Rows per parsed dataset.",
			[]string{},
			[]float64{10, 100, 1000, 5000, 10000, 50000, 100000},
		),
		upstreamRequests: NewCounterVec("if_upstream_requests_total", "Outbound requests by upstream/status.", []string{"upstream", "status"}),
		upstreamLatency: NewHistogramVec(
			"if_upstream_request_duration_seconds",
			"Outbound request latency by upstream/status.",
			[]string{"upstream", "status"},
			[]float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		dbStats:   NewGaugeVec("if_db_stats", "Database connection pool stats.", []string{"metric"}),
		redisUp:   NewGauge("if_redis_up", "Redis connectivity (1=up, 0=down)."),
		redisPing: NewGauge("if_redis_ping_seconds", "Redis ping latency in seconds."),
	}
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

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.rpcCalls,
		m.reorderTotal, m.reorderBlocks,
		m.datasetLoads, m.datasetCache, m.datasetLatency, m.datasetRows,
		m.upstreamRequests, m.upstreamLatency,
		m.dbStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
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
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
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

// IncRPC counts one procedure call; code is "ok" or the error code returned.
func (m *Metrics) IncRPC(procedure, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	m.rpcCalls.Inc(procedure, code)
}

func (m *Metrics) ObserveReorder(result string, blocks int) {
	if m == nil {
		return
	}
	m.reorderTotal.Inc(result)
	if result == "ok" {
		m.reorderBlocks.Observe(float64(blocks))
	}
}

func (m *Metrics) ObserveDatasetLoad(source, result string, rows int, dur time.Duration) {
	if m == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}
	m.datasetLoads.Inc(source, result)
	m.datasetLatency.Observe(dur.Seconds(), source, result)
	if result == "ok" {
		m.datasetRows.Observe(float64(rows))
	}
}

func (m *Metrics) IncDatasetCache(result string) {
	if m == nil {
		return
	}
	m.datasetCache.Inc(result)
}

func (m *Metrics) ObserveUpstream(upstream string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	if status == 0 {
		code = "error"
	}
	m.upstreamRequests.Inc(upstream, code)
	m.upstreamLatency.Observe(dur.Seconds(), upstream, code)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
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
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.Set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.Set(float64(stats.InUse), "in_use")
				m.dbStats.Set(float64(stats.Idle), "idle")
				m.dbStats.Set(float64(stats.WaitCount), "wait_count")
				m.dbStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
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

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	return len(status) >= 3 && status[0] == '5'
}
