package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the order engine.
type Metrics struct {
	OrdersAccepted  prometheus.Counter
	OrdersRejected  prometheus.Counter
	OrdersConfirmed prometheus.Counter
	OrdersFailed    prometheus.Counter

	JobsResolved     prometheus.Counter
	RetriesScheduled prometheus.Counter
	DeadLetters      prometheus.Counter
	EntriesReclaimed prometheus.Counter

	QuotesSelected *prometheus.CounterVec // labels: venue
	RoutingDur     prometheus.Histogram
	ExecutionDur   prometheus.Histogram

	Notifications *prometheus.CounterVec // labels: outcome
	WSClients     prometheus.Gauge
}

// NewMetrics registers and returns all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		OrdersAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_orders_accepted_total",
			Help: "Orders accepted at intake and enqueued",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_orders_rejected_total",
			Help: "Intake requests rejected by validation",
		}),
		OrdersConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_orders_confirmed_total",
			Help: "Orders that reached CONFIRMED",
		}),
		OrdersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_orders_failed_total",
			Help: "Order attempts that ended in FAILED",
		}),
		JobsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_jobs_resolved_total",
			Help: "Queue jobs resolved successfully",
		}),
		RetriesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_retries_scheduled_total",
			Help: "Job attempts scheduled for retry with backoff",
		}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_dead_letters_total",
			Help: "Jobs dead-lettered after exhausting attempts",
		}),
		EntriesReclaimed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ordersvc_entries_reclaimed_total",
			Help: "Stale pending entries reclaimed from dead consumers",
		}),
		QuotesSelected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordersvc_quotes_selected_total",
			Help: "Winning quotes by venue",
		}, []string{"venue"}),
		RoutingDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ordersvc_routing_duration_seconds",
			Help:    "Best-route fan-out latency",
			Buckets: prometheus.DefBuckets,
		}),
		ExecutionDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ordersvc_execution_duration_seconds",
			Help:    "Swap settlement latency",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ordersvc_notifications_total",
			Help: "Notification delivery attempts by outcome",
		}, []string{"outcome"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ordersvc_ws_clients",
			Help: "Currently connected notification subscribers",
		}),
	}

	prometheus.MustRegister(
		m.OrdersAccepted,
		m.OrdersRejected,
		m.OrdersConfirmed,
		m.OrdersFailed,
		m.JobsResolved,
		m.RetriesScheduled,
		m.DeadLetters,
		m.EntriesReclaimed,
		m.QuotesSelected,
		m.RoutingDur,
		m.ExecutionDur,
		m.Notifications,
		m.WSClients,
	)

	return m
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool      `json:"redis_connected"`
	SQLiteOK       bool      `json:"sqlite_ok"`
	WorkersRunning bool      `json:"workers_running"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetWorkersRunning(v bool) {
	h.mu.Lock()
	h.WorkersRunning = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite runs a trivial query and records health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	err := db.PingContext(ctx)
	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.RedisConnected || !h.SQLiteOK || !h.WorkersRunning {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status         string  `json:"status"`
		Uptime         string  `json:"uptime"`
		RedisConnected bool    `json:"redis_connected"`
		RedisLatencyMs float64 `json:"redis_latency_ms"`
		SQLiteOK       bool    `json:"sqlite_ok"`
		WorkersRunning bool    `json:"workers_running"`
		LastCheckAt    string  `json:"last_check_at"`
	}{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		SQLiteOK:       h.SQLiteOK,
		WorkersRunning: h.WorkersRunning,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
