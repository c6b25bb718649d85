// cmd/ordersvc — the order execution service.
//
// Accepts swap orders over HTTP, routes each across the simulated liquidity
// venues, executes, and streams per-order status updates over WebSocket.
// See config.Load for the environment surface.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"swap-enginev1/config"
	"swap-enginev1/internal/api"
	"swap-enginev1/internal/dex"
	"swap-enginev1/internal/logger"
	"swap-enginev1/internal/metrics"
	"swap-enginev1/internal/model"
	"swap-enginev1/internal/notify"
	"swap-enginev1/internal/pipeline"
	"swap-enginev1/internal/queue"
	"swap-enginev1/internal/store/sqlite"
)

func main() {
	godotenv.Load()
	cfg := config.Load()
	logger.Init("ordersvc", slog.LevelInfo, cfg.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Liquidity simulation.
	table := dex.DefaultPriceTable()
	specs := dex.DefaultVenueSpecs()
	if cfg.VenueFile != "" {
		var err error
		table, specs, err = dex.LoadVenueFile(cfg.VenueFile)
		if err != nil {
			log.Fatalf("[ordersvc] %v", err)
		}
	}
	sources := make([]dex.QuoteSource, 0, len(specs))
	for _, spec := range specs {
		sources = append(sources, dex.NewVenue(spec, table, cfg.QuoteLatency))
	}
	router := dex.NewRouter(sources...)

	executor := dex.NewExecutor(cfg.SettlementLatency)
	if cfg.FailExecution {
		executor.SetFailFn(func(model.Order) bool { return true })
		log.Printf("[ordersvc] FAIL_EXECUTION enabled: every settlement will fail")
	}

	// Observability.
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	// Dead-letter journal.
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		os.MkdirAll(dir, 0o755)
	}
	journal, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		log.Fatalf("[ordersvc] %v", err)
	}
	defer journal.Close()

	// Notification hub, shared by the WS accept path and the workers.
	hub := notify.NewHub()
	hub.OnCountChange = func(n int) { prom.WSClients.Set(float64(n)) }

	// Queue + worker pool running the order pipeline.
	proc := pipeline.New(router, executor, hub, prom)
	q, err := queue.New(queue.Config{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Partitions:  cfg.QueuePartitions,
		Group:       cfg.ConsumerGroup,
		Consumer:    cfg.ConsumerName,
		Concurrency: cfg.WorkerConcurrency,
		RateMax:     cfg.RateLimitMax,
		RateWindow:  cfg.RateLimitWindow,
		Policy: queue.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			Backoff:     cfg.RetryBackoff,
			MaxDelay:    cfg.RetryMaxDelay,
		},
	}, proc.Handler(), journal, prom)
	if err != nil {
		log.Fatalf("[ordersvc] %v", err)
	}
	defer q.Close()

	go func() {
		health.SetWorkersRunning(true)
		if err := q.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[ordersvc] queue stopped: %v", err)
		}
		health.SetWorkersRunning(false)
	}()

	// Health probes + /metrics.
	health.CheckRedis(ctx, q.Client())
	health.CheckSQLite(ctx, journal.DB())
	health.StartLivenessChecker(ctx, q.Client(), journal.DB(), 10*time.Second)
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// Intake + WS API.
	apiSrv := api.NewServer(q, hub, journal, prom)
	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: apiSrv.Routes()}
	go func() {
		log.Printf("[ordersvc] listening on %s", cfg.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("[ordersvc] http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[ordersvc] shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpSrv.Shutdown(shutdownCtx)
	metricsSrv.Stop(shutdownCtx)
}
