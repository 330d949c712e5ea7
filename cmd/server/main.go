package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/soham-0-0-7/split-slice/internal/auth"
	"github.com/soham-0-0-7/split-slice/internal/config"
	"github.com/soham-0-0-7/split-slice/internal/lock/redislock"
	"github.com/soham-0-0-7/split-slice/internal/metrics"
	"github.com/soham-0-0-7/split-slice/internal/middleware"
	"github.com/soham-0-0-7/split-slice/internal/reconcile"
	"github.com/soham-0-0-7/split-slice/internal/scheduler"
	"github.com/soham-0-0-7/split-slice/internal/server"
	"github.com/soham-0-0-7/split-slice/internal/service"
	"github.com/soham-0-0-7/split-slice/internal/storage/sqlstore"
	"github.com/soham-0-0-7/split-slice/pkg/logging"
)

const (
	shutdownTimeout   = 15 * time.Second
	redisPingTimeout  = 5 * time.Second
	limiterIdle       = 10 * time.Minute
	limiterCleanupJob = "@every 10m"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	store, err := sqlstore.Open(cfg.Database.Driver, dsn(cfg.Database))
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	slog.Info("Storage initialized", "driver", cfg.Database.Driver)

	collector := metrics.NewCollector(cfg.MetricsNamespace)
	opts := []reconcile.Option{
		reconcile.WithMetrics(collector),
		reconcile.WithLogger(slog.Default()),
	}

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		opts = append(opts, reconcile.WithLocker(redislock.New(rdb, cfg.LockExpiry, slog.Default())))
		slog.Info("Redis scope locks enabled", "addr", cfg.Redis.Addr, "expiry", cfg.LockExpiry)
	} else {
		slog.Warn("Redis not configured, scope locks are local to this process")
	}

	reconciler := reconcile.New(store, opts...)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	router := server.NewRouter(server.Options{
		Service:     service.NewSettlementService(store, store, reconciler, nil),
		JWT:         auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		RateLimiter: limiter,
		Metrics:     collector.Registry(),
		Health:      store,
	})

	sched := scheduler.New(slog.Default())
	if cfg.RenetSchedule != "" {
		renetter := scheduler.NewRenetter(store, reconciler, collector, slog.Default())
		if err := sched.Add("renet", cfg.RenetSchedule, renetter.Job); err != nil {
			return err
		}
	} else {
		slog.Info("Periodic re-netting disabled")
	}
	if err := sched.Add("rate-limit-cleanup", limiterCleanupJob, func(context.Context) {
		if n := limiter.Cleanup(limiterIdle); n > 0 {
			slog.Debug("Idle rate limiters removed", "count", n)
		}
	}); err != nil {
		return err
	}
	sched.Start()

	// Wrap with h2c for HTTP/2 without TLS (required for Connect)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h2c.NewHandler(router, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, httpServer, sched)
}

// serve runs httpServer until ctx is done or the listener fails. Either way
// the scheduler is stopped and the server drained before it returns.
func serve(ctx context.Context, httpServer *http.Server, sched *scheduler.Scheduler) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Connect server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
		slog.Error("HTTP server failed", "error", serveErr)
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		slog.Warn("Scheduled jobs did not stop in time", "error", err)
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Join(serveErr, fmt.Errorf("failed to shut down http server: %w", err))
	}
	if serveErr != nil {
		return fmt.Errorf("http server: %w", serveErr)
	}
	slog.Info("Server stopped")
	return nil
}

func dsn(db config.DatabaseConfig) string {
	if db.Driver == config.DriverPostgres {
		return db.URL
	}
	return db.Path
}
