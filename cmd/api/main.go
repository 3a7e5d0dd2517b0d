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

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/api/rest"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/auth"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/cache"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/database"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/repository"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/commission-protection-backend/internal/metrics"
	"github.com/davidleathers/commission-protection-backend/internal/service/dashboard"
	"github.com/davidleathers/commission-protection-backend/internal/service/detection"
	"github.com/davidleathers/commission-protection-backend/internal/service/evidence"
	"github.com/davidleathers/commission-protection-backend/internal/service/monitoring"
	"github.com/davidleathers/commission-protection-backend/internal/service/notification"
	"github.com/davidleathers/commission-protection-backend/internal/service/review"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner/providers"
	"github.com/davidleathers/commission-protection-backend/internal/service/scheduler"
)

const serviceName = "commission-protection-api"

func main() {
	var (
		configPath = flag.String("config", config.DefaultConfigFile, "Path to configuration file")
		migrate    = flag.Bool("migrate", false, "Apply pending migrations before serving")
	)
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		slog.Error("failed to setup logger", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	zlog, err := telemetry.NewZapLogger(cfg.Environment, cfg.LogLevel)
	if err != nil {
		logger.Error("failed to setup zap logger", "error", err)
		os.Exit(1)
	}
	defer func() { _ = zlog.Sync() }()

	if *migrate {
		if err := runMigrations(cfg.Database.URL, logger); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
	}

	if err := run(ctx, cfg, logger, zlog); err != nil {
		logger.Error("application failed", "error", err)
		os.Exit(1)
	}
}

func runMigrations(url string, logger *slog.Logger) error {
	m, err := database.NewMigrator(url)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		return err
	}
	version, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("migrations applied", "version", version)
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, zlog *zap.Logger) error {
	logger.Info("starting commission protection backend",
		"version", cfg.Version,
		"environment", cfg.Environment,
		"port", cfg.Server.Port)

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telemetry.FromAppConfig(cfg, serviceName))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to shutdown telemetry", "error", err)
		}
	}()

	pool, err := database.NewPool(ctx, &cfg.Database, zlog)
	if err != nil {
		return err
	}
	defer pool.Close()

	healthChecks := map[string]rest.HealthCheck{
		"database": func(ctx context.Context) error { return database.HealthCheck(ctx, pool) },
	}

	// Redis is optional: without it scans go uncached and the hourly quota is not enforced.
	var (
		scanCache cache.Cache
		limiter   cache.RateLimiter
	)
	cacheMgr, err := cache.NewManager(&cfg.Redis, zlog)
	if err != nil {
		logger.Warn("redis unavailable, continuing without scan cache", "error", err)
	} else {
		defer func() {
			if err := cacheMgr.Close(); err != nil {
				logger.Warn("failed to close cache", "error", err)
			}
		}()
		scanCache, limiter = cacheMgr.Cache, cacheMgr.RateLimiter
		healthChecks["redis"] = cacheMgr.HealthCheck
	}

	m, err := metrics.NewRegistry(serviceName)
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	promRegistry := prometheus.NewRegistry()
	registerProcessMetrics(promRegistry, cfg.Version, cfg.Environment, pool)

	rate, err := values.NewCommissionRate(cfg.Detection.CommissionRate)
	if err != nil {
		return err
	}
	clock := values.RealClock{}
	repos := repository.NewRepositories(pool)

	scan := scanner.NewService(providers.NewManager(cfg.Providers, zlog), scanCache, m, clock, scanner.Config{
		CommissionRate:  rate,
		ProviderTimeout: cfg.Detection.ProviderTimeout,
		CacheTTL:        cfg.Detection.ScanCacheTTL,
		ScanInterval:    cfg.Detection.ScanInterval,
	}, zlog)

	detector := detection.NewService(detection.Repositories{
		Breaches: repos.Breaches,
		Showings: repos.Showings,
		Visits:   repos.Visits,
		Alerts:   repos.Alerts,
	}, m, clock, detection.Config{
		CommissionRate:     rate,
		HighRiskLoss:       values.NewMoneyFromInt(cfg.Detection.HighRiskLossThreshold),
		ShowingGracePeriod: cfg.Detection.ShowingGracePeriod,
	}, zlog)

	monitor := monitoring.NewService(scan, detector, repos.Contracts, limiter, clock, monitoring.Config{
		ScansPerHour:  cfg.Security.ScanLimit.PerHour,
		RescanWorkers: cfg.Scheduler.Workers,
	}, zlog)

	hub := notification.NewHub(notification.DefaultHubConfig(), m, zlog)
	defer hub.Close()

	notifiers := notification.Multi{hub}
	if webhook := notification.NewWebhookNotifier(cfg.Notification.WebhookURL, 0, zlog); webhook != nil {
		notifiers = append(notifiers, webhook)
	}
	dispatcher := notification.NewDispatcher(notifiers, repos.Breaches, m, clock, notification.DispatcherConfig{
		MaxAttempts:  cfg.Notification.MaxAttempts,
		RetryBackoff: cfg.Notification.RetryBackoff,
	}, zlog)

	reviews := review.NewService(repos.Breaches, dispatcher, m, clock, zlog)
	dash := dashboard.NewService(repos.Contracts, repos.Alerts, repos.Protections, cfg.Detection.ExpiringSoonWindow, zlog)
	ev := evidence.NewService(evidence.Repositories{
		Contracts:   repos.Contracts,
		Showings:    repos.Showings,
		Visits:      repos.Visits,
		Protections: repos.Protections,
		Alerts:      repos.Alerts,
	}, detector, clock, zlog)

	if cfg.Scheduler.Enabled {
		tasks := scheduler.StandardTasks(scheduler.Jobs{
			Showings:      detector,
			Contracts:     repos.Contracts,
			Expiring:      dash,
			Notifications: dispatcher,
			Rescans:       monitor,
			Now:           time.Now,
		}, scheduler.Intervals{
			Reconcile: cfg.Scheduler.ReconcileInterval,
			Sweep:     cfg.Notification.SweepInterval,
			Rescan:    cfg.Scheduler.RescanInterval,
		}, zlog)
		sched, err := scheduler.New(zlog, tasks...)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		registerSchedulerMetrics(promRegistry, sched)
		sched.Start(ctx)
		defer sched.Stop()
	}

	tokens, err := auth.NewTokenService(auth.Config{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Security.Issuer,
		Expiry: cfg.Security.TokenExpiry,
	})
	if err != nil {
		return fmt.Errorf("failed to create token service: %w", err)
	}

	router := rest.NewRouter(rest.Config{
		Version:  cfg.Version,
		Tokens:   tokens,
		Registry: promRegistry,
		Tracer:   provider.TracerProvider.Tracer(serviceName),
		RateLimit: rest.RateLimitConfig{
			RequestsPerSecond: cfg.Security.RateLimit.RequestsPerSecond,
			Burst:             cfg.Security.RateLimit.BurstSize,
		},
		HealthChecks: healthChecks,
		Logger:       logger,
	}, rest.Services{
		Monitoring: monitor,
		Review:     reviews,
		Dashboard:  dash,
		Evidence:   ev,
		Reconciler: detector,
		Hub:        hub,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
