package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/adlbuilder/pkg/api"
	"github.com/platinummonkey/adlbuilder/pkg/assistants"
	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/config"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/revocation"
	"github.com/platinummonkey/adlbuilder/pkg/storage"
	"github.com/platinummonkey/adlbuilder/pkg/templates"
	"github.com/platinummonkey/adlbuilder/pkg/users"
	"github.com/platinummonkey/adlbuilder/pkg/validation"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("adlbuilder exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = observability.WithLogger(ctx, logger)

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTelConfig(), logger)
	if err != nil {
		return fmt.Errorf("initialize OpenTelemetry: %w", err)
	}

	var (
		registry *prometheus.Registry
		metrics  *observability.Metrics
	)
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = observability.NewMetrics(registry)
	}

	var otelMetrics *observability.OTelMetrics
	if providers != nil {
		if otelMetrics, err = observability.NewOTelMetrics(); err != nil {
			return fmt.Errorf("create OTel instruments: %w", err)
		}
	}

	db, err := storage.Open(cfg.Database.Config)
	if err != nil {
		return err
	}
	logger.WithField("driver", cfg.Database.Driver).Info("Connected to database")

	if cfg.Database.AutoMigrate {
		applied, err := storage.Migrate(ctx, db, cfg.Database.Driver)
		if err != nil {
			db.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.WithField("applied", applied).Info("Database migrations complete")
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return err
		}
		logger.Info("Connected to Redis")
	}

	userStore := users.NewStore(db)
	assistantStore := assistants.NewStore(db)

	var ledger revocation.Ledger = revocation.NewStore(db)
	if cfg.Auth.RevocationCacheTTL > 0 {
		cached := revocation.NewCachedLedger(ledger, cfg.Auth.RevocationCacheSize, cfg.Auth.RevocationCacheTTL, metrics)
		if registry != nil {
			if err := cached.RegisterGauges(registry); err != nil {
				return fmt.Errorf("register revocation cache gauges: %w", err)
			}
		}
		ledger = cached
	}

	codec, err := auth.NewCodec(cfg.Auth.CodecConfig())
	if err != nil {
		return err
	}
	issuer, err := auth.NewIssuer(codec, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	if err != nil {
		return err
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	gate := auth.NewGate(codec, ledger, userStore, logger, metrics).WithOTelMetrics(otelMetrics)
	sessions := auth.NewSessions(issuer, gate, ledger, userStore, hasher, logger, metrics).WithOTelMetrics(otelMetrics)

	validator, err := validation.NewSchemaValidator(cfg.Content.SchemaPath)
	if err != nil {
		return fmt.Errorf("load ADL schema: %w", err)
	}
	if cfg.Content.WatchSchema {
		if err := validator.Watch(ctx, logger, nil); err != nil {
			return fmt.Errorf("watch ADL schema: %w", err)
		}
	}
	catalog := templates.NewCatalog(cfg.Content.TemplatesDir, logger)

	loginLimiter, backend := newLoginLimiter(ctx, cfg.Auth, redisClient)

	apiServer := api.NewServer(cfg.Server, api.Dependencies{
		DB:             db,
		Users:          userStore,
		Assistants:     assistantStore,
		Sessions:       sessions,
		Gate:           gate,
		Hasher:         hasher,
		Ledger:         ledger,
		Validator:      validator,
		Templates:      catalog,
		LoginLimiter:   loginLimiter,
		LimiterBackend: backend,
		Logger:         logger,
		Metrics:        metrics,
		OTelMetrics:    otelMetrics,
		Version:        version,
		Now:            codec.Now,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	checker := observability.NewHealthChecker(version).
		Register("database", true, observability.DatabaseProbe(db)).
		Register("schema", true, func(context.Context) error {
			if validator.Document() == nil {
				return errors.New("schema not loaded")
			}
			return nil
		})
	if redisClient != nil {
		// The limiter fails open without Redis.
		checker.Register("redis", false, observability.RedisProbe(redisClient))
	}

	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, checker)
	if registry != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           healthMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout, httpServer, healthServer)

	if cfg.Janitor.PurgeSchedule != "" {
		janitor := revocation.NewJanitor(ledger, logger, metrics).WithOTelMetrics(otelMetrics)
		if err := janitor.Start(cfg.Janitor.PurgeSchedule); err != nil {
			return err
		}
		shutdown.RegisterShutdownFunc(janitor.Stop)
	}
	shutdown.RegisterShutdownFunc(providers.Shutdown)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr).WithField("version", version).Info("Starting API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("API server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Starting health server")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	if metrics != nil {
		g.Go(func() error {
			reportDBStats(gctx, db, metrics)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		err := shutdown.Shutdown(context.Background())
		if redisClient != nil {
			if cerr := redisClient.Close(); cerr != nil {
				logger.WithError(cerr).Warn("Failed to close Redis client")
			}
		}
		if cerr := db.Close(); cerr != nil {
			logger.WithError(cerr).Warn("Failed to close database")
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// newLoginLimiter picks the shared Redis window when Redis is configured and
// the in-process bucket otherwise. A zero limit disables login throttling.
func newLoginLimiter(ctx context.Context, cfg config.AuthConfig, client *redis.Client) (middleware.Limiter, string) {
	if cfg.LoginRateLimit <= 0 {
		return nil, ""
	}

	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.LoginRateLimit,
		WindowDuration:    cfg.LoginRateWindow,
	}

	if client != nil {
		return middleware.NewDistributedRateLimiter(client, limits, "adlbuilder:login"), "redis"
	}

	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter, "memory"
}

func reportDBStats(ctx context.Context, db *sql.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.UpdateDBStats(db.Stats())
		case <-ctx.Done():
			return
		}
	}
}
