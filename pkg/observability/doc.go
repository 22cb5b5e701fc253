// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes, and graceful shutdown.
//
// # Structured Logging
//
// Logger wraps logrus with a JSON formatter:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("user_id", 42).Info("login succeeded")
//
// Request-scoped loggers travel in the context:
//
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).Warn("token revoked")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordAuthAttempt("access", "success")
//
// The Record helpers are safe on a nil *Metrics, so components accept an
// optional metrics value without branching.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version).
//		Register("database", true, observability.DatabaseProbe(db)).
//		Register("redis", false, observability.RedisProbe(redisClient))
//	observability.RegisterHealthRoutes(mux, checker)
//
// A failed critical probe makes readiness return 503; other failures only
// degrade it.
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "adlbuilder",
//	}, logger)
//	defer providers.Shutdown(ctx)
//
// # Shutdown
//
//	sm := observability.NewShutdownManager(logger, 30*time.Second, apiServer, healthServer)
//	sm.RegisterShutdownFunc(janitor.Stop)
//	err := sm.WaitForShutdown(ctx)
package observability
