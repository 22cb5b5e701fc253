// Command token-janitor purges expired entries from the revoked token ledger,
// either once or on a cron schedule. Run it when the API server's in-process
// purge schedule is disabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/revocation"
	"github.com/platinummonkey/adlbuilder/pkg/storage"
)

var (
	dbDriver = flag.String("db-driver", getEnv("ADL_DB_DRIVER", storage.DriverSQLite), "Database driver (sqlite3 or postgres)")
	dbURL    = flag.String("db-url", getEnv("ADL_DATABASE_URL", storage.DefaultConfig().DSN), "Database connection URL")
	schedule = flag.String("schedule", getEnv("ADL_PURGE_SCHEDULE", "0 * * * *"), "Cron schedule for purges (default: every hour)")
	runOnce  = flag.Bool("run-once", false, "Purge once and exit")
	logLevel = flag.String("log-level", getEnv("ADL_LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := observability.NewLogger(parseLogLevel(*logLevel), os.Stdout)

	cfg := storage.DefaultConfig()
	cfg.Driver = *dbDriver
	cfg.DSN = *dbURL

	db, err := storage.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	janitor := revocation.NewJanitor(revocation.NewStore(db), logger, nil)

	if *runOnce {
		purged, err := janitor.RunOnce(context.Background())
		if err != nil {
			logger.WithError(err).Error("Purge failed")
			db.Close()
			os.Exit(1)
		}
		fmt.Printf("Purged %d expired revoked tokens\n", purged)
		return
	}

	if err := janitor.Start(*schedule); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to schedule purge: %v\n", err)
		db.Close()
		os.Exit(1)
	}
	logger.Info("Token janitor started")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("Shutting down gracefully...")
	if err := janitor.Stop(context.Background()); err != nil {
		logger.WithError(err).Warn("Janitor did not stop cleanly")
	}
	logger.Info("Token janitor stopped")
}

func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
