package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
)

// Purger removes expired ledger entries
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// Janitor purges expired revocations, once or on a cron schedule
type Janitor struct {
	ledger  Purger
	logger  *observability.Logger
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
	timeout time.Duration
	now     func() time.Time
	cron    *cron.Cron
}

// NewJanitor creates a janitor for ledger
func NewJanitor(ledger Purger, logger *observability.Logger, metrics *observability.Metrics) *Janitor {
	return &Janitor{
		ledger:  ledger,
		logger:  logger,
		metrics: metrics,
		timeout: time.Minute,
		now:     time.Now,
	}
}

// WithOTelMetrics additionally reports purges over OTLP
func (j *Janitor) WithOTelMetrics(m *observability.OTelMetrics) *Janitor {
	j.otel = m
	return j
}

// RunOnce purges every entry that expired before now
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	purged, err := j.ledger.PurgeExpired(ctx, j.now())
	if err != nil {
		j.logger.WithError(err).Error("Revoked token purge failed")
		return 0, err
	}

	j.metrics.RecordRevocationsPurged("expired", purged)
	j.otel.RecordRevocationsPurged(ctx, "expired", purged)
	j.logger.WithFields(map[string]interface{}{
		"purged":      purged,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("Purged expired revoked tokens")

	return purged, nil
}

// Start schedules RunOnce with a standard five field cron expression
func (j *Janitor) Start(schedule string) error {
	if j.cron != nil {
		return fmt.Errorf("janitor already started")
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		defer observability.RecoverPanic(j.logger, "revoked token purge")
		j.RunOnce(context.Background()) //nolint:errcheck // logged in RunOnce
	})
	if err != nil {
		return fmt.Errorf("invalid purge schedule %q: %w", schedule, err)
	}

	c.Start()
	j.cron = c
	j.logger.Infof("Revoked token purge scheduled: %s", schedule)
	return nil
}

// Stop halts the schedule and waits for a running purge to finish
func (j *Janitor) Stop(ctx context.Context) error {
	if j.cron == nil {
		return nil
	}
	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
