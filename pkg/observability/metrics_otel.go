package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics mirrors the token lifecycle counters onto the OTLP meter so
// they reach the collector alongside traces.
type OTelMetrics struct {
	authAttempts     metric.Int64Counter
	authDuration     metric.Float64Histogram
	tokensIssued     metric.Int64Counter
	tokensRevoked    metric.Int64Counter
	revocationsPurge metric.Int64Counter
}

// NewOTelMetrics creates instruments on the global meter provider
func NewOTelMetrics() (*OTelMetrics, error) {
	meter := otel.Meter(InstrumentationName)

	m := &OTelMetrics{}
	var err error

	m.authAttempts, err = meter.Int64Counter(
		"adlbuilder.auth.attempts",
		metric.WithDescription("Bearer token authentication attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth attempts counter: %w", err)
	}

	m.authDuration, err = meter.Float64Histogram(
		"adlbuilder.auth.duration",
		metric.WithDescription("Time spent validating a bearer token"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth duration histogram: %w", err)
	}

	m.tokensIssued, err = meter.Int64Counter(
		"adlbuilder.tokens.issued",
		metric.WithDescription("Tokens minted"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens issued counter: %w", err)
	}

	m.tokensRevoked, err = meter.Int64Counter(
		"adlbuilder.tokens.revoked",
		metric.WithDescription("Tokens added to the revocation ledger"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokens revoked counter: %w", err)
	}

	m.revocationsPurge, err = meter.Int64Counter(
		"adlbuilder.revocations.purged",
		metric.WithDescription("Revocation entries removed"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create revocations purged counter: %w", err)
	}

	return m, nil
}

// RecordAuthAttempt records one gate decision and how long it took
func (m *OTelMetrics) RecordAuthAttempt(ctx context.Context, tokenType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("token.type", tokenType),
		attribute.String("auth.outcome", outcome),
	)
	m.authAttempts.Add(ctx, 1, attrs)
	m.authDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordTokenIssued records a minted token
func (m *OTelMetrics) RecordTokenIssued(ctx context.Context, tokenType string) {
	if m == nil {
		return
	}
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attribute.String("token.type", tokenType)))
}

// RecordTokenRevoked records a new ledger entry
func (m *OTelMetrics) RecordTokenRevoked(ctx context.Context, tokenType string) {
	if m == nil {
		return
	}
	m.tokensRevoked.Add(ctx, 1, metric.WithAttributes(attribute.String("token.type", tokenType)))
}

// RecordRevocationsPurged records removed ledger entries
func (m *OTelMetrics) RecordRevocationsPurged(ctx context.Context, reason string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.revocationsPurge.Add(ctx, n, metric.WithAttributes(attribute.String("purge.reason", reason)))
}
