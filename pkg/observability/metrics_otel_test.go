package observability

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeterProvider creates a test meter provider with a manual reader
func setupTestMeterProvider(t *testing.T) *metric.ManualReader {
	t.Helper()
	reader := metric.NewManualReader()
	provider := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func collectSums(t *testing.T, reader *metric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if sum, ok := m.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					sums[m.Name] += dp.Value
				}
			}
		}
	}
	return sums
}

func TestOTelMetrics_Record(t *testing.T) {
	reader := setupTestMeterProvider(t)

	m, err := NewOTelMetrics()
	if err != nil {
		t.Fatalf("NewOTelMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordAuthAttempt(ctx, "access", "success", 2*time.Millisecond)
	m.RecordAuthAttempt(ctx, "refresh", "revoked", time.Millisecond)
	m.RecordTokenIssued(ctx, "access")
	m.RecordTokenIssued(ctx, "refresh")
	m.RecordTokenRevoked(ctx, "refresh")
	m.RecordRevocationsPurged(ctx, "expired", 4)
	m.RecordRevocationsPurged(ctx, "expired", 0)

	sums := collectSums(t, reader)

	want := map[string]int64{
		"adlbuilder.auth.attempts":      2,
		"adlbuilder.tokens.issued":      2,
		"adlbuilder.tokens.revoked":     1,
		"adlbuilder.revocations.purged": 4,
	}
	for name, value := range want {
		if sums[name] != value {
			t.Errorf("%s = %d, want %d", name, sums[name], value)
		}
	}
}

func TestOTelMetrics_NilReceiver(t *testing.T) {
	var m *OTelMetrics
	ctx := context.Background()

	m.RecordAuthAttempt(ctx, "access", "success", time.Millisecond)
	m.RecordTokenIssued(ctx, "access")
	m.RecordTokenRevoked(ctx, "access")
	m.RecordRevocationsPurged(ctx, "expired", 1)
}
