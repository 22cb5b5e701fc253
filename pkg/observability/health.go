package observability

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// ErrDegraded marks a probe failure that leaves the dependency usable
var ErrDegraded = errors.New("degraded")

// Probe checks one dependency. Returning an error wrapping ErrDegraded
// reports the dependency as degraded rather than unhealthy.
type Probe func(ctx context.Context) error

type namedProbe struct {
	name     string
	critical bool
	probe    Probe
}

// HealthChecker runs the registered probes for the readiness endpoint
type HealthChecker struct {
	version string

	mu     sync.RWMutex
	probes []namedProbe
}

// HealthStatus is the readiness report
type HealthStatus struct {
	Status       string                      `json:"status"`
	Timestamp    time.Time                   `json:"timestamp"`
	Version      string                      `json:"version,omitempty"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus is the outcome of one probe
type DependencyStatus struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	LatencyMS int64     `json:"latency_ms"`
	Critical  bool      `json:"critical"`
	Timestamp time.Time `json:"timestamp"`
}

// NewHealthChecker creates a checker with no probes
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{version: version}
}

// Register adds a probe. A failing critical probe makes the service
// unhealthy; any other failure only degrades it.
func (h *HealthChecker) Register(name string, critical bool, probe Probe) *HealthChecker {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes = append(h.probes, namedProbe{name: name, critical: critical, probe: probe})
	return h
}

// Version returns the build version reported by the checker
func (h *HealthChecker) Version() string {
	return h.version
}

// Liveness always returns 200 while the process is serving
func (h *HealthChecker) Liveness(w http.ResponseWriter, r *http.Request) {
	writeHealthJSON(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now().UTC(),
	})
}

// Readiness runs every probe and returns 503 when unhealthy
func (h *HealthChecker) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeHealthJSON(w, code, status)
}

// Check runs the probes concurrently and folds their results
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	h.mu.RLock()
	probes := append([]namedProbe(nil), h.probes...)
	h.mu.RUnlock()

	results := make([]DependencyStatus, len(probes))
	var wg sync.WaitGroup
	for i, p := range probes {
		wg.Add(1)
		go func(i int, p namedProbe) {
			defer wg.Done()
			results[i] = runProbe(ctx, p)
		}(i, p)
	}
	wg.Wait()

	status := HealthStatus{
		Status:       StatusHealthy,
		Timestamp:    time.Now().UTC(),
		Version:      h.version,
		Dependencies: make(map[string]DependencyStatus, len(probes)),
	}
	for i, p := range probes {
		result := results[i]
		status.Dependencies[p.name] = result
		switch {
		case result.Status == StatusHealthy:
		case result.Status == StatusUnhealthy && p.critical:
			status.Status = StatusUnhealthy
		case status.Status != StatusUnhealthy:
			status.Status = StatusDegraded
		}
	}
	return status
}

func runProbe(ctx context.Context, p namedProbe) (result DependencyStatus) {
	start := time.Now()
	result = DependencyStatus{Status: StatusHealthy, Critical: p.critical, Timestamp: start.UTC()}

	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusUnhealthy
			result.Message = fmt.Sprintf("probe panicked: %v", r)
		}
		result.LatencyMS = time.Since(start).Milliseconds()
	}()

	if err := p.probe(ctx); err != nil {
		result.Status = StatusUnhealthy
		if errors.Is(err, ErrDegraded) {
			result.Status = StatusDegraded
		}
		result.Message = err.Error()
	}
	return result
}

// DatabaseProbe runs a trivial query and reports an exhausted pool as degraded
func DatabaseProbe(db *sql.DB) Probe {
	return func(ctx context.Context) error {
		var one int
		if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		stats := db.Stats()
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
			return fmt.Errorf("%w: connection pool exhausted", ErrDegraded)
		}
		return nil
	}
}

// RedisProbe pings client
func RedisProbe(client *redis.Client) Probe {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// RegisterHealthRoutes registers health check endpoints
func RegisterHealthRoutes(mux *http.ServeMux, checker *HealthChecker) {
	mux.HandleFunc("/health/live", checker.Liveness)
	mux.HandleFunc("/health/ready", checker.Readiness)
}

func writeHealthJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}
