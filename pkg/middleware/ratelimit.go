package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/platinummonkey/adlbuilder/pkg/httputil"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
)

// RateLimitConfig defines rate limiting configuration
type RateLimitConfig struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// WindowDuration is the time window for rate limiting
	WindowDuration time.Duration
	// BurstSize allows temporary bursts above the rate
	BurstSize int
}

// DefaultLoginRateLimitConfig allows ten login attempts per minute per client
func DefaultLoginRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Minute,
	}
}

func (c *RateLimitConfig) capacity() int {
	return c.RequestsPerWindow + c.BurstSize
}

// Limiter decides whether the request identified by key may proceed. When it
// may not, retryAfter says how long until it would.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// RateLimiter implements rate limiting using token bucket algorithm.
// Buckets are local to the process; see DistributedRateLimiter for a shared limit.
type RateLimiter struct {
	config  *RateLimitConfig
	buckets map[string]*bucket
	mu      sync.RWMutex
	now     func() time.Time
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config *RateLimitConfig) *RateLimiter {
	if config == nil || config.RequestsPerWindow <= 0 || config.WindowDuration <= 0 {
		config = DefaultLoginRateLimitConfig()
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one token for key
func (rl *RateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	rl.mu.Lock()
	b, exists := rl.buckets[key]
	if !exists {
		b = &bucket{
			tokens:     rl.config.capacity(),
			lastUpdate: rl.now(),
		}
		rl.buckets[key] = b
	}
	rl.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()

	now := rl.now()
	perToken := rl.config.WindowDuration / time.Duration(rl.config.RequestsPerWindow)

	// Refill whole tokens only, carrying the remainder forward in lastUpdate
	if refill := int(now.Sub(b.lastUpdate) / perToken); refill > 0 {
		b.tokens += refill
		if b.tokens >= rl.config.capacity() {
			b.tokens = rl.config.capacity()
			b.lastUpdate = now
		} else {
			b.lastUpdate = b.lastUpdate.Add(time.Duration(refill) * perToken)
		}
	}

	if b.tokens > 0 {
		b.tokens--
		return true, 0, nil
	}

	return false, perToken - now.Sub(b.lastUpdate), nil
}

// Remaining returns the number of remaining tokens for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.RLock()
	b, exists := rl.buckets[key]
	rl.mu.RUnlock()

	if !exists {
		return rl.config.capacity()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.tokens
}

// Cleanup removes buckets idle for more than two windows
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		b.mu.Lock()
		if now.Sub(b.lastUpdate) > rl.config.WindowDuration*2 {
			delete(rl.buckets, key)
		}
		b.mu.Unlock()
	}
}

// StartCleanup starts a background goroutine to cleanup old buckets
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(rl.config.WindowDuration)
	go func() {
		defer observability.RecoverPanic(observability.GetLogger(ctx), "ratelimit-cleanup")
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// RateLimitMiddleware limits requests per client address
type RateLimitMiddleware struct {
	limiter    Limiter
	backend    string
	trustProxy bool
	failOpen   bool
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// NewRateLimitMiddleware wraps limiter. backend labels metrics and logs
// ("memory" or "redis"); metrics may be nil.
func NewRateLimitMiddleware(limiter Limiter, backend string, logger *observability.Logger, metrics *observability.Metrics) *RateLimitMiddleware {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &RateLimitMiddleware{
		limiter:  limiter,
		backend:  backend,
		failOpen: true,
		logger:   logger,
		metrics:  metrics,
	}
}

// SetTrustProxy makes the client key come from X-Forwarded-For / X-Real-IP.
// Only enable behind a proxy that overwrites those headers.
func (m *RateLimitMiddleware) SetTrustProxy(trust bool) {
	m.trustProxy = trust
}

// SetFallbackEnabled controls whether to fail open (true) or closed (false) on limiter errors
func (m *RateLimitMiddleware) SetFallbackEnabled(enabled bool) {
	m.failOpen = enabled
}

// Handler wraps an HTTP handler with rate limiting
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + clientIP(r, m.trustProxy)

		allowed, retryAfter, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.logger.WithError(err).WithField("backend", m.backend).Warn("Rate limiter unavailable")
			if m.failOpen {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
			return
		}

		if !allowed {
			m.metrics.RecordRateLimited(m.backend)
			observability.FromContext(r.Context()).WithField("client", key).Info("Login rate limit exceeded")
			httputil.WriteTooManyRequests(w, "Too many login attempts, try again later", retryAfter)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first, _, _ := strings.Cut(forwarded, ",")
			return strings.TrimSpace(first)
		}
		if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
