// Package middleware provides HTTP middleware for authentication, authorization, and rate limiting.
//
// # Middleware Components
//
// AuthMiddleware: bearer access token authentication through the auth gate
//
//	authn := middleware.NewAuthMiddleware(gate)
//	protected := router.PathPrefix("/users").Subrouter()
//	protected.Use(authn.Handler)
//
// Failures map to 401 "Could not validate credentials" (with
// WWW-Authenticate: Bearer), 400 "Inactive user", or 500 for store errors.
//
// RequireAdmin: 403 "Not enough permissions" unless the identity is an admin
//
//	admin.Use(authn.Handler, middleware.RequireAdmin)
//
// RateLimitMiddleware: login throttling per client address
//
//	limiter := middleware.NewRateLimiter(middleware.DefaultLoginRateLimitConfig())
//	// or, shared across replicas:
//	limiter := middleware.NewDistributedRateLimiter(redisClient, cfg, "")
//	throttle := middleware.NewRateLimitMiddleware(limiter, "redis", logger, metrics)
//
// The in-memory limiter is a token bucket; the Redis limiter is a fixed
// window keyed by client address. Redis errors fail open unless
// SetFallbackEnabled(false) is called.
//
// # Related Packages
//
//   - pkg/auth: Gate and sessions
//   - pkg/httputil: Response helpers
package middleware
