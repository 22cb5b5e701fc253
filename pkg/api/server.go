package api

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/adlbuilder/pkg/assistants"
	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/config"
	"github.com/platinummonkey/adlbuilder/pkg/httputil"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/templates"
	"github.com/platinummonkey/adlbuilder/pkg/users"
	"github.com/platinummonkey/adlbuilder/pkg/validation"
)

// OwnerPurger drops the revocation rows of one user once a credential cutoff
// or account deletion makes them redundant.
type OwnerPurger interface {
	PurgeByOwner(ctx context.Context, ownerID int64) (int64, error)
	PurgeRevokedBefore(ctx context.Context, ownerID int64, cutoff time.Time) (int64, error)
}

// purgeCounters reports owner purges on both metric backends. Either may be nil.
type purgeCounters struct {
	metrics *observability.Metrics
	otel    *observability.OTelMetrics
}

func (c purgeCounters) record(ctx context.Context, n int64) {
	c.metrics.RecordRevocationsPurged("owner", n)
	c.otel.RecordRevocationsPurged(ctx, "owner", n)
}

// Dependencies are the collaborators the handlers call into. LoginLimiter and
// Metrics may be nil.
type Dependencies struct {
	DB         *sql.DB
	Users      *users.Store
	Assistants *assistants.Store
	Sessions   *auth.Sessions
	Gate       middleware.Authenticator
	Hasher     *auth.PasswordHasher
	Ledger     OwnerPurger
	Validator  *validation.SchemaValidator
	Templates  *templates.Catalog

	LoginLimiter   middleware.Limiter
	LimiterBackend string

	Logger      *observability.Logger
	Metrics     *observability.Metrics
	OTelMetrics *observability.OTelMetrics
	Version     string

	// Now must be the clock the token codec uses. Defaults to time.Now.
	Now func() time.Time
}

// Server is the ADL builder HTTP API
type Server struct {
	router  *mux.Router
	handler http.Handler
	deps    Dependencies
	authMW  *middleware.AuthMiddleware

	authHandlers      *AuthHandlers
	userHandlers      *UserHandlers
	adminHandlers     *AdminHandlers
	assistantHandlers *AssistantHandlers
	contentHandlers   *ContentHandlers
}

// NewServer wires every handler group under cfg.APIPrefix and wraps the
// router in tracing and the common middleware chain.
func NewServer(cfg config.ServerConfig, deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = observability.NewLogger(observability.InfoLevel, os.Stdout)
	}

	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
		authMW: middleware.NewAuthMiddleware(deps.Gate),
	}

	var loginLimit *middleware.RateLimitMiddleware
	if deps.LoginLimiter != nil {
		loginLimit = middleware.NewRateLimitMiddleware(deps.LoginLimiter, deps.LimiterBackend, deps.Logger, deps.Metrics)
		loginLimit.SetTrustProxy(cfg.TrustProxyHeaders)
	}

	s.authHandlers = NewAuthHandlers(deps.Sessions, loginLimit)
	purges := purgeCounters{metrics: deps.Metrics, otel: deps.OTelMetrics}
	s.userHandlers = NewUserHandlers(deps.Users, deps.Hasher, deps.Ledger, deps.Now)
	s.userHandlers.purges = purges
	s.adminHandlers = NewAdminHandlers(deps.Users, deps.Ledger)
	s.adminHandlers.purges = purges
	s.assistantHandlers = NewAssistantHandlers(deps.Assistants, deps.Validator)
	s.contentHandlers = NewContentHandlers(deps.Validator, deps.Templates, deps.Assistants)

	s.setupRoutes(cfg.APIPrefix)

	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(deps.Logger),
		httputil.RecoveryMiddleware(deps.Logger),
	}
	if len(cfg.CORSOrigins) > 0 {
		middlewares = append(middlewares, httputil.CORSMiddleware(cfg.CORSOrigins))
	}
	if cfg.MaxBodyBytes > 0 {
		middlewares = append(middlewares, httputil.MaxBytesMiddleware(cfg.MaxBodyBytes))
	}

	s.handler = otelhttp.NewHandler(httputil.Chain(middlewares...)(s.router), "adlbuilder-api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
	return s
}

func (s *Server) setupRoutes(prefix string) {
	if s.deps.Metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}

	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := s.router.PathPrefix(strings.TrimSuffix(prefix, "/")).Subrouter()

	// Routes that authenticate themselves or need no identity.
	public := api.NewRoute().Subrouter()
	s.authHandlers.RegisterPublicRoutes(public)
	s.userHandlers.RegisterPublicRoutes(public)
	s.assistantHandlers.RegisterPublicRoutes(public)
	s.contentHandlers.RegisterPublicRoutes(public)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMW.Handler)
	s.authHandlers.RegisterRoutes(protected)
	s.userHandlers.RegisterRoutes(protected)
	s.assistantHandlers.RegisterRoutes(protected)
	s.contentHandlers.RegisterRoutes(protected)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(s.authMW.Handler, middleware.RequireAdmin)
	s.adminHandlers.RegisterRoutes(admin)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the underlying router, mainly for route inspection in tests
func (s *Server) Router() *mux.Router {
	return s.router
}

// health reports process and database status on the API port
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	database := "ok"
	if s.deps.DB == nil {
		database = "unconfigured"
	} else if err := s.deps.DB.PingContext(r.Context()); err != nil {
		observability.FromContext(r.Context()).WithError(err).Warn("Health check database ping failed")
		database = "error"
	}

	_ = httputil.WriteSuccess(w, map[string]string{
		"status":   "ok",
		"database": database,
		"version":  s.deps.Version,
	})
}

// handleSlash registers path both with and without a trailing slash
func handleSlash(r *mux.Router, path string, h http.HandlerFunc, method string) {
	r.HandleFunc(path, h).Methods(method)
	r.HandleFunc(path+"/", h).Methods(method)
}
