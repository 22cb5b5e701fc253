package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/storage"
)

// placeholderSecret is the well-known development default that must never sign real tokens
const placeholderSecret = "your-secret-key-change-in-production"

// minSecretLength is the shortest accepted HMAC secret in bytes
const minSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Redis         storage.RedisConfig
	Content       ContentConfig
	Janitor       JanitorConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string

	APIPrefix         string
	CORSOrigins       []string
	MaxBodyBytes      int64
	TrustProxyHeaders bool
}

// DatabaseConfig selects the SQL store
type DatabaseConfig struct {
	storage.Config
	AutoMigrate bool
}

// AuthConfig holds token signing and login settings
type AuthConfig struct {
	SecretKey       string
	Algorithm       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	// RevocationCacheTTL > 0 enables the not-revoked cache
	RevocationCacheSize int
	RevocationCacheTTL  time.Duration

	// LoginRateLimit is attempts per LoginRateWindow per client; 0 disables
	LoginRateLimit  int
	LoginRateWindow time.Duration
}

// CodecConfig returns the signing configuration for auth.NewCodec
func (a AuthConfig) CodecConfig() auth.CodecConfig {
	return auth.CodecConfig{
		Secret:    a.SecretKey,
		Algorithm: a.Algorithm,
		Issuer:    a.Issuer,
	}
}

// ContentConfig locates the ADL schema and assistant templates
type ContentConfig struct {
	SchemaPath   string
	TemplatesDir string
	WatchSchema  bool
}

// JanitorConfig schedules revocation ledger purges. An empty schedule disables
// the in-process janitor.
type JanitorConfig struct {
	PurgeSchedule string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// OTelConfig returns the tracing configuration for observability.InitOTel
func (o ObservabilityConfig) OTelConfig() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Auth:          loadAuthConfig(),
		Redis:         loadRedisConfig(),
		Content:       loadContentConfig(),
		Janitor:       JanitorConfig{PurgeSchedule: getEnv("ADL_PURGE_SCHEDULE", "")},
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:              getEnv("ADL_HOST", "0.0.0.0"),
		Port:              getEnv("ADL_PORT", "8000"),
		ReadTimeout:       getEnvDuration("ADL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      getEnvDuration("ADL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       getEnvDuration("ADL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getEnvDuration("ADL_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:        getEnv("ADL_HEALTH_PORT", "9090"),
		APIPrefix:         getEnv("ADL_API_PREFIX", "/api/v1"),
		CORSOrigins:       getEnvList("ADL_CORS_ORIGINS", []string{"http://localhost", "http://localhost:3000", "http://localhost:8000"}),
		MaxBodyBytes:      getEnvInt64("ADL_MAX_BODY_BYTES", 1<<20),
		TrustProxyHeaders: getEnvBool("ADL_TRUST_PROXY_HEADERS", false),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	cfg := storage.DefaultConfig()

	cfg.Driver = getEnv("ADL_DB_DRIVER", cfg.Driver)
	cfg.DSN = getEnv("ADL_DATABASE_URL", cfg.DSN)
	if maxConns := getEnvInt("ADL_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("ADL_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	if timeout := getEnvDuration("ADL_DB_TIMEOUT", 0); timeout > 0 {
		cfg.Timeout = timeout
	}

	return DatabaseConfig{
		Config:      cfg,
		AutoMigrate: getEnvBool("ADL_DB_AUTO_MIGRATE", true),
	}
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		SecretKey:           os.Getenv("ADL_SECRET_KEY"),
		Algorithm:           getEnv("ADL_JWT_ALGORITHM", "HS256"),
		Issuer:              getEnv("ADL_JWT_ISSUER", "adlbuilder"),
		AccessTokenTTL:      getEnvDuration("ADL_ACCESS_TOKEN_TTL", 15*time.Minute),
		RefreshTokenTTL:     getEnvDuration("ADL_REFRESH_TOKEN_TTL", 7*24*time.Hour),
		BcryptCost:          getEnvInt("ADL_BCRYPT_COST", 0),
		RevocationCacheSize: getEnvInt("ADL_REVOCATION_CACHE_SIZE", 10000),
		RevocationCacheTTL:  getEnvDuration("ADL_REVOCATION_CACHE_TTL", 0),
		LoginRateLimit:      getEnvInt("ADL_LOGIN_RATE_LIMIT", 10),
		LoginRateWindow:     getEnvDuration("ADL_LOGIN_RATE_WINDOW", time.Minute),
	}
}

func loadRedisConfig() storage.RedisConfig {
	return storage.RedisConfig{
		URL:        getEnv("ADL_REDIS_URL", ""),
		Password:   getEnv("ADL_REDIS_PASSWORD", ""),
		DB:         getEnvInt("ADL_REDIS_DB", 0),
		MaxRetries: getEnvInt("ADL_REDIS_MAX_RETRIES", 0),
		PoolSize:   getEnvInt("ADL_REDIS_POOL_SIZE", 0),
	}
}

func loadContentConfig() ContentConfig {
	return ContentConfig{
		SchemaPath:   getEnv("ADL_SCHEMA_PATH", "schema.yaml"),
		TemplatesDir: getEnv("ADL_TEMPLATES_DIR", "templates"),
		WatchSchema:  getEnvBool("ADL_SCHEMA_WATCH", false),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("ADL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("ADL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ADL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ADL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ADL_OTEL_SERVICE_NAME", "adlbuilder"),
		OTelServiceVersion: getEnv("ADL_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ADL_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("ADL_OTEL_SAMPLE_RATIO", 1),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if !strings.HasPrefix(c.Server.APIPrefix, "/") {
		return fmt.Errorf("API prefix must start with '/': %q", c.Server.APIPrefix)
	}

	switch c.Database.Driver {
	case storage.DriverSQLite, storage.DriverPostgres:
	default:
		return fmt.Errorf("invalid database driver: %s (must be sqlite3 or postgres)", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database URL is required")
	}

	if err := c.Auth.validate(); err != nil {
		return err
	}

	if c.Janitor.PurgeSchedule != "" {
		if _, err := cron.ParseStandard(c.Janitor.PurgeSchedule); err != nil {
			return fmt.Errorf("invalid purge schedule %q: %w", c.Janitor.PurgeSchedule, err)
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
		if c.Observability.OTelSampleRatio < 0 || c.Observability.OTelSampleRatio > 1 {
			return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1]")
		}
	}

	return nil
}

func (a AuthConfig) validate() error {
	switch {
	case a.SecretKey == "":
		return fmt.Errorf("%w: ADL_SECRET_KEY is required", auth.ErrConfiguration)
	case a.SecretKey == placeholderSecret:
		return fmt.Errorf("%w: ADL_SECRET_KEY is set to the development placeholder", auth.ErrConfiguration)
	case len(a.SecretKey) < minSecretLength:
		return fmt.Errorf("%w: ADL_SECRET_KEY must be at least %d bytes", auth.ErrConfiguration, minSecretLength)
	}

	switch a.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("%w: unsupported signing algorithm %q", auth.ErrConfiguration, a.Algorithm)
	}

	if a.Issuer == "" {
		return fmt.Errorf("%w: token issuer is required", auth.ErrConfiguration)
	}
	if a.AccessTokenTTL <= 0 || a.RefreshTokenTTL <= 0 {
		return fmt.Errorf("%w: token lifetimes must be positive", auth.ErrConfiguration)
	}
	if a.RefreshTokenTTL < a.AccessTokenTTL {
		return fmt.Errorf("%w: refresh token lifetime must not be shorter than access token lifetime", auth.ErrConfiguration)
	}
	if a.LoginRateLimit < 0 {
		return fmt.Errorf("login rate limit must not be negative")
	}
	if a.LoginRateLimit > 0 && a.LoginRateWindow <= 0 {
		return fmt.Errorf("login rate window must be positive")
	}
	if a.RevocationCacheTTL > 0 && a.RevocationCacheSize <= 0 {
		return fmt.Errorf("revocation cache size must be positive when the cache is enabled")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty items
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
