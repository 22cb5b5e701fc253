// Package config provides application configuration management from environment variables.
//
// # Overview
//
// LoadConfig reads ADL_* variables, applies defaults and validates the
// result. A missing or weak ADL_SECRET_KEY fails with an error wrapping
// auth.ErrConfiguration; the server refuses to start.
//
// # Configuration Structure
//
// Server settings:
//
//	ADL_HOST="0.0.0.0"
//	ADL_PORT="8000"
//	ADL_HEALTH_PORT="9090"
//	ADL_API_PREFIX="/api/v1"
//	ADL_CORS_ORIGINS="http://localhost:3000,https://adl.example"
//	ADL_TRUST_PROXY_HEADERS="false"
//
// Database settings:
//
//	ADL_DB_DRIVER="sqlite3"             # sqlite3 or postgres
//	ADL_DATABASE_URL="file:adlbuilder.db?cache=shared"
//	ADL_DB_AUTO_MIGRATE="true"
//
// Auth settings:
//
//	ADL_SECRET_KEY="..."                # required, at least 32 bytes
//	ADL_JWT_ALGORITHM="HS256"           # HS256, HS384 or HS512
//	ADL_ACCESS_TOKEN_TTL="15m"
//	ADL_REFRESH_TOKEN_TTL="168h"
//	ADL_REVOCATION_CACHE_TTL="0"        # >0 enables the not-revoked cache
//	ADL_LOGIN_RATE_LIMIT="10"           # per ADL_LOGIN_RATE_WINDOW, 0 disables
//
// Redis (optional, shares the login rate limit across replicas):
//
//	ADL_REDIS_URL="redis://localhost:6379/0"
//
// Content:
//
//	ADL_SCHEMA_PATH="schema.yaml"
//	ADL_TEMPLATES_DIR="templates"
//	ADL_SCHEMA_WATCH="false"
//
// Operations:
//
//	ADL_PURGE_SCHEDULE="@hourly"        # in-process ledger purge, empty disables
//	ADL_LOG_LEVEL="info"
//	ADL_METRICS_ENABLED="true"
//	ADL_OTEL_ENABLED="false"
//	ADL_OTEL_ENDPOINT="localhost:4317"
//
// # Usage
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	codec, err := auth.NewCodec(cfg.Auth.CodecConfig())
package config
