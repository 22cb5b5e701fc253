package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/users"
)

// Gate outcomes, used as the outcome label of the auth attempts metric
const (
	OutcomeSuccess      = "success"
	OutcomeInvalidToken = "invalid_token"
	OutcomeWrongType    = "wrong_type"
	OutcomeRevoked      = "revoked"
	OutcomeUnknownUser  = "unknown_user"
	OutcomeStaleToken   = "stale_token"
	OutcomeInactive     = "inactive"
	OutcomeError        = "error"
)

// RevocationChecker answers whether a token id has been revoked
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// UserLookup resolves a token subject to its account
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*users.User, error)
}

// Gate is the single authentication path for both token types
type Gate struct {
	codec       *Codec
	revocations RevocationChecker
	users       UserLookup
	logger      *observability.Logger
	metrics     *observability.Metrics
	otelMetrics *observability.OTelMetrics
}

// NewGate creates a gate. metrics may be nil.
func NewGate(codec *Codec, revocations RevocationChecker, users UserLookup, logger *observability.Logger, metrics *observability.Metrics) *Gate {
	return &Gate{
		codec:       codec,
		revocations: revocations,
		users:       users,
		logger:      logger,
		metrics:     metrics,
	}
}

// WithOTelMetrics additionally reports outcomes and latency over OTLP
func (g *Gate) WithOTelMetrics(m *observability.OTelMetrics) *Gate {
	g.otelMetrics = m
	return g
}

// Authenticate validates raw as a token of the expected type and returns the
// owning identity. Every rejection before the account state check returns
// ErrInvalidCredentials; a disabled account returns ErrInactiveAccount. Any
// other error is an internal failure of the ledger or user store.
func (g *Gate) Authenticate(ctx context.Context, raw string, expected TokenType) (*Identity, error) {
	start := time.Now()
	ctx, span := observability.Tracer().Start(ctx, "auth.Authenticate",
		trace.WithAttributes(attribute.String("auth.expected_type", string(expected))))
	defer span.End()

	identity, outcome, err := g.authenticate(ctx, raw, expected)

	g.metrics.RecordAuthAttempt(string(expected), outcome)
	g.otelMetrics.RecordAuthAttempt(ctx, string(expected), outcome, time.Since(start))
	span.SetAttributes(attribute.String("auth.outcome", outcome))

	if err != nil {
		if outcome == OutcomeError {
			span.RecordError(err)
			span.SetStatus(codes.Error, "authentication backend failure")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int64("enduser.id", identity.User.ID))
	return identity, nil
}

func (g *Gate) authenticate(ctx context.Context, raw string, expected TokenType) (*Identity, string, error) {
	claims, err := g.codec.Decode(raw)
	if err != nil {
		return nil, OutcomeInvalidToken, ErrInvalidCredentials
	}

	log := g.logger.WithFields(map[string]interface{}{
		"jti":  claims.ID,
		"sub":  claims.Subject,
		"type": string(claims.Type),
	})

	if claims.Type != expected {
		log.WithField("expected", string(expected)).Debug("Token type mismatch")
		return nil, OutcomeWrongType, ErrInvalidCredentials
	}

	revoked, err := g.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		log.WithError(err).Error("Revocation lookup failed")
		return nil, OutcomeError, fmt.Errorf("revocation lookup: %w", err)
	}
	if revoked {
		log.Info("Rejected revoked token")
		return nil, OutcomeRevoked, ErrInvalidCredentials
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, OutcomeInvalidToken, ErrInvalidCredentials
	}

	user, err := g.users.GetByID(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		log.Debug("Token subject no longer exists")
		return nil, OutcomeUnknownUser, ErrInvalidCredentials
	}
	if err != nil {
		log.WithError(err).Error("User lookup failed")
		return nil, OutcomeError, fmt.Errorf("user lookup: %w", err)
	}

	// The cutoff has second precision like iat, so a token minted in the
	// same second as a credential change is still accepted.
	if user.TokensValidAfter != nil && claims.IssuedAt.Time.Before(*user.TokensValidAfter) {
		log.Info("Rejected token issued before credential change")
		return nil, OutcomeStaleToken, ErrInvalidCredentials
	}

	if !user.IsActive {
		log.Debug("Rejected token for inactive account")
		return nil, OutcomeInactive, ErrInactiveAccount
	}

	return &Identity{User: user, Claims: claims}, OutcomeSuccess, nil
}
