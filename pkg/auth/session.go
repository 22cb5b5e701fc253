package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/revocation"
	"github.com/platinummonkey/adlbuilder/pkg/users"
)

// Ledger is the part of the revocation ledger sessions write to
type Ledger interface {
	RevocationChecker
	Revoke(ctx context.Context, entry revocation.Entry) (bool, error)
}

// CredentialStore finds accounts by id and by login email
type CredentialStore interface {
	UserLookup
	GetByEmail(ctx context.Context, email string) (*users.User, error)
}

// Sessions implements login, logout and refresh on top of the gate
type Sessions struct {
	issuer  *Issuer
	gate    *Gate
	ledger  Ledger
	users   CredentialStore
	hasher  *PasswordHasher
	logger  *observability.Logger
	metrics *observability.Metrics
	otel    *observability.OTelMetrics

	dummyOnce sync.Once
	dummyHash string
}

// NewSessions wires the session operations. metrics may be nil.
func NewSessions(issuer *Issuer, gate *Gate, ledger Ledger, store CredentialStore, hasher *PasswordHasher, logger *observability.Logger, metrics *observability.Metrics) *Sessions {
	return &Sessions{
		issuer:  issuer,
		gate:    gate,
		ledger:  ledger,
		users:   store,
		hasher:  hasher,
		logger:  logger,
		metrics: metrics,
	}
}

// WithOTelMetrics additionally reports issued and revoked tokens over OTLP
func (s *Sessions) WithOTelMetrics(m *observability.OTelMetrics) *Sessions {
	s.otel = m
	return s
}

// Login verifies email and password and issues a new pair
func (s *Sessions) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, users.ErrNotFound) {
		// Spend the same bcrypt time as a real comparison.
		s.hasher.Verify(password, s.dummy())
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if !s.hasher.Verify(password, user.HashedPassword) {
		s.logger.WithField("user_id", user.ID).Debug("Password mismatch")
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}

	pair, err := s.issue(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")
	return pair, nil
}

// Logout revokes the access token that authenticated identity. Revoking an
// already revoked token is not an error.
func (s *Sessions) Logout(ctx context.Context, identity *Identity) error {
	if _, err := s.revoke(ctx, identity); err != nil {
		return err
	}
	s.logger.WithFields(map[string]interface{}{
		"user_id": identity.User.ID,
		"jti":     identity.Claims.ID,
	}).Info("User logged out")
	return nil
}

// Refresh consumes a refresh token and issues a new pair. The old refresh
// token is revoked before the new pair is minted, so of two concurrent calls
// with the same token only one succeeds. The access token issued alongside
// the old refresh token stays valid until it expires.
func (s *Sessions) Refresh(ctx context.Context, raw string) (*TokenPair, error) {
	identity, err := s.gate.Authenticate(ctx, raw, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	newly, err := s.revoke(ctx, identity)
	if err != nil {
		return nil, err
	}
	if !newly {
		s.logger.WithField("jti", identity.Claims.ID).Warn("Refresh token reused concurrently")
		return nil, ErrInvalidCredentials
	}

	return s.issue(ctx, identity.User.ID)
}

func (s *Sessions) revoke(ctx context.Context, identity *Identity) (bool, error) {
	claims := identity.Claims
	newly, err := s.ledger.Revoke(ctx, revocation.Entry{
		TokenID:   claims.ID,
		OwnerID:   identity.User.ID,
		Kind:      string(claims.Type),
		ExpiresAt: claims.ExpiresAt.Time,
		RevokedAt: s.issuer.codec.Now(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to revoke %s token: %w", claims.Type, err)
	}
	if newly {
		s.metrics.RecordTokenRevoked(string(claims.Type))
		s.otel.RecordTokenRevoked(ctx, string(claims.Type))
	}
	return newly, nil
}

func (s *Sessions) issue(ctx context.Context, userID int64) (*TokenPair, error) {
	pair, err := s.issuer.IssuePair(userID)
	if err != nil {
		return nil, err
	}
	for _, typ := range []TokenType{TokenTypeAccess, TokenTypeRefresh} {
		s.metrics.RecordTokenIssued(string(typ))
		s.otel.RecordTokenIssued(ctx, string(typ))
	}
	return pair, nil
}

// fallbackDummyHash is a bcrypt digest at the default cost, used when the
// configured hasher cannot produce one.
const fallbackDummyHash = "$2b$10$DHvVcobQ5pZJYAOZDv7EKOP3pyUwnIiyQ7AVfBa3vOxFl.sUilR12"

func (s *Sessions) dummy() string {
	s.dummyOnce.Do(func() {
		s.dummyHash = fallbackDummyHash
		id, err := NewTokenID()
		if err != nil {
			return
		}
		if hash, err := s.hasher.Hash(id); err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}

// RevokeBefore is the cutoff to store when credentials change. It is
// truncated to the second to match the precision of iat.
func RevokeBefore(now time.Time) time.Time {
	return now.UTC().Truncate(time.Second)
}
