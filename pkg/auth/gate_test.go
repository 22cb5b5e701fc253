package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/revocation"
	"github.com/platinummonkey/adlbuilder/pkg/users"
)

type gateFixture struct {
	clock   *testClock
	codec   *Codec
	issuer  *Issuer
	ledger  *memLedger
	users   *memUsers
	metrics *observability.Metrics
	gate    *Gate
	alice   *users.User
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	f := &gateFixture{clock: newTestClock()}
	f.codec = newTestCodec(t, f.clock)
	f.issuer = newTestIssuer(t, f.codec, 15*time.Minute, time.Hour)
	f.ledger = newMemLedger()
	f.alice = &users.User{ID: 1, Email: "alice@example.com", IsActive: true}
	f.users = newMemUsers(f.alice)
	f.metrics = observability.NewMetrics(prometheus.NewRegistry())
	f.gate = NewGate(f.codec, f.ledger, f.users, testLogger(), f.metrics)
	return f
}

func (f *gateFixture) attempts(typ TokenType, outcome string) float64 {
	return testutil.ToFloat64(f.metrics.AuthAttemptsTotal.WithLabelValues(string(typ), outcome))
}

func TestGate_AuthenticatesAccessToken(t *testing.T) {
	f := newGateFixture(t)
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	identity, err := f.gate.Authenticate(context.Background(), pair.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, f.alice.ID, identity.User.ID)
	assert.Equal(t, TokenTypeAccess, identity.Claims.Type)
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeSuccess))
}

func TestGate_TypeConfusion(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	_, garbageErr := f.gate.Authenticate(ctx, "garbage", TokenTypeAccess)
	_, refreshErr := f.gate.Authenticate(ctx, pair.RefreshToken, TokenTypeAccess)
	_, accessErr := f.gate.Authenticate(ctx, pair.AccessToken, TokenTypeRefresh)

	assert.ErrorIs(t, refreshErr, ErrInvalidCredentials)
	assert.Equal(t, garbageErr, refreshErr, "a refresh token fails exactly like a malformed token")
	assert.Equal(t, garbageErr, accessErr)
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeWrongType))
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeInvalidToken))
}

func TestGate_RevokedToken(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	claims, err := f.codec.Decode(pair.AccessToken)
	require.NoError(t, err)
	_, err = f.ledger.Revoke(ctx, revocation.Entry{TokenID: claims.ID, OwnerID: 1, Kind: "access", ExpiresAt: claims.ExpiresAt.Time})
	require.NoError(t, err)

	_, err = f.gate.Authenticate(ctx, pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeRevoked))

	_, err = f.gate.Authenticate(ctx, pair.RefreshToken, TokenTypeRefresh)
	assert.NoError(t, err, "revoking the access token leaves its refresh token alone")
}

func TestGate_LedgerFailureIsInternal(t *testing.T) {
	f := newGateFixture(t)
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	f.ledger.err = errors.New("database is locked")

	_, err = f.gate.Authenticate(context.Background(), pair.AccessToken, TokenTypeAccess)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.ErrorIs(t, err, f.ledger.err)
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeError))
}

func TestGate_UnknownUser(t *testing.T) {
	f := newGateFixture(t)
	pair, err := f.issuer.IssuePair(404)
	require.NoError(t, err)

	_, err = f.gate.Authenticate(context.Background(), pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeUnknownUser))
}

func TestGate_UserStoreFailureIsInternal(t *testing.T) {
	f := newGateFixture(t)
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	f.users.err = errors.New("connection reset")

	_, err = f.gate.Authenticate(context.Background(), pair.AccessToken, TokenTypeAccess)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestGate_CredentialChangeCutoff(t *testing.T) {
	f := newGateFixture(t)
	ctx := context.Background()

	old, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Second)
	cutoff := RevokeBefore(f.clock.Now())
	f.users.byID[f.alice.ID].TokensValidAfter = &cutoff

	_, err = f.gate.Authenticate(ctx, old.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = f.gate.Authenticate(ctx, old.RefreshToken, TokenTypeRefresh)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeStaleToken))

	fresh, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)
	_, err = f.gate.Authenticate(ctx, fresh.AccessToken, TokenTypeAccess)
	assert.NoError(t, err, "tokens minted in the cutoff second are accepted")
}

func TestGate_InactiveAccount(t *testing.T) {
	f := newGateFixture(t)
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	f.users.byID[f.alice.ID].IsActive = false

	_, err = f.gate.Authenticate(context.Background(), pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInactiveAccount)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, float64(1), f.attempts(TokenTypeAccess, OutcomeInactive))
}

func TestGate_ExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	f.clock.Advance(15 * time.Minute)

	_, err = f.gate.Authenticate(context.Background(), pair.AccessToken, TokenTypeAccess)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestGate_WithoutMetrics(t *testing.T) {
	f := newGateFixture(t)
	gate := NewGate(f.codec, f.ledger, f.users, testLogger(), nil)
	pair, err := f.issuer.IssuePair(f.alice.ID)
	require.NoError(t, err)

	_, err = gate.Authenticate(context.Background(), pair.AccessToken, TokenTypeAccess)
	assert.NoError(t, err)
}
