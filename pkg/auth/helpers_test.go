package auth

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/revocation"
	"github.com/platinummonkey/adlbuilder/pkg/users"
)

var testEpoch = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

// testClock is a settable clock shared by codec and tests
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: testEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *testClock) *Codec {
	t.Helper()
	codec, err := NewCodec(CodecConfig{
		Secret: "secret-for-" + t.Name(),
		Issuer: "adlbuilder-test",
		Now:    clock.Now,
	})
	require.NoError(t, err)
	return codec
}

func newTestIssuer(t *testing.T, codec *Codec, accessTTL, refreshTTL time.Duration) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(codec, accessTTL, refreshTTL)
	require.NoError(t, err)
	return issuer
}

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func testHasher() *PasswordHasher {
	return NewPasswordHasher(bcrypt.MinCost)
}

// memLedger is an in-memory Ledger with error injection
type memLedger struct {
	mu      sync.Mutex
	entries map[string]revocation.Entry
	err     error
}

func newMemLedger() *memLedger {
	return &memLedger{entries: make(map[string]revocation.Entry)}
}

func (l *memLedger) Revoke(ctx context.Context, entry revocation.Entry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if _, ok := l.entries[entry.TokenID]; ok {
		return false, nil
	}
	l.entries[entry.TokenID] = entry
	return true, nil
}

func (l *memLedger) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	_, ok := l.entries[tokenID]
	return ok, nil
}

// memUsers is an in-memory CredentialStore with error injection
type memUsers struct {
	byID map[int64]*users.User
	err  error
}

func newMemUsers(list ...*users.User) *memUsers {
	m := &memUsers{byID: make(map[int64]*users.User)}
	for _, u := range list {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*users.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memUsers) GetByEmail(ctx context.Context, email string) (*users.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.byID {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, users.ErrNotFound
}
