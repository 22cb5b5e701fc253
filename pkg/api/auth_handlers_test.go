package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
)

func TestLogin_Success(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")

	pair := env.login("alice@example.com")

	assert.Equal(t, auth.BearerTokenType, pair.TokenType)
	assert.Equal(t, int64(15*60), pair.ExpiresIn)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)
}

func TestLogin_Failures(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")

	tests := []struct {
		name     string
		form     url.Values
		status   int
		detail   string
		bearerHd bool
	}{
		{"wrong password", url.Values{"username": {"alice@example.com"}, "password": {"nope"}}, http.StatusUnauthorized, "Incorrect email or password", true},
		{"unknown email", url.Values{"username": {"bob@example.com"}, "password": {defaultPassword}}, http.StatusUnauthorized, "Incorrect email or password", true},
		{"missing password", url.Values{"username": {"alice@example.com"}}, http.StatusBadRequest, "password is required", false},
		{"missing username", url.Values{"password": {defaultPassword}}, http.StatusBadRequest, "username is required", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.postForm("/auth/token", tt.form)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.detail, detailOf(t, w))
			if tt.bearerHd {
				assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestLogin_InactiveUser(t *testing.T) {
	env := newTestEnv(t)
	u := env.register("alice@example.com", "Alice")

	stored, err := env.users.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	stored.IsActive = false
	require.NoError(t, env.users.Update(context.Background(), stored))

	w := env.loginResponse("alice@example.com", defaultPassword)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Inactive user", detailOf(t, w))
}

func TestLogin_RateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Hour,
	})
	env := newTestEnvWith(t, envConfig{limiter: limiter})
	env.register("alice@example.com", "Alice")

	for i := 0; i < 2; i++ {
		w := env.loginResponse("alice@example.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := env.loginResponse("alice@example.com", defaultPassword)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.LoginRateLimitedTotal.WithLabelValues("memory")))

	// Other endpoints are not limited.
	w = env.request(http.MethodGet, "/assistants/public", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogout_RevokesAccessToken(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")
	pair := env.login("alice@example.com")

	w := env.request(http.MethodPost, "/auth/logout", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Successfully logged out", detailOf(t, w))

	w = env.request(http.MethodGet, "/users/me", nil, pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Could not validate credentials", detailOf(t, w))

	// The refresh token is independent of the access token.
	w = env.request(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLogout_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	w := env.request(http.MethodPost, "/auth/logout", nil, "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Not authenticated", detailOf(t, w))
}

func TestRefresh_RequestShapes(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")

	tests := []struct {
		name  string
		build func(token string) *http.Request
	}{
		{"json object", func(token string) *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`{"refresh_token":"`+token+`"}`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}},
		{"bare json string", func(token string) *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(`"`+token+`"`))
			r.Header.Set("Content-Type", "application/json")
			return r
		}},
		{"form field", func(token string) *http.Request {
			form := url.Values{"refresh_token": {token}}
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(form.Encode()))
			r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			return r
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair := env.login("alice@example.com")

			w := env.do(tt.build(pair.RefreshToken))

			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var next auth.TokenPair
			decodeJSON(t, w, &next)
			assert.NotEqual(t, pair.RefreshToken, next.RefreshToken)
			assert.Equal(t, auth.BearerTokenType, next.TokenType)
		})
	}
}

func TestRefresh_BadRequests(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		body   string
		detail string
	}{
		{"empty body", "", "refresh_token is required"},
		{"empty field", `{"refresh_token":""}`, "refresh_token is required"},
		{"malformed", `{"refresh_token":`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", "application/json")

			w := env.do(r)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, detailOf(t, w))
			}
		})
	}
}

func TestRefresh_IsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")
	pair := env.login("alice@example.com")

	w := env.request(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Could not validate credentials", detailOf(t, w))
}

func TestRefresh_KeepsPairedAccessToken(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")
	pair := env.login("alice@example.com")

	w := env.request(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodGet, "/users/me", nil, pair.AccessToken)
	assert.Equal(t, http.StatusOK, w.Code, "the old access token lives until its own expiry")

	env.clock.Advance(15*time.Minute + time.Second)
	w = env.request(http.MethodGet, "/users/me", nil, pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTokenTypeConfusion(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")
	pair := env.login("alice@example.com")

	w := env.request(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: pair.AccessToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "access token cannot refresh")

	w = env.request(http.MethodGet, "/users/me", nil, pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "refresh token cannot authenticate requests")
}

func TestEndToEnd_LoginUseLogout(t *testing.T) {
	env := newTestEnv(t)
	env.register("alice@example.com", "Alice")

	pair := env.login("alice@example.com")
	require.Equal(t, "bearer", pair.TokenType)
	require.Positive(t, pair.ExpiresIn)

	w := env.request(http.MethodGet, "/users/me", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodPost, "/auth/logout", nil, pair.AccessToken)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.request(http.MethodGet, "/users/me", nil, pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestEndToEnd_RefreshLifetimeBoundary(t *testing.T) {
	refreshTTL := time.Hour
	env := newTestEnvWith(t, envConfig{refreshTTL: refreshTTL})
	env.register("alice@example.com", "Alice")

	first := env.login("alice@example.com")
	second := env.login("alice@example.com")

	env.clock.Advance(refreshTTL - time.Second)
	w := env.request(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: first.RefreshToken}, "")
	require.Equal(t, http.StatusOK, w.Code, "one second before expiry")

	env.clock.Advance(2 * time.Second)
	w = env.request(http.MethodPost, "/auth/refresh", RefreshRequest{RefreshToken: second.RefreshToken}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "after expiry")
}
