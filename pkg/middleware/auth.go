package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/contextkeys"
	"github.com/platinummonkey/adlbuilder/pkg/httputil"
)

const (
	msgNotAuthenticated   = "Not authenticated"
	msgInvalidCredentials = "Could not validate credentials"
	msgInactiveUser       = "Inactive user"
	msgNotEnoughPerms     = "Not enough permissions"
)

// Authenticator resolves a raw bearer token of the expected type to an identity.
// *auth.Gate satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, raw string, expected auth.TokenType) (*auth.Identity, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	gate Authenticator
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(gate Authenticator) *AuthMiddleware {
	return &AuthMiddleware{gate: gate}
}

// Handler requires a valid access token belonging to an active user and
// stores the resulting identity in the request context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := httputil.BearerToken(r)
		if !ok {
			httputil.WriteUnauthorized(w, msgNotAuthenticated)
			return
		}

		identity, err := m.gate.Authenticate(r.Context(), token, auth.TokenTypeAccess)
		if err != nil {
			WriteAuthError(w, r, err)
			return
		}

		ctx := WithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WriteAuthError maps a gate or session error to its HTTP response
func WriteAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, msgInvalidCredentials)
	case errors.Is(err, auth.ErrInactiveAccount):
		httputil.WriteBadRequest(w, msgInactiveUser)
	default:
		httputil.WriteInternalError(w, r, err)
	}
}

// WithIdentity stores identity and its user id in ctx
func WithIdentity(ctx context.Context, identity *auth.Identity) context.Context {
	ctx = contextkeys.WithIdentity(ctx, identity)
	if identity != nil && identity.User != nil {
		ctx = contextkeys.WithUserID(ctx, identity.User.ID)
	}
	return ctx
}

// GetIdentity extracts the authenticated identity from the request
func GetIdentity(r *http.Request) *auth.Identity {
	identity, ok := contextkeys.Identity(r.Context()).(*auth.Identity)
	if !ok {
		return nil
	}
	return identity
}

// RequireAdmin rejects identities without the admin flag. Mount it after
// AuthMiddleware.Handler.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := GetIdentity(r)
		if identity == nil || identity.User == nil {
			httputil.WriteUnauthorized(w, msgNotAuthenticated)
			return
		}

		if !identity.User.IsAdmin {
			httputil.WriteForbidden(w, msgNotEnoughPerms)
			return
		}

		next.ServeHTTP(w, r)
	})
}
