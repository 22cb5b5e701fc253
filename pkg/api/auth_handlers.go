package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/httputil"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
)

// AuthHandlers serves login, logout and refresh
type AuthHandlers struct {
	sessions   *auth.Sessions
	loginLimit *middleware.RateLimitMiddleware
}

// NewAuthHandlers creates auth handlers. loginLimit may be nil to disable
// login rate limiting.
func NewAuthHandlers(sessions *auth.Sessions, loginLimit *middleware.RateLimitMiddleware) *AuthHandlers {
	return &AuthHandlers{sessions: sessions, loginLimit: loginLimit}
}

// RegisterPublicRoutes registers the routes that take credentials in the body
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router) {
	var login http.Handler = http.HandlerFunc(h.login)
	if h.loginLimit != nil {
		login = h.loginLimit.Handler(login)
	}
	router.Handle("/auth/token", login).Methods(http.MethodPost)
	router.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
}

// RegisterRoutes registers routes that require an access token
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)
}

// login handles POST /auth/token with form fields username and password
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteBadRequest(w, "invalid form body")
		return
	}
	email := strings.TrimSpace(r.PostForm.Get("username"))
	password := r.PostForm.Get("password")
	if !httputil.RequireNonEmpty(w, email, "username") || !httputil.RequireNonEmpty(w, password, "password") {
		return
	}

	pair, err := h.sessions.Login(r.Context(), email, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		httputil.WriteUnauthorized(w, "Incorrect email or password")
		return
	case errors.Is(err, auth.ErrInactiveAccount):
		httputil.WriteBadRequest(w, "Inactive user")
		return
	case err != nil:
		httputil.WriteInternalError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, pair)
}

// logout handles POST /auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	if err := h.sessions.Logout(r.Context(), identity); err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteMessage(w, "Successfully logged out")
}

// refresh handles POST /auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	raw, err := refreshTokenFromRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), raw)
	if err != nil {
		middleware.WriteAuthError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, pair)
}

// refreshTokenFromRequest accepts {"refresh_token": "..."}, a bare JSON
// string, or a refresh_token form field.
func refreshTokenFromRequest(r *http.Request) (string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data" {
		token := strings.TrimSpace(r.FormValue("refresh_token"))
		if token == "" {
			return "", errors.New("refresh_token is required")
		}
		return token, nil
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("invalid JSON: %w", err)
	}

	var token string
	trimmed := strings.TrimSpace(string(body))
	switch {
	case trimmed == "":
	case strings.HasPrefix(trimmed, `"`):
		if err := json.Unmarshal(body, &token); err != nil {
			return "", fmt.Errorf("invalid JSON: %w", err)
		}
	default:
		var req RefreshRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", fmt.Errorf("invalid JSON: %w", err)
		}
		token = req.RefreshToken
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("refresh_token is required")
	}
	return token, nil
}
