package api

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adlbuilder/pkg/auth"
	"github.com/platinummonkey/adlbuilder/pkg/httputil"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/users"
)

// UserHandlers serves registration and the current user's profile
type UserHandlers struct {
	users  *users.Store
	hasher *auth.PasswordHasher
	ledger OwnerPurger
	purges purgeCounters
	now    func() time.Time
}

// NewUserHandlers creates user handlers. now is the clock used for the
// credential cutoff and must match the token codec's clock; nil uses time.Now.
func NewUserHandlers(store *users.Store, hasher *auth.PasswordHasher, ledger OwnerPurger, now func() time.Time) *UserHandlers {
	if now == nil {
		now = time.Now
	}
	return &UserHandlers{users: store, hasher: hasher, ledger: ledger, now: now}
}

// RegisterPublicRoutes registers account creation
func (h *UserHandlers) RegisterPublicRoutes(router *mux.Router) {
	handleSlash(router, "/users", h.register, http.MethodPost)
}

// RegisterRoutes registers the authenticated profile routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users/me", h.me).Methods(http.MethodGet)
	router.HandleFunc("/users/me", h.updateMe).Methods(http.MethodPut)
	router.HandleFunc("/users/me/password", h.changePassword).Methods(http.MethodPost)
}

// register handles POST /users/
func (h *UserHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)

	if !httputil.ValidateAll(w,
		func() (bool, string) { return validEmail(req.Email), "a valid email is required" },
		func() (bool, string) { return strings.TrimSpace(req.Name) != "", "name is required" },
		func() (bool, string) { return req.Password != "", "password is required" },
		func() (bool, string) {
			return len(req.Password) <= auth.MaxPasswordBytes, auth.ErrPasswordTooLong.Error()
		},
	) {
		return
	}

	hash, err := h.hasher.Hash(req.Password)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	user := &users.User{
		Email:          req.Email,
		HashedPassword: hash,
		Name:           req.Name,
		Role:           req.Role,
		Organization:   req.Organization,
		Contact:        req.Contact,
		IsActive:       true,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			httputil.WriteBadRequest(w, "Email already registered")
			return
		}
		httputil.WriteInternalError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"is_admin": user.IsAdmin,
	}).Info("User registered")
	_ = httputil.WriteCreated(w, user)
}

// me handles GET /users/me
func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, middleware.GetIdentity(r).User)
}

// updateMe handles PUT /users/me
func (h *UserHandlers) updateMe(w http.ResponseWriter, r *http.Request) {
	var up users.Update
	if !httputil.ParseJSONOrError(w, r, &up) {
		return
	}
	if up.Email != nil {
		email := strings.TrimSpace(*up.Email)
		if !validEmail(email) {
			httputil.WriteBadRequest(w, "a valid email is required")
			return
		}
		up.Email = &email
	}
	if up.Name != nil && strings.TrimSpace(*up.Name) == "" {
		httputil.WriteBadRequest(w, "name must not be empty")
		return
	}

	// Work on a copy so the identity in context stays as authenticated.
	user := *middleware.GetIdentity(r).User
	up.Apply(&user)

	if err := h.users.Update(r.Context(), &user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			httputil.WriteBadRequest(w, "Email already registered")
			return
		}
		httputil.WriteInternalError(w, r, err)
		return
	}

	_ = httputil.WriteSuccess(w, &user)
}

// changePassword handles POST /users/me/password. Every token issued before
// the change stops working.
func (h *UserHandlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req PasswordChangeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.ValidateAll(w,
		func() (bool, string) { return req.NewPassword != "", "new_password is required" },
		func() (bool, string) {
			return len(req.NewPassword) <= auth.MaxPasswordBytes, auth.ErrPasswordTooLong.Error()
		},
	) {
		return
	}

	user := middleware.GetIdentity(r).User
	if !h.hasher.Verify(req.CurrentPassword, user.HashedPassword) {
		httputil.WriteBadRequest(w, "Incorrect password")
		return
	}

	hash, err := h.hasher.Hash(req.NewPassword)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	cutoff := auth.RevokeBefore(h.now())
	if err := h.users.SetPassword(r.Context(), user.ID, hash, cutoff); err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	// Rows revoked within the cutoff second may belong to tokens the cutoff
	// still accepts, so only older rows go.
	logger := observability.FromContext(r.Context())
	if purged, err := h.ledger.PurgeRevokedBefore(r.Context(), user.ID, cutoff); err != nil {
		logger.WithError(err).Warn("Failed to purge revocations after password change")
	} else {
		h.purges.record(r.Context(), purged)
		logger.WithField("purged", purged).Info("Password changed")
	}

	updated, err := h.users.GetByID(r.Context(), user.ID)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, updated)
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
