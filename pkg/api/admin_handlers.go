package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adlbuilder/pkg/httputil"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/users"
)

const (
	adminDefaultLimit = 100
	adminMaxLimit     = 100
)

// AdminHandlers serves user administration. Mount behind RequireAdmin.
type AdminHandlers struct {
	users  *users.Store
	ledger OwnerPurger
	purges purgeCounters
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(store *users.Store, ledger OwnerPurger) *AdminHandlers {
	return &AdminHandlers{users: store, ledger: ledger}
}

// RegisterRoutes registers admin routes on a router already scoped to /admin
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	router.HandleFunc("/users/count", h.countUsers).Methods(http.MethodGet)
	router.HandleFunc("/users/{id:[0-9]+}", h.deleteUser).Methods(http.MethodDelete)
	router.HandleFunc("/users/{id:[0-9]+}/promote", h.promote).Methods(http.MethodPatch)
	router.HandleFunc("/users/{id:[0-9]+}/demote", h.demote).Methods(http.MethodPatch)
}

// listUsers handles GET /admin/users
func (h *AdminHandlers) listUsers(w http.ResponseWriter, r *http.Request) {
	page, ok := httputil.ParsePaginationOrError(w, r, adminDefaultLimit, adminMaxLimit)
	if !ok {
		return
	}

	list, err := h.users.List(r.Context(), users.ListOptions{
		Search: r.URL.Query().Get("search"),
		Skip:   page.Skip,
		Limit:  page.Limit,
	})
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	if list == nil {
		list = []*users.User{}
	}

	_ = httputil.WriteSuccess(w, list)
}

// countUsers handles GET /admin/users/count
func (h *AdminHandlers) countUsers(w http.ResponseWriter, r *http.Request) {
	total, err := h.users.Count(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, CountResponse{Total: total})
}

// deleteUser handles DELETE /admin/users/{id}
func (h *AdminHandlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	target, ok := h.target(w, r, "You cannot delete your own account")
	if !ok {
		return
	}

	logger := observability.FromContext(r.Context()).WithField("target_user_id", target.ID)
	purged, err := h.ledger.PurgeByOwner(r.Context(), target.ID)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	h.purges.record(r.Context(), purged)

	if err := h.users.Delete(r.Context(), target.ID); err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteNotFoundError(w, "User not found")
			return
		}
		httputil.WriteInternalError(w, r, err)
		return
	}

	logger.Info("User deleted by admin")
	httputil.WriteNoContent(w)
}

// promote handles PATCH /admin/users/{id}/promote
func (h *AdminHandlers) promote(w http.ResponseWriter, r *http.Request) {
	h.setAdmin(w, r, true)
}

// demote handles PATCH /admin/users/{id}/demote
func (h *AdminHandlers) demote(w http.ResponseWriter, r *http.Request) {
	h.setAdmin(w, r, false)
}

func (h *AdminHandlers) setAdmin(w http.ResponseWriter, r *http.Request, admin bool) {
	selfMessage := "You cannot demote yourself"
	if admin {
		selfMessage = "You cannot promote yourself"
	}

	target, ok := h.target(w, r, selfMessage)
	if !ok {
		return
	}

	if target.IsAdmin == admin {
		if admin {
			httputil.WriteBadRequest(w, "User is already an admin")
		} else {
			httputil.WriteBadRequest(w, "User is not an admin")
		}
		return
	}

	updated, err := h.users.SetAdmin(r.Context(), target.ID, admin)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			httputil.WriteNotFoundError(w, "User not found")
			return
		}
		httputil.WriteInternalError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"target_user_id": updated.ID,
		"is_admin":       updated.IsAdmin,
	}).Info("Admin flag changed")
	_ = httputil.WriteSuccess(w, updated)
}

// target resolves the {id} path user, rejecting the caller itself and
// missing users.
func (h *AdminHandlers) target(w http.ResponseWriter, r *http.Request, selfMessage string) (*users.User, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return nil, false
	}

	if id == middleware.GetIdentity(r).User.ID {
		httputil.WriteBadRequest(w, selfMessage)
		return nil, false
	}

	user, err := h.users.GetByID(r.Context(), id)
	if errors.Is(err, users.ErrNotFound) {
		httputil.WriteNotFoundError(w, "User not found")
		return nil, false
	}
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return nil, false
	}
	return user, true
}
