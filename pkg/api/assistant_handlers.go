package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adlbuilder/pkg/assistants"
	"github.com/platinummonkey/adlbuilder/pkg/httputil"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
	"github.com/platinummonkey/adlbuilder/pkg/validation"
)

const (
	listDefaultLimit = 100
	listMaxLimit     = 1000
)

// AssistantHandlers serves assistant CRUD
type AssistantHandlers struct {
	store     *assistants.Store
	validator *validation.SchemaValidator
}

// NewAssistantHandlers creates assistant handlers
func NewAssistantHandlers(store *assistants.Store, validator *validation.SchemaValidator) *AssistantHandlers {
	return &AssistantHandlers{store: store, validator: validator}
}

// RegisterPublicRoutes registers the anonymous public listing
func (h *AssistantHandlers) RegisterPublicRoutes(router *mux.Router) {
	handleSlash(router, "/assistants/public", h.listPublic, http.MethodGet)
}

// RegisterRoutes registers the owner routes
func (h *AssistantHandlers) RegisterRoutes(router *mux.Router) {
	handleSlash(router, "/assistants", h.create, http.MethodPost)
	handleSlash(router, "/assistants", h.listMine, http.MethodGet)
	router.HandleFunc("/assistants/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	router.HandleFunc("/assistants/{id:[0-9]+}", h.update).Methods(http.MethodPut)
	router.HandleFunc("/assistants/{id:[0-9]+}", h.delete).Methods(http.MethodDelete)
}

// create handles POST /assistants/
func (h *AssistantHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req AssistantCreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Title, "title") || !h.validYAML(w, req.YAMLContent) {
		return
	}

	a := &assistants.Assistant{
		UserID:      middleware.GetIdentity(r).User.ID,
		Title:       strings.TrimSpace(req.Title),
		YAMLContent: req.YAMLContent,
		IsPublic:    true,
		Tags:        req.Tags,
	}
	if req.IsPublic != nil {
		a.IsPublic = *req.IsPublic
	}

	if err := h.store.Create(r.Context(), a); err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	_ = httputil.WriteCreated(w, a)
}

// listMine handles GET /assistants/
func (h *AssistantHandlers) listMine(w http.ResponseWriter, r *http.Request) {
	page, ok := httputil.ParsePaginationOrError(w, r, listDefaultLimit, listMaxLimit)
	if !ok {
		return
	}

	list, err := h.store.ListByOwner(r.Context(), middleware.GetIdentity(r).User.ID, page.Skip, page.Limit)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// listPublic handles GET /assistants/public
func (h *AssistantHandlers) listPublic(w http.ResponseWriter, r *http.Request) {
	page, ok := httputil.ParsePaginationOrError(w, r, listDefaultLimit, listMaxLimit)
	if !ok {
		return
	}

	list, err := h.store.ListPublic(r.Context(), page.Skip, page.Limit)
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// get handles GET /assistants/{id}
func (h *AssistantHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	a, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, assistants.ErrNotFound) {
		httputil.WriteNotFoundError(w, "Assistant not found")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	if !a.CanView(middleware.GetIdentity(r).User.ID) {
		httputil.WriteForbidden(w, "Not enough permissions")
		return
	}
	_ = httputil.WriteSuccess(w, a)
}

// update handles PUT /assistants/{id}
func (h *AssistantHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var up assistants.Update
	if !httputil.ParseJSONOrError(w, r, &up) {
		return
	}
	if up.Title != nil {
		title := strings.TrimSpace(*up.Title)
		if !httputil.RequireNonEmpty(w, title, "title") {
			return
		}
		up.Title = &title
	}
	if up.YAMLContent != nil && !h.validYAML(w, *up.YAMLContent) {
		return
	}

	a, err := h.store.Update(r.Context(), id, middleware.GetIdentity(r).User.ID, up)
	if errors.Is(err, assistants.ErrNotFound) {
		httputil.WriteNotFoundError(w, "Assistant not found or not enough permissions")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, a)
}

// delete handles DELETE /assistants/{id}
func (h *AssistantHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	err := h.store.Delete(r.Context(), id, middleware.GetIdentity(r).User.ID)
	if errors.Is(err, assistants.ErrNotFound) {
		httputil.WriteNotFoundError(w, "Assistant not found or not enough permissions")
		return
	}
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	httputil.WriteNoContent(w)
}

// validYAML writes the structured 400 for content that fails the schema
func (h *AssistantHandlers) validYAML(w http.ResponseWriter, content string) bool {
	return writeInvalidYAML(w, h.validator.Validate(content))
}

// writeInvalidYAML writes the structured 400 when result is invalid and
// reports whether the content was valid.
func writeInvalidYAML(w http.ResponseWriter, result validation.Result) bool {
	if result.Valid {
		return true
	}
	httputil.WriteDetail(w, http.StatusBadRequest, map[string]interface{}{
		"message": "Invalid YAML content",
		"errors":  result.Errors,
	})
	return false
}
