package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/adlbuilder/pkg/assistants"
	"github.com/platinummonkey/adlbuilder/pkg/httputil"
	"github.com/platinummonkey/adlbuilder/pkg/middleware"
	"github.com/platinummonkey/adlbuilder/pkg/observability"
	"github.com/platinummonkey/adlbuilder/pkg/templates"
	"github.com/platinummonkey/adlbuilder/pkg/validation"
)

// templateTag marks assistants cloned from a template
const templateTag = "template"

// ContentHandlers serves YAML validation, the ADL schema and the template catalog
type ContentHandlers struct {
	validator  *validation.SchemaValidator
	catalog    *templates.Catalog
	assistants *assistants.Store
}

// NewContentHandlers creates content handlers
func NewContentHandlers(validator *validation.SchemaValidator, catalog *templates.Catalog, store *assistants.Store) *ContentHandlers {
	return &ContentHandlers{validator: validator, catalog: catalog, assistants: store}
}

// RegisterPublicRoutes registers the anonymous template browsing routes
func (h *ContentHandlers) RegisterPublicRoutes(router *mux.Router) {
	handleSlash(router, "/templates", h.listTemplates, http.MethodGet)
	router.HandleFunc("/templates/{id}", h.getTemplate).Methods(http.MethodGet)
}

// RegisterRoutes registers routes that require an active user
func (h *ContentHandlers) RegisterRoutes(router *mux.Router) {
	handleSlash(router, "/validate/yaml", h.validateYAML, http.MethodPost)
	handleSlash(router, "/schema", h.schema, http.MethodGet)
	router.HandleFunc("/templates/{id}/clone", h.cloneTemplate).Methods(http.MethodPost)
}

// validateYAML handles POST /validate/yaml
func (h *ContentHandlers) validateYAML(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	content := req.Content
	if content == nil {
		content = req.YAMLContent
	}
	if content == nil {
		httputil.WriteBadRequest(w, "content is required")
		return
	}

	_ = httputil.WriteSuccess(w, h.validator.Validate(*content))
}

// schema handles GET /schema/
func (h *ContentHandlers) schema(w http.ResponseWriter, r *http.Request) {
	_ = httputil.WriteSuccess(w, h.validator.Document())
}

// listTemplates handles GET /templates/
func (h *ContentHandlers) listTemplates(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List()
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}
	_ = httputil.WriteSuccess(w, list)
}

// getTemplate handles GET /templates/{id}
func (h *ContentHandlers) getTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.lookup(w, r)
	if !ok {
		return
	}
	_ = httputil.WriteSuccess(w, tmpl)
}

// cloneTemplate handles POST /templates/{id}/clone by creating a private
// assistant from the template content.
func (h *ContentHandlers) cloneTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := h.lookup(w, r)
	if !ok {
		return
	}

	a := &assistants.Assistant{
		UserID:      middleware.GetIdentity(r).User.ID,
		Title:       tmpl.Title + " (from template)",
		YAMLContent: tmpl.Content,
		IsPublic:    false,
		Tags:        []string{templateTag},
	}
	if err := h.assistants.Create(r.Context(), a); err != nil {
		httputil.WriteInternalError(w, r, err)
		return
	}

	observability.FromContext(r.Context()).WithFields(map[string]interface{}{
		"template_id":  tmpl.ID,
		"assistant_id": a.ID,
	}).Info("Template cloned")
	_ = httputil.WriteCreated(w, a)
}

func (h *ContentHandlers) lookup(w http.ResponseWriter, r *http.Request) (*templates.Template, bool) {
	tmpl, err := h.catalog.Get(mux.Vars(r)["id"])
	if errors.Is(err, templates.ErrNotFound) {
		httputil.WriteNotFoundError(w, "Template not found")
		return nil, false
	}
	if err != nil {
		httputil.WriteInternalError(w, r, err)
		return nil, false
	}
	return tmpl, true
}
