package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/platform/httpx"
	"github.com/meridian-data/meridian/internal/shared"
)

// Handler exposes the catalog endpoints. Resource-level mutations are
// guarded by the enforcer middleware; creation falls under the global
// creation permissions every user holds through the everyone role.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	enforcer *authz.Enforcer
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, enforcer *authz.Enforcer) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		enforcer: enforcer,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountDomainRoutes registers /domains.
func (h *Handler) MountDomainRoutes(r chi.Router) {
	r.Get("/", h.listDomains)
	r.Get("/{id}", h.getDomain)
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.RequireGlobal(authz.ActionGlobalUpdateConfiguration))
		r.Post("/", h.createDomain)
		r.Put("/{id}", h.updateDomain)
		r.Delete("/{id}", h.deleteDomain)
	})
}

// MountDataProductRoutes registers /data_products.
func (h *Handler) MountDataProductRoutes(r chi.Router) {
	r.Get("/", h.listDataProducts)
	r.Get("/{id}", h.getDataProduct)
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.RequireGlobal(authz.ActionGlobalCreateDataProduct))
		r.Post("/", h.createDataProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.Require(authz.ActionDataProductUpdateProperties, authz.KindDataProduct))
		r.Patch("/{id}", h.updateDataProduct)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.Require(authz.ActionDataProductUpdateStatus, authz.KindDataProduct))
		r.Patch("/{id}/status", h.updateDataProductStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.Require(authz.ActionDataProductDelete, authz.KindDataProduct))
		r.Delete("/{id}", h.deleteDataProduct)
	})
}

// MountDatasetRoutes registers /datasets.
func (h *Handler) MountDatasetRoutes(r chi.Router) {
	r.Get("/", h.listDatasets)
	r.Get("/{id}", h.getDataset)
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.RequireGlobal(authz.ActionGlobalCreateDataset))
		r.Post("/", h.createDataset)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.Require(authz.ActionDatasetUpdateProperties, authz.KindDataset))
		r.Patch("/{id}", h.updateDataset)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.Require(authz.ActionDatasetUpdateStatus, authz.KindDataset))
		r.Patch("/{id}/status", h.updateDatasetStatus)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.Require(authz.ActionDatasetDelete, authz.KindDataset))
		r.Delete("/{id}", h.deleteDataset)
	})
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid id", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) domainFilter(w http.ResponseWriter, r *http.Request) (*uuid.UUID, bool) {
	v := r.URL.Query().Get("domain_id")
	if v == "" {
		return nil, true
	}
	id, err := uuid.Parse(v)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid domain id", err.Error())
		return nil, false
	}
	return &id, true
}

// --- domains ---

func (h *Handler) listDomains(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.ListDomains(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Domain{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDomain(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) createDomain(w http.ResponseWriter, r *http.Request) {
	var in CreateDomainInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid domain", err.Error())
		return
	}
	d, err := h.service.CreateDomain(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) updateDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var in CreateDomainInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid domain", err.Error())
		return
	}
	d, err := h.service.UpdateDomain(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) deleteDomain(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDomain(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- data products ---

func (h *Handler) listDataProducts(w http.ResponseWriter, r *http.Request) {
	domainID, ok := h.domainFilter(w, r)
	if !ok {
		return
	}
	out, err := h.service.ListDataProducts(r.Context(), domainID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []DataProduct{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getDataProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	p, err := h.service.GetDataProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) createDataProduct(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var in CreateDataProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid data product", err.Error())
		return
	}
	p, err := h.service.CreateDataProduct(r.Context(), in, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) updateDataProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var in UpdateDataProductInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid data product", err.Error())
		return
	}
	p, err := h.service.UpdateDataProduct(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateDataProductStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var in struct {
		Status Status `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	p, err := h.service.UpdateDataProductStatus(r.Context(), id, in.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) deleteDataProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDataProduct(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- datasets ---

func (h *Handler) listDatasets(w http.ResponseWriter, r *http.Request) {
	domainID, ok := h.domainFilter(w, r)
	if !ok {
		return
	}
	out, err := h.service.ListDatasets(r.Context(), domainID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Dataset{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	d, err := h.service.GetDataset(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) createDataset(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var in CreateDatasetInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid dataset", err.Error())
		return
	}
	d, err := h.service.CreateDataset(r.Context(), in, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) updateDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var in UpdateDatasetInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid dataset", err.Error())
		return
	}
	d, err := h.service.UpdateDataset(r.Context(), id, in)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) updateDatasetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var in struct {
		Status Status `json:"status"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	d, err := h.service.UpdateDatasetStatus(r.Context(), id, in.Status)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) deleteDataset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteDataset(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
