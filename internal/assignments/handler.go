package assignments

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/platform/httpx"
	"github.com/meridian-data/meridian/internal/shared"
)

// Handler exposes role-assignment endpoints. Authorization is per record:
// the action and the object it is checked against depend on the
// assignment's kind, so checks run in the handler rather than as route
// middleware.
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

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/", h.request)
	r.Patch("/{id}/decision", h.decide)
	r.Patch("/{id}/role", h.modifyRole)
	r.Delete("/{id}", h.remove)
}

// kindActions groups the per-kind actions a lifecycle step maps to.
// Global assignments fall through to the configuration permission.
type kindActions struct {
	dataProduct authz.Action
	dataset     authz.Action
}

var (
	createActions  = kindActions{authz.ActionDataProductCreateUser, authz.ActionDatasetCreateUser}
	approveActions = kindActions{authz.ActionDataProductApproveUserRequest, authz.ActionDatasetApproveUserRequest}
	updateActions  = kindActions{authz.ActionDataProductUpdateUser, authz.ActionDatasetUpdateUser}
	deleteActions  = kindActions{authz.ActionDataProductDeleteUser, authz.ActionDatasetDeleteUser}
)

// authorize runs the enforcement check for a lifecycle step on one
// assignment. Resource-kinded assignments check the mapped action against
// the resource; global ones require the global configuration permission.
// A resource-kinded assignment without a resource id is malformed, not
// forbidden: reject it here, because the check needs an object to run
// against.
func (h *Handler) authorize(r *http.Request, kind Kind, resourceID *uuid.UUID, acts kindActions) error {
	ctx := r.Context()
	switch kind {
	case KindDataProduct:
		if resourceID == nil {
			return fmt.Errorf("%w: %s assignment requires a resource id", shared.ErrValidation, kind)
		}
		return h.enforcer.Authorize(ctx, acts.dataProduct, authz.KindDataProduct, resourceID.String())
	case KindDataset:
		if resourceID == nil {
			return fmt.Errorf("%w: %s assignment requires a resource id", shared.ErrValidation, kind)
		}
		return h.enforcer.Authorize(ctx, acts.dataset, authz.KindDataset, resourceID.String())
	default:
		return h.enforcer.Authorize(ctx, authz.ActionGlobalUpdateConfiguration, authz.KindGlobal, authz.Wildcard)
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	f := ListFilter{
		Kind:   Kind(r.URL.Query().Get("kind")),
		Status: DecisionStatus(r.URL.Query().Get("status")),
	}
	if v := r.URL.Query().Get("resource_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid resource id", err.Error())
			return
		}
		f.ResourceID = &id
	}
	if v := r.URL.Query().Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid user id", err.Error())
			return
		}
		f.UserID = &id
	}
	out, err := h.service.List(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if out == nil {
		out = []Assignment{}
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid assignment id", err.Error())
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) request(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	var in CreateAssignment
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid assignment", err.Error())
		return
	}
	if !in.Kind.Valid() {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}

	// Requesting access for yourself needs only the baseline request
	// permission; adding someone else is a membership change on the resource.
	if in.UserID == principal.ID && in.Kind != KindGlobal {
		act := authz.ActionGlobalRequestDataProductAccess
		if in.Kind == KindDataset {
			act = authz.ActionGlobalRequestDatasetAccess
		}
		if err := h.enforcer.Authorize(r.Context(), act, authz.KindGlobal, authz.Wildcard); err != nil {
			httpx.RespondError(w, err)
			return
		}
	} else {
		if err := h.authorize(r, in.Kind, in.ResourceID, createActions); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}

	a, err := h.service.Request(r.Context(), in, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid assignment id", err.Error())
		return
	}
	var in struct {
		Approve bool `json:"approve"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.authorize(r, a.Kind, a.ResourceID, approveActions); err != nil {
		httpx.RespondError(w, err)
		return
	}

	decided, err := h.service.Decide(r.Context(), id, in.Approve, principal.ID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, decided)
}

func (h *Handler) modifyRole(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid assignment id", err.Error())
		return
	}
	var in struct {
		RoleID uuid.UUID `json:"role_id"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}

	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.authorize(r, a.Kind, a.ResourceID, updateActions); err != nil {
		httpx.RespondError(w, err)
		return
	}

	updated, err := h.service.ModifyRole(r.Context(), id, in.RoleID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid assignment id", err.Error())
		return
	}
	a, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.authorize(r, a.Kind, a.ResourceID, deleteActions); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Remove(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
