package authz

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-data/meridian/internal/platform/httpx"
	"github.com/meridian-data/meridian/internal/shared"
)

// Handler exposes the two read endpoints the rest of the system consumes:
// an access probe and the caller's admin status.
type Handler struct {
	logger   *slog.Logger
	engine   *Engine
	resolver *Resolver
}

// NewHandler builds the decision API handler.
func NewHandler(logger *slog.Logger, engine *Engine, resolver *Resolver) *Handler {
	return &Handler{logger: logger, engine: engine, resolver: resolver}
}

// MountRoutes registers the decision endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/access/{action}", h.checkAccess)
	r.Get("/admin", h.adminStatus)
}

type accessResponse struct {
	Allowed bool `json:"allowed"`
}

type adminStatusResponse struct {
	IsAdmin bool    `json:"is_admin"`
	Time    *string `json:"time"`
}

// checkAccess answers GET /authz/access/{action}?resource=&domain=.
func (h *Handler) checkAccess(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	act, err := ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	obj := r.URL.Query().Get("resource")
	if obj == "" {
		obj = Wildcard
	}
	dom := r.URL.Query().Get("domain")
	if dom == "" {
		dom = Wildcard
	}

	allowed, err := h.engine.HasAccess(r.Context(), principal.ID, dom, obj, act)
	if err != nil {
		h.logger.Error("access check", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accessResponse{Allowed: allowed})
}

// adminStatus answers GET /authz/admin with the caller's elevation state.
func (h *Handler) adminStatus(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	isAdmin, err := h.engine.HasAdminRole(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("admin status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp := adminStatusResponse{IsAdmin: isAdmin}
	if isAdmin && principal.AdminExpiry != nil {
		t := principal.AdminExpiry.UTC().Format(time.RFC3339)
		resp.Time = &t
	}
	httpx.JSON(w, http.StatusOK, resp)
}
