package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/platform/httpx"
)

// Handler exposes API-key management. Issuing and revoking credentials is
// a configuration change, so both routes require the global configuration
// permission; the very first key of a fresh install is provisioned out of
// band (see DESIGN.md).
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
	r.Group(func(r chi.Router) {
		r.Use(h.enforcer.RequireGlobal(authz.ActionGlobalUpdateConfiguration))
		r.Post("/", h.issue)
		r.Delete("/{id}", h.revoke)
	})
}

type issueKeyRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Name   string    `json:"name" validate:"required,max=120"`
}

type issueKeyResponse struct {
	Key APIKey `json:"key"`
	// Token is shown exactly once; only its hash survives.
	Token string `json:"token"`
}

func (h *Handler) issue(w http.ResponseWriter, r *http.Request) {
	var in issueKeyRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid api key request", err.Error())
		return
	}

	key, token, err := h.service.IssueKey(r.Context(), in.UserID, in.Name)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("api key issued", "key_id", key.ID, "user_id", key.UserID)
	httpx.JSON(w, http.StatusCreated, issueKeyResponse{Key: key, Token: token})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid api key id", err.Error())
		return
	}
	if err := h.service.RevokeKey(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
