package elevation

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian-data/meridian/internal/platform/httpx"
	"github.com/meridian-data/meridian/internal/shared"
)

// Handler exposes self-service elevation endpoints. Both act on the caller:
// there is no endpoint to elevate somebody else.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/admin/become", h.become)
	r.Post("/admin/revoke", h.revoke)
}

func (h *Handler) become(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	window, err := requestedWindow(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid elevation window", err.Error())
		return
	}
	expiry, err := h.service.BecomeAdmin(r.Context(), principal.ID, window)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"is_admin": true,
		"time":     expiry.Format(time.RFC3339),
	})
}

// requestedWindow reads the optional elevation window from the request
// body, e.g. {"expiry": "15m"}. An absent body or field means the server
// default; the service caps whatever is asked for.
func requestedWindow(r *http.Request) (time.Duration, error) {
	var in struct {
		Expiry string `json:"expiry"`
	}
	if err := httpx.DecodeJSON(r, &in); err != nil {
		if errors.Is(err, io.EOF) {
			return 0, nil
		}
		return 0, err
	}
	if in.Expiry == "" {
		return 0, nil
	}
	return time.ParseDuration(in.Expiry)
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	if err := h.service.RevokeAdmin(r.Context(), principal.ID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"is_admin": false,
		"time":     nil,
	})
}
