package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-data/meridian/internal/assignments"
	"github.com/meridian-data/meridian/internal/auth"
	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/catalog"
	"github.com/meridian-data/meridian/internal/elevation"
	"github.com/meridian-data/meridian/internal/roles"
	"github.com/meridian-data/meridian/internal/users"
	"github.com/meridian-data/meridian/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthService        *auth.Service
	AuthHandler        *auth.Handler
	AuthzHandler       *authz.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	AssignmentsHandler *assignments.Handler
	ElevationHandler   *elevation.Handler
	CatalogHandler     *catalog.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router. The health endpoint stays outside
// the authenticated group; everything else requires an API key.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(params.AuthService))

		r.Route("/authz", func(r chi.Router) {
			params.AuthzHandler.MountRoutes(r)
			params.ElevationHandler.MountRoutes(r)
		})
		r.Route("/roles", func(r chi.Router) {
			params.RolesHandler.MountRoutes(r)
		})
		r.Route("/users", func(r chi.Router) {
			params.UsersHandler.MountRoutes(r)
		})
		r.Route("/role_assignments", func(r chi.Router) {
			params.AssignmentsHandler.MountRoutes(r)
		})
		r.Route("/domains", func(r chi.Router) {
			params.CatalogHandler.MountDomainRoutes(r)
		})
		r.Route("/data_products", func(r chi.Router) {
			params.CatalogHandler.MountDataProductRoutes(r)
		})
		r.Route("/datasets", func(r chi.Router) {
			params.CatalogHandler.MountDatasetRoutes(r)
		})
		r.Route("/api_keys", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r)
		})
		r.Route("/jobs", func(r chi.Router) {
			params.JobHandler.MountRoutes(r)
		})
	})

	return r
}
