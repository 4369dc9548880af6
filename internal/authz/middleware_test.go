package authz

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-data/meridian/internal/shared"
)

func newEnforcerRouter(f *engineFixture) chi.Router {
	enforcer := Enforcer{
		Engine:   f.engine,
		Resolver: NewResolver(f.catalog),
		Logger:   slog.New(slog.DiscardHandler),
	}
	r := chi.NewRouter()
	r.With(enforcer.Require(ActionDataProductDelete, KindDataProduct)).
		Delete("/data_products/{id}", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	r.With(enforcer.RequireGlobal(ActionGlobalCreateDataProduct)).
		Post("/data_products", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
		})
	return r
}

func doRequest(t *testing.T, handler http.Handler, method, target string, principal *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if principal != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), principal))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRequireWithoutPrincipal(t *testing.T) {
	f := newEngineFixture(t)
	router := newEnforcerRouter(f)

	rec := doRequest(t, router, http.MethodDelete, "/data_products/"+f.product.String(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUnknownResourceIs404(t *testing.T) {
	f := newEngineFixture(t)
	router := newEnforcerRouter(f)
	principal := &shared.Principal{ID: uuid.New()}

	// Nonexistence is reported before the permission check: the caller
	// cannot distinguish "missing" from "missing and also forbidden".
	rec := doRequest(t, router, http.MethodDelete, "/data_products/"+uuid.NewString(), principal)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequireDenied(t *testing.T) {
	f := newEngineFixture(t)
	router := newEnforcerRouter(f)
	principal := &shared.Principal{ID: uuid.New()}

	rec := doRequest(t, router, http.MethodDelete, "/data_products/"+f.product.String(), principal)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAllowed(t *testing.T) {
	f := newEngineFixture(t)
	owner := uuid.New()
	ownerRole := uuid.New()
	f.store.policies[ownerRole] = []Action{ActionDataProductDelete}
	require.NoError(t, f.engine.AssignResourceRole(context.Background(), owner, ownerRole, f.product.String()))
	router := newEnforcerRouter(f)

	rec := doRequest(t, router, http.MethodDelete, "/data_products/"+f.product.String(), &shared.Principal{ID: owner})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequireStoreUnavailableIs503(t *testing.T) {
	f := newEngineFixture(t)
	f.store.err = shared.ErrStoreUnavailable
	router := newEnforcerRouter(f)
	principal := &shared.Principal{ID: uuid.New()}

	rec := doRequest(t, router, http.MethodDelete, "/data_products/"+f.product.String(), principal)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequireGlobal(t *testing.T) {
	f := newEngineFixture(t)
	creator := uuid.New()
	creatorRole := uuid.New()
	f.store.policies[creatorRole] = []Action{ActionGlobalCreateDataProduct}
	require.NoError(t, f.engine.AssignGlobalRole(context.Background(), creator, creatorRole))
	router := newEnforcerRouter(f)

	rec := doRequest(t, router, http.MethodPost, "/data_products", &shared.Principal{ID: creator})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/data_products", &shared.Principal{ID: uuid.New()})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireAdminBypassesDeny(t *testing.T) {
	f := newEngineFixture(t)
	admin := uuid.New()
	f.store.adminExpiry[admin] = nil
	router := newEnforcerRouter(f)

	rec := doRequest(t, router, http.MethodDelete, "/data_products/"+f.product.String(), &shared.Principal{ID: admin})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
