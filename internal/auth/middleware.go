package auth

import (
	"net/http"
	"strings"

	"github.com/meridian-data/meridian/internal/platform/httpx"
	"github.com/meridian-data/meridian/internal/shared"
)

// Middleware authenticates the Authorization header and installs the
// principal on the request context. Requests without credentials are
// rejected here; whether the principal may do anything is the enforcer's
// business.
func Middleware(service *Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
				return
			}
			principal, err := service.Authenticate(r.Context(), token)
			if err != nil {
				httpx.RespondError(w, err)
				return
			}
			ctx := shared.ContextWithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
