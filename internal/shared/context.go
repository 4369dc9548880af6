package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Principal describes the authenticated actor attached to a request.
type Principal struct {
	ID             uuid.UUID
	Email          string
	CanBecomeAdmin bool
	AdminExpiry    *time.Time
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal from context.
// Returns nil when the request is unauthenticated.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
