package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/shared"
)

// ResourceKind tags the resource type an enforcement check applies to.
// Dispatch happens on the tag rather than per-type resolver classes.
type ResourceKind string

const (
	KindDataProduct ResourceKind = "data_product"
	KindDataset     ResourceKind = "dataset"
	KindDomain      ResourceKind = "domain"
	// KindGlobal marks actions with no resource: object and domain are
	// wildcarded and no existence check runs.
	KindGlobal ResourceKind = "global"
)

// CatalogLookup is implemented by the catalog persistence layer. It answers
// the two questions the engine needs about a resource: does it exist, and
// which domain does it belong to. ResolveDomain returns shared.ErrNotFound
// for unknown ids and an empty string for resources without a domain.
type CatalogLookup interface {
	ResolveDomain(ctx context.Context, kind ResourceKind, id uuid.UUID) (uuid.UUID, error)
	Exists(ctx context.Context, kind ResourceKind, id uuid.UUID) (bool, error)
}

// Resolver maps a resource id to the domain it inherits grants from.
type Resolver struct {
	lookup CatalogLookup
}

// NewResolver constructs a resolver over the catalog lookup port.
func NewResolver(lookup CatalogLookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// ResolveDomain returns the domain id for the object, or Wildcard when the
// object has none: global checks, wildcard objects and unknown resources all
// resolve to Wildcard so a missing domain never blocks the decision flow.
// A domain object resolves to itself.
func (r *Resolver) ResolveDomain(ctx context.Context, kind ResourceKind, objectID string) (string, error) {
	if kind == KindGlobal || objectID == Wildcard {
		return Wildcard, nil
	}
	if kind == KindDomain {
		return objectID, nil
	}
	id, err := uuid.Parse(objectID)
	if err != nil {
		return Wildcard, nil
	}
	domainID, err := r.lookup.ResolveDomain(ctx, kind, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Wildcard, nil
		}
		return Wildcard, err
	}
	if domainID == uuid.Nil {
		return Wildcard, nil
	}
	return domainID.String(), nil
}

// Exists reports whether the object is present in the catalog. Global checks
// have no object and always exist.
func (r *Resolver) Exists(ctx context.Context, kind ResourceKind, objectID string) (bool, error) {
	if kind == KindGlobal || objectID == Wildcard {
		return true, nil
	}
	id, err := uuid.Parse(objectID)
	if err != nil {
		return false, fmt.Errorf("%w: malformed resource id %q", shared.ErrNotFound, objectID)
	}
	return r.lookup.Exists(ctx, kind, id)
}
