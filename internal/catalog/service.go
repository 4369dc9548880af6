package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/meridian-data/meridian/internal/roles"
	"github.com/meridian-data/meridian/internal/shared"
)

// CatalogStore is the persistence port for the catalog.
type CatalogStore interface {
	CreateDomain(ctx context.Context, d Domain) (Domain, error)
	GetDomain(ctx context.Context, id uuid.UUID) (Domain, error)
	ListDomains(ctx context.Context) ([]Domain, error)
	UpdateDomain(ctx context.Context, d Domain) (Domain, error)
	DomainResourceCount(ctx context.Context, id uuid.UUID) (int, error)
	DeleteDomain(ctx context.Context, id uuid.UUID) error

	CreateDataProduct(ctx context.Context, p DataProduct) (DataProduct, error)
	GetDataProduct(ctx context.Context, id uuid.UUID) (DataProduct, error)
	ListDataProducts(ctx context.Context, domainID *uuid.UUID) ([]DataProduct, error)
	UpdateDataProduct(ctx context.Context, p DataProduct) (DataProduct, error)
	DeleteDataProduct(ctx context.Context, id uuid.UUID) error

	CreateDataset(ctx context.Context, d Dataset) (Dataset, error)
	GetDataset(ctx context.Context, id uuid.UUID) (Dataset, error)
	ListDatasets(ctx context.Context, domainID *uuid.UUID) ([]Dataset, error)
	UpdateDataset(ctx context.Context, d Dataset) (Dataset, error)
	DeleteDataset(ctx context.Context, id uuid.UUID) error
}

// OwnerRoles finds the built-in owner role for a resource type.
type OwnerRoles interface {
	FindPrototype(ctx context.Context, scope roles.Scope, proto roles.Prototype) (roles.Role, error)
}

// GrantWriter is the slice of the authorization engine the catalog drives:
// creators become owners, and deleting a resource or domain removes the
// grants that pointed at it.
type GrantWriter interface {
	AssignResourceRole(ctx context.Context, userID, roleID uuid.UUID, resourceID string) error
	ClearAssignmentsForResource(ctx context.Context, resourceID string) error
	ClearAssignmentsForDomain(ctx context.Context, domainID string) error
}

type Service struct {
	logger *slog.Logger
	store  CatalogStore
	roles  OwnerRoles
	grants GrantWriter
}

func NewService(logger *slog.Logger, store CatalogStore, ownerRoles OwnerRoles, grants GrantWriter) *Service {
	return &Service{logger: logger, store: store, roles: ownerRoles, grants: grants}
}

// --- domains ---

type CreateDomainInput struct {
	Name        string `json:"name" validate:"required,min=1,max=120"`
	Description string `json:"description" validate:"max=1000"`
}

func (s *Service) CreateDomain(ctx context.Context, in CreateDomainInput) (Domain, error) {
	d, err := s.store.CreateDomain(ctx, Domain{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
	})
	if err != nil {
		return Domain{}, err
	}
	s.logger.Info("domain created", "domain_id", d.ID, "name", d.Name)
	return d, nil
}

func (s *Service) GetDomain(ctx context.Context, id uuid.UUID) (Domain, error) {
	return s.store.GetDomain(ctx, id)
}

func (s *Service) ListDomains(ctx context.Context) ([]Domain, error) {
	return s.store.ListDomains(ctx)
}

func (s *Service) UpdateDomain(ctx context.Context, id uuid.UUID, in CreateDomainInput) (Domain, error) {
	d, err := s.store.GetDomain(ctx, id)
	if err != nil {
		return Domain{}, err
	}
	d.Name = strings.TrimSpace(in.Name)
	d.Description = strings.TrimSpace(in.Description)
	return s.store.UpdateDomain(ctx, d)
}

// DeleteDomain removes an empty domain along with the domain-scoped grants
// that pointed at it. A domain still holding products or datasets is a
// conflict: move or delete the contents first.
func (s *Service) DeleteDomain(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetDomain(ctx, id); err != nil {
		return err
	}
	count, err := s.store.DomainResourceCount(ctx, id)
	if err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: domain still holds %d resources", shared.ErrConflict, count)
	}
	if err := s.grants.ClearAssignmentsForDomain(ctx, id.String()); err != nil {
		return fmt.Errorf("clear domain grants: %w", err)
	}
	if err := s.store.DeleteDomain(ctx, id); err != nil {
		return err
	}
	s.logger.Info("domain deleted", "domain_id", id)
	return nil
}

// --- data products ---

type CreateDataProductInput struct {
	Name        string    `json:"name" validate:"required,min=1,max=120"`
	Namespace   string    `json:"namespace" validate:"required,min=1,max=120"`
	Description string    `json:"description" validate:"max=1000"`
	DomainID    uuid.UUID `json:"domain_id" validate:"required"`
}

// CreateDataProduct registers a product and makes its creator the owner.
func (s *Service) CreateDataProduct(ctx context.Context, in CreateDataProductInput, creator uuid.UUID) (DataProduct, error) {
	if _, err := s.store.GetDomain(ctx, in.DomainID); err != nil {
		return DataProduct{}, err
	}
	p, err := s.store.CreateDataProduct(ctx, DataProduct{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Namespace:   strings.TrimSpace(in.Namespace),
		Description: strings.TrimSpace(in.Description),
		DomainID:    in.DomainID,
		Status:      StatusActive,
	})
	if err != nil {
		return DataProduct{}, err
	}
	if err := s.assignOwner(ctx, roles.ScopeDataProduct, creator, p.ID); err != nil {
		return DataProduct{}, err
	}
	s.logger.Info("data product created", "data_product_id", p.ID, "namespace", p.Namespace, "owner", creator)
	return p, nil
}

func (s *Service) GetDataProduct(ctx context.Context, id uuid.UUID) (DataProduct, error) {
	return s.store.GetDataProduct(ctx, id)
}

func (s *Service) ListDataProducts(ctx context.Context, domainID *uuid.UUID) ([]DataProduct, error) {
	return s.store.ListDataProducts(ctx, domainID)
}

type UpdateDataProductInput struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string    `json:"description" validate:"omitempty,max=1000"`
	DomainID    *uuid.UUID `json:"domain_id"`
}

func (s *Service) UpdateDataProduct(ctx context.Context, id uuid.UUID, in UpdateDataProductInput) (DataProduct, error) {
	p, err := s.store.GetDataProduct(ctx, id)
	if err != nil {
		return DataProduct{}, err
	}
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.DomainID != nil {
		if _, err := s.store.GetDomain(ctx, *in.DomainID); err != nil {
			return DataProduct{}, err
		}
		p.DomainID = *in.DomainID
	}
	return s.store.UpdateDataProduct(ctx, p)
}

func (s *Service) UpdateDataProductStatus(ctx context.Context, id uuid.UUID, status Status) (DataProduct, error) {
	if !status.Valid() {
		return DataProduct{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	p, err := s.store.GetDataProduct(ctx, id)
	if err != nil {
		return DataProduct{}, err
	}
	p.Status = status
	return s.store.UpdateDataProduct(ctx, p)
}

// DeleteDataProduct removes the product and every grant scoped to it.
func (s *Service) DeleteDataProduct(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetDataProduct(ctx, id); err != nil {
		return err
	}
	if err := s.grants.ClearAssignmentsForResource(ctx, id.String()); err != nil {
		return fmt.Errorf("clear product grants: %w", err)
	}
	if err := s.store.DeleteDataProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("data product deleted", "data_product_id", id)
	return nil
}

// --- datasets ---

type CreateDatasetInput struct {
	Name        string     `json:"name" validate:"required,min=1,max=120"`
	Namespace   string     `json:"namespace" validate:"required,min=1,max=120"`
	Description string     `json:"description" validate:"max=1000"`
	DomainID    uuid.UUID  `json:"domain_id" validate:"required"`
	AccessType  AccessType `json:"access_type" validate:"required"`
}

func (s *Service) CreateDataset(ctx context.Context, in CreateDatasetInput, creator uuid.UUID) (Dataset, error) {
	if !in.AccessType.Valid() {
		return Dataset{}, fmt.Errorf("%w: unknown access type %q", shared.ErrValidation, in.AccessType)
	}
	if _, err := s.store.GetDomain(ctx, in.DomainID); err != nil {
		return Dataset{}, err
	}
	d, err := s.store.CreateDataset(ctx, Dataset{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(in.Name),
		Namespace:   strings.TrimSpace(in.Namespace),
		Description: strings.TrimSpace(in.Description),
		DomainID:    in.DomainID,
		AccessType:  in.AccessType,
		Status:      StatusActive,
	})
	if err != nil {
		return Dataset{}, err
	}
	if err := s.assignOwner(ctx, roles.ScopeDataset, creator, d.ID); err != nil {
		return Dataset{}, err
	}
	s.logger.Info("dataset created", "dataset_id", d.ID, "namespace", d.Namespace, "owner", creator)
	return d, nil
}

func (s *Service) GetDataset(ctx context.Context, id uuid.UUID) (Dataset, error) {
	return s.store.GetDataset(ctx, id)
}

func (s *Service) ListDatasets(ctx context.Context, domainID *uuid.UUID) ([]Dataset, error) {
	return s.store.ListDatasets(ctx, domainID)
}

type UpdateDatasetInput struct {
	Name        *string     `json:"name" validate:"omitempty,min=1,max=120"`
	Description *string     `json:"description" validate:"omitempty,max=1000"`
	DomainID    *uuid.UUID  `json:"domain_id"`
	AccessType  *AccessType `json:"access_type"`
}

func (s *Service) UpdateDataset(ctx context.Context, id uuid.UUID, in UpdateDatasetInput) (Dataset, error) {
	d, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return Dataset{}, err
	}
	if in.Name != nil {
		d.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		d.Description = strings.TrimSpace(*in.Description)
	}
	if in.DomainID != nil {
		if _, err := s.store.GetDomain(ctx, *in.DomainID); err != nil {
			return Dataset{}, err
		}
		d.DomainID = *in.DomainID
	}
	if in.AccessType != nil {
		if !in.AccessType.Valid() {
			return Dataset{}, fmt.Errorf("%w: unknown access type %q", shared.ErrValidation, *in.AccessType)
		}
		d.AccessType = *in.AccessType
	}
	return s.store.UpdateDataset(ctx, d)
}

func (s *Service) UpdateDatasetStatus(ctx context.Context, id uuid.UUID, status Status) (Dataset, error) {
	if !status.Valid() {
		return Dataset{}, fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	d, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return Dataset{}, err
	}
	d.Status = status
	return s.store.UpdateDataset(ctx, d)
}

func (s *Service) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	if _, err := s.store.GetDataset(ctx, id); err != nil {
		return err
	}
	if err := s.grants.ClearAssignmentsForResource(ctx, id.String()); err != nil {
		return fmt.Errorf("clear dataset grants: %w", err)
	}
	if err := s.store.DeleteDataset(ctx, id); err != nil {
		return err
	}
	s.logger.Info("dataset deleted", "dataset_id", id)
	return nil
}

func (s *Service) assignOwner(ctx context.Context, scope roles.Scope, userID, resourceID uuid.UUID) error {
	owner, err := s.roles.FindPrototype(ctx, scope, roles.PrototypeOwner)
	if err != nil {
		return fmt.Errorf("find owner role: %w", err)
	}
	if err := s.grants.AssignResourceRole(ctx, userID, owner.ID, resourceID.String()); err != nil {
		return fmt.Errorf("assign owner role: %w", err)
	}
	return nil
}
