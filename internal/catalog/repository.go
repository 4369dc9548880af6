package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/shared"
)

// Repository persists the catalog in Postgres. It doubles as the
// authz.CatalogLookup port: the enforcement path resolves resource
// existence and domain membership through the same queries the catalog
// itself uses.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// --- domains ---

const domainColumns = `id, name, description, created_at, updated_at`

func scanDomain(row pgx.Row) (Domain, error) {
	var d Domain
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *Repository) CreateDomain(ctx context.Context, d Domain) (Domain, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO domains (id, name, description)
		VALUES ($1, $2, $3)
		RETURNING `+domainColumns,
		d.ID, d.Name, d.Description,
	)
	created, err := scanDomain(row)
	if err != nil {
		if uniqueViolation(err) {
			return Domain{}, fmt.Errorf("%w: a domain named %q already exists", shared.ErrConflict, d.Name)
		}
		return Domain{}, fmt.Errorf("create domain: %w", err)
	}
	return created, nil
}

func (r *Repository) GetDomain(ctx context.Context, id uuid.UUID) (Domain, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+domainColumns+` FROM domains WHERE id = $1`, id)
	d, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Domain{}, fmt.Errorf("%w: domain %s", shared.ErrNotFound, id)
		}
		return Domain{}, fmt.Errorf("get domain: %w", err)
	}
	return d, nil
}

func (r *Repository) ListDomains(ctx context.Context) ([]Domain, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+domainColumns+` FROM domains ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list domains: %w", err)
	}
	defer rows.Close()

	var out []Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("list domains: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateDomain(ctx context.Context, d Domain) (Domain, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE domains SET name = $2, description = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+domainColumns,
		d.ID, d.Name, d.Description,
	)
	updated, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Domain{}, fmt.Errorf("%w: domain %s", shared.ErrNotFound, d.ID)
		}
		if uniqueViolation(err) {
			return Domain{}, fmt.Errorf("%w: a domain named %q already exists", shared.ErrConflict, d.Name)
		}
		return Domain{}, fmt.Errorf("update domain: %w", err)
	}
	return updated, nil
}

// DomainResourceCount reports how many products and datasets live in the
// domain. Deletion is refused while the domain is non-empty.
func (r *Repository) DomainResourceCount(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM data_products WHERE domain_id = $1)
		     + (SELECT count(*) FROM datasets WHERE domain_id = $1)`, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count domain resources: %w", err)
	}
	return count, nil
}

func (r *Repository) DeleteDomain(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM domains WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete domain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: domain %s", shared.ErrNotFound, id)
	}
	return nil
}

// --- data products ---

const productColumns = `id, name, namespace, description, domain_id, status, created_at, updated_at`

func scanProduct(row pgx.Row) (DataProduct, error) {
	var p DataProduct
	err := row.Scan(&p.ID, &p.Name, &p.Namespace, &p.Description, &p.DomainID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repository) CreateDataProduct(ctx context.Context, p DataProduct) (DataProduct, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO data_products (id, name, namespace, description, domain_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		p.ID, p.Name, p.Namespace, p.Description, p.DomainID, p.Status,
	)
	created, err := scanProduct(row)
	if err != nil {
		if uniqueViolation(err) {
			return DataProduct{}, fmt.Errorf("%w: namespace %q is taken", shared.ErrConflict, p.Namespace)
		}
		return DataProduct{}, fmt.Errorf("create data product: %w", err)
	}
	return created, nil
}

func (r *Repository) GetDataProduct(ctx context.Context, id uuid.UUID) (DataProduct, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM data_products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DataProduct{}, fmt.Errorf("%w: data product %s", shared.ErrNotFound, id)
		}
		return DataProduct{}, fmt.Errorf("get data product: %w", err)
	}
	return p, nil
}

func (r *Repository) ListDataProducts(ctx context.Context, domainID *uuid.UUID) ([]DataProduct, error) {
	query := `SELECT ` + productColumns + ` FROM data_products ORDER BY name`
	args := []any{}
	if domainID != nil {
		query = `SELECT ` + productColumns + ` FROM data_products WHERE domain_id = $1 ORDER BY name`
		args = append(args, *domainID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list data products: %w", err)
	}
	defer rows.Close()

	var out []DataProduct
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("list data products: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateDataProduct(ctx context.Context, p DataProduct) (DataProduct, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE data_products
		SET name = $2, description = $3, domain_id = $4, status = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.DomainID, p.Status,
	)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DataProduct{}, fmt.Errorf("%w: data product %s", shared.ErrNotFound, p.ID)
		}
		return DataProduct{}, fmt.Errorf("update data product: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteDataProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM data_products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete data product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: data product %s", shared.ErrNotFound, id)
	}
	return nil
}

// --- datasets ---

const datasetColumns = `id, name, namespace, description, domain_id, access_type, status, created_at, updated_at`

func scanDataset(row pgx.Row) (Dataset, error) {
	var d Dataset
	err := row.Scan(&d.ID, &d.Name, &d.Namespace, &d.Description, &d.DomainID, &d.AccessType, &d.Status, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (r *Repository) CreateDataset(ctx context.Context, d Dataset) (Dataset, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO datasets (id, name, namespace, description, domain_id, access_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+datasetColumns,
		d.ID, d.Name, d.Namespace, d.Description, d.DomainID, d.AccessType, d.Status,
	)
	created, err := scanDataset(row)
	if err != nil {
		if uniqueViolation(err) {
			return Dataset{}, fmt.Errorf("%w: namespace %q is taken", shared.ErrConflict, d.Namespace)
		}
		return Dataset{}, fmt.Errorf("create dataset: %w", err)
	}
	return created, nil
}

func (r *Repository) GetDataset(ctx context.Context, id uuid.UUID) (Dataset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+datasetColumns+` FROM datasets WHERE id = $1`, id)
	d, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dataset{}, fmt.Errorf("%w: dataset %s", shared.ErrNotFound, id)
		}
		return Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return d, nil
}

func (r *Repository) ListDatasets(ctx context.Context, domainID *uuid.UUID) ([]Dataset, error) {
	query := `SELECT ` + datasetColumns + ` FROM datasets ORDER BY name`
	args := []any{}
	if domainID != nil {
		query = `SELECT ` + datasetColumns + ` FROM datasets WHERE domain_id = $1 ORDER BY name`
		args = append(args, *domainID)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		d, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("list datasets: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateDataset(ctx context.Context, d Dataset) (Dataset, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE datasets
		SET name = $2, description = $3, domain_id = $4, access_type = $5, status = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+datasetColumns,
		d.ID, d.Name, d.Description, d.DomainID, d.AccessType, d.Status,
	)
	updated, err := scanDataset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dataset{}, fmt.Errorf("%w: dataset %s", shared.ErrNotFound, d.ID)
		}
		return Dataset{}, fmt.Errorf("update dataset: %w", err)
	}
	return updated, nil
}

func (r *Repository) DeleteDataset(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM datasets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: dataset %s", shared.ErrNotFound, id)
	}
	return nil
}

// --- authz.CatalogLookup ---

// ResolveDomain answers which domain a resource belongs to.
func (r *Repository) ResolveDomain(ctx context.Context, kind authz.ResourceKind, id uuid.UUID) (uuid.UUID, error) {
	var table string
	switch kind {
	case authz.KindDataProduct:
		table = "data_products"
	case authz.KindDataset:
		table = "datasets"
	default:
		return uuid.Nil, fmt.Errorf("%w: no domain for kind %q", shared.ErrNotFound, kind)
	}
	var domainID uuid.UUID
	err := r.pool.QueryRow(ctx, `SELECT domain_id FROM `+table+` WHERE id = $1`, id).Scan(&domainID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("%w: %s %s", shared.ErrNotFound, kind, id)
		}
		return uuid.Nil, fmt.Errorf("resolve domain: %w", err)
	}
	return domainID, nil
}

// Exists reports whether the resource is present.
func (r *Repository) Exists(ctx context.Context, kind authz.ResourceKind, id uuid.UUID) (bool, error) {
	var table string
	switch kind {
	case authz.KindDataProduct:
		table = "data_products"
	case authz.KindDataset:
		table = "datasets"
	case authz.KindDomain:
		table = "domains"
	default:
		return false, nil
	}
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM `+table+` WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check %s existence: %w", kind, err)
	}
	return exists, nil
}
