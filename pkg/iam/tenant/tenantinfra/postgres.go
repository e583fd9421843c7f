package tenantinfra

import (
	"context"
	"database/sql"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/tenant"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/jmoiron/sqlx"
)

// PostgresTenantRepository is the PostgreSQL implementation of tenant.Repository.
type PostgresTenantRepository struct {
	db *sqlx.DB
}

// NewPostgresTenantRepository creates a new repository instance.
func NewPostgresTenantRepository(db *sqlx.DB) tenant.Repository {
	return &PostgresTenantRepository{db: db}
}

// FindByID looks up a tenant by its id.
func (r *PostgresTenantRepository) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	var t tenant.Tenant
	query := `SELECT * FROM tenants WHERE id = $1`
	err := r.db.GetContext(ctx, &t, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrTenantNotFound()
		}
		return nil, errx.Wrap(err, "failed to find tenant by ID", errx.TypeInternal)
	}
	return &t, nil
}

// FindBySlug looks up a tenant by its slug.
func (r *PostgresTenantRepository) FindBySlug(ctx context.Context, slug string) (*tenant.Tenant, error) {
	var t tenant.Tenant
	query := `SELECT * FROM tenants WHERE slug = $1`
	err := r.db.GetContext(ctx, &t, query, slug)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, tenant.ErrTenantNotFound()
		}
		return nil, errx.Wrap(err, "failed to find tenant by slug", errx.TypeInternal)
	}
	return &t, nil
}

// Save inserts or updates a tenant.
func (r *PostgresTenantRepository) Save(ctx context.Context, t tenant.Tenant) error {
	query := `
		INSERT INTO tenants (id, slug, name, status, plan, user_cap, created_at, updated_at)
		VALUES (:id, :slug, :name, :status, :plan, :user_cap, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			plan = EXCLUDED.plan,
			user_cap = EXCLUDED.user_cap,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, t); err != nil {
		return errx.Wrap(err, "failed to save tenant", errx.TypeInternal).
			WithDetail("tenant_id", t.ID.String())
	}
	return nil
}

// UpdateStatus transitions a tenant's lifecycle state.
func (r *PostgresTenantRepository) UpdateStatus(ctx context.Context, id kernel.TenantID, status tenant.Status) error {
	query := `UPDATE tenants SET status = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id.String(), string(status))
	if err != nil {
		return errx.Wrap(err, "failed to update tenant status", errx.TypeInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, "failed to get rows affected on status update", errx.TypeInternal)
	}
	if rows == 0 {
		return tenant.ErrTenantNotFound()
	}
	return nil
}
