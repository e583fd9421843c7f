package roleinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/role"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRoleRepository is the PostgreSQL implementation of role.Repository.
type PostgresRoleRepository struct {
	db *sqlx.DB
}

// NewPostgresRoleRepository creates a new repository instance.
func NewPostgresRoleRepository(db *sqlx.DB) role.Repository {
	return &PostgresRoleRepository{db: db}
}

// FindByID looks up a role by id.
func (r *PostgresRoleRepository) FindByID(ctx context.Context, id string) (*role.Role, error) {
	var p rolePersistence
	query := `SELECT * FROM roles WHERE id = $1`
	err := r.db.GetContext(ctx, &p, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, role.ErrRoleNotFound()
		}
		return nil, errx.Wrap(err, "failed to find role by ID", errx.TypeInternal)
	}
	domain := toDomain(p)
	return &domain, nil
}

// FindByName looks up a role by its unique name.
func (r *PostgresRoleRepository) FindByName(ctx context.Context, name string) (*role.Role, error) {
	var p rolePersistence
	query := `SELECT * FROM roles WHERE name = $1`
	err := r.db.GetContext(ctx, &p, query, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, role.ErrRoleNotFound()
		}
		return nil, errx.Wrap(err, "failed to find role by name", errx.TypeInternal)
	}
	domain := toDomain(p)
	return &domain, nil
}

// List returns all roles.
func (r *PostgresRoleRepository) List(ctx context.Context) ([]*role.Role, error) {
	var rows []rolePersistence
	query := `SELECT * FROM roles ORDER BY name ASC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errx.Wrap(err, "failed to list roles", errx.TypeInternal)
	}

	roles := make([]*role.Role, len(rows))
	for i, p := range rows {
		d := toDomain(p)
		roles[i] = &d
	}
	return roles, nil
}

// Save inserts or updates a role. System roles are immutable.
func (r *PostgresRoleRepository) Save(ctx context.Context, ro role.Role) error {
	existing, err := r.FindByID(ctx, ro.ID)
	if err == nil && existing.IsSystem {
		return role.ErrRoleImmutable().WithDetail("role", existing.Name)
	}

	query := `
		INSERT INTO roles (id, name, label, permissions, is_system, created_at, updated_at)
		VALUES (:id, :name, :label, :permissions, :is_system, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			permissions = EXCLUDED.permissions,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, toPersistence(ro)); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return errx.Wrap(err, "role name already exists", errx.TypeConflict)
		}
		return errx.Wrap(err, "failed to save role", errx.TypeInternal).WithDetail("role_id", ro.ID)
	}
	return nil
}

// rolePersistence maps DB-specific types.
type rolePersistence struct {
	ID          string         `db:"id"`
	Name        string         `db:"name"`
	Label       string         `db:"label"`
	Permissions pq.StringArray `db:"permissions"`
	IsSystem    bool           `db:"is_system"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

func toPersistence(r role.Role) rolePersistence {
	return rolePersistence{
		ID:          r.ID,
		Name:        r.Name,
		Label:       r.Label,
		Permissions: r.Permissions,
		IsSystem:    r.IsSystem,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toDomain(p rolePersistence) role.Role {
	return role.Role{
		ID:          p.ID,
		Name:        p.Name,
		Label:       p.Label,
		Permissions: p.Permissions,
		IsSystem:    p.IsSystem,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
