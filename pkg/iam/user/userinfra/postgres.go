package userinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresUserRepository is the PostgreSQL implementation of user.Repository.
type PostgresUserRepository struct {
	db *sqlx.DB
}

// NewPostgresUserRepository creates a new repository instance.
func NewPostgresUserRepository(db *sqlx.DB) user.Repository {
	return &PostgresUserRepository{db: db}
}

// FindByIdentifier resolves a login identifier. Email takes priority over
// username so "alice@x.io" never matches a username of the same spelling.
func (r *PostgresUserRepository) FindByIdentifier(ctx context.Context, identifier string) (*user.User, error) {
	var u user.User
	query := `
		SELECT * FROM users
		WHERE email = $1 OR username = $1
		ORDER BY (email = $1) DESC
		LIMIT 1`
	err := r.db.GetContext(ctx, &u, query, identifier)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by identifier", errx.TypeInternal)
	}
	return &u, nil
}

// FindByID looks up a user within a tenant. A user belonging to another
// tenant is indistinguishable from a missing one.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID) (*user.User, error) {
	var u user.User
	query := `SELECT * FROM users WHERE id = $1 AND tenant_id = $2`
	err := r.db.GetContext(ctx, &u, query, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrUserNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by ID", errx.TypeInternal)
	}
	return &u, nil
}

// Save inserts or updates a user.
func (r *PostgresUserRepository) Save(ctx context.Context, u user.User) error {
	query := `
		INSERT INTO users (
			id, tenant_id, email, username, password_hash, role_id,
			is_active, email_verified, mfa_enabled, failed_logins,
			locked_until, last_login_at, created_at, updated_at
		) VALUES (
			:id, :tenant_id, :email, :username, :password_hash, :role_id,
			:is_active, :email_verified, :mfa_enabled, :failed_logins,
			:locked_until, :last_login_at, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			role_id = EXCLUDED.role_id,
			is_active = EXCLUDED.is_active,
			email_verified = EXCLUDED.email_verified,
			mfa_enabled = EXCLUDED.mfa_enabled,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.NamedExecContext(ctx, query, u); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return user.ErrDuplicateUser().WithDetail("email", u.Email)
		}
		return errx.Wrap(err, "failed to save user", errx.TypeInternal).
			WithDetail("user_id", u.ID.String())
	}
	return nil
}

// UpdateLastLogin stamps last_login_at.
func (r *PostgresUserRepository) UpdateLastLogin(ctx context.Context, id kernel.UserID) error {
	query := `UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return errx.Wrap(err, "failed to update last login", errx.TypeInternal)
	}
	return nil
}

// RecordFailedLogin increments the per-user failure counter and returns the
// new count.
func (r *PostgresUserRepository) RecordFailedLogin(ctx context.Context, id kernel.UserID) (int, error) {
	var count int
	query := `
		UPDATE users SET failed_logins = failed_logins + 1, updated_at = NOW()
		WHERE id = $1
		RETURNING failed_logins`
	if err := r.db.GetContext(ctx, &count, query, id.String()); err != nil {
		return 0, errx.Wrap(err, "failed to record failed login", errx.TypeInternal)
	}
	return count, nil
}

// ResetFailedLogins clears the failure counter and any lockout.
func (r *PostgresUserRepository) ResetFailedLogins(ctx context.Context, id kernel.UserID) error {
	query := `UPDATE users SET failed_logins = 0, locked_until = NULL, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id.String()); err != nil {
		return errx.Wrap(err, "failed to reset failed logins", errx.TypeInternal)
	}
	return nil
}

// SetLockout sets or clears the lockout deadline.
func (r *PostgresUserRepository) SetLockout(ctx context.Context, id kernel.UserID, until *time.Time) error {
	query := `UPDATE users SET locked_until = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id.String(), until); err != nil {
		return errx.Wrap(err, "failed to set lockout", errx.TypeInternal)
	}
	return nil
}
