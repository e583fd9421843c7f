package suppliersinfra

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/suppliers"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresCredentialRepository implements suppliers.Repository. Secrets are
// encrypted with pgcrypto's pgp_sym_encrypt at write time and decrypted
// inside the SELECT, so plaintext exists only on the wire between the
// database and this process.
type PostgresCredentialRepository struct {
	db  *sqlx.DB
	key string
}

// NewPostgresCredentialRepository creates the repository. key is the master
// encryption key; config validates its length at startup.
func NewPostgresCredentialRepository(db *sqlx.DB, key string) suppliers.Repository {
	return &PostgresCredentialRepository{db: db, key: key}
}

// credentialRow is the persistence shape. secret_plain is only populated by
// queries that decrypt.
type credentialRow struct {
	ID           string         `db:"id"`
	TenantID     string         `db:"tenant_id"`
	Provider     string         `db:"provider"`
	Name         string         `db:"name"`
	SecretPlain  sql.NullString `db:"secret_plain"`
	Endpoint     sql.NullString `db:"endpoint"`
	ModelConfigs []byte         `db:"model_configs"`
	IsActive     bool           `db:"is_active"`
	LastUsedAt   *time.Time     `db:"last_used_at"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (r credentialRow) toDomain() (*suppliers.Credential, error) {
	var configs map[string]string
	if len(r.ModelConfigs) > 0 {
		if err := json.Unmarshal(r.ModelConfigs, &configs); err != nil {
			return nil, errx.Wrap(err, "corrupt model_configs column", errx.TypeInternal).
				WithDetail("credential_id", r.ID)
		}
	}

	return &suppliers.Credential{
		ID:           kernel.NewCredentialID(r.ID),
		TenantID:     kernel.NewTenantID(r.TenantID),
		Provider:     suppliers.Provider(r.Provider),
		Name:         r.Name,
		Secret:       r.SecretPlain.String,
		Endpoint:     r.Endpoint.String,
		ModelConfigs: configs,
		IsActive:     r.IsActive,
		LastUsedAt:   r.LastUsedAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}, nil
}

// Store inserts a credential, encrypting the secret in the INSERT itself.
func (r *PostgresCredentialRepository) Store(ctx context.Context, tenant kernel.TenantScope, in suppliers.StoreInput) (*suppliers.Credential, error) {
	if !in.Provider.Valid() {
		return nil, suppliers.ErrInvalidProvider(in.Provider)
	}

	configs, err := json.Marshal(in.ModelConfigs)
	if err != nil {
		return nil, errx.Wrap(err, "failed to encode model_configs", errx.TypeInternal)
	}

	id := uuid.NewString()
	query := `
		INSERT INTO provider_credentials (
			id, tenant_id, provider, name, secret_enc, endpoint,
			model_configs, is_active, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, pgp_sym_encrypt($5, $6), NULLIF($7, ''),
			$8, $9, NOW(), NOW()
		)`

	_, err = r.db.ExecContext(ctx, query,
		id, tenant.TenantID().String(), string(in.Provider), in.Name,
		in.Secret, r.key, in.Endpoint, configs, in.IsActive,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" { // unique_violation
			return nil, suppliers.ErrDuplicateCredential().WithDetail("name", in.Name)
		}
		return nil, errx.Wrap(err, "failed to store credential", errx.TypeInternal)
	}

	return r.FetchByID(ctx, tenant, kernel.NewCredentialID(id))
}

// Update rewrites the mutable fields; an empty incoming secret keeps the
// stored one.
func (r *PostgresCredentialRepository) Update(ctx context.Context, tenant kernel.TenantScope, id kernel.CredentialID, in suppliers.StoreInput) (*suppliers.Credential, error) {
	configs, err := json.Marshal(in.ModelConfigs)
	if err != nil {
		return nil, errx.Wrap(err, "failed to encode model_configs", errx.TypeInternal)
	}

	query := `
		UPDATE provider_credentials SET
			name = $3,
			secret_enc = CASE WHEN $4 = '' THEN secret_enc ELSE pgp_sym_encrypt($4, $5) END,
			endpoint = NULLIF($6, ''),
			model_configs = $7,
			is_active = $8,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`

	res, err := r.db.ExecContext(ctx, query,
		id.String(), tenant.TenantID().String(), in.Name,
		in.Secret, r.key, in.Endpoint, configs, in.IsActive,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return nil, suppliers.ErrDuplicateCredential().WithDetail("name", in.Name)
		}
		return nil, errx.Wrap(err, "failed to update credential", errx.TypeInternal)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, suppliers.ErrCredentialNotFound()
	}

	return r.FetchByID(ctx, tenant, id)
}

// Delete removes a credential within the tenant scope.
func (r *PostgresCredentialRepository) Delete(ctx context.Context, tenant kernel.TenantScope, id kernel.CredentialID) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE id = $1 AND tenant_id = $2`,
		id.String(), tenant.TenantID().String(),
	)
	if err != nil {
		return errx.Wrap(err, "failed to delete credential", errx.TypeInternal)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return suppliers.ErrCredentialNotFound()
	}
	return nil
}

// FetchByID decrypts one credential. The tenant join makes a foreign
// credential look exactly like a missing one; a row whose secret does not
// decrypt is an error, never an empty secret.
func (r *PostgresCredentialRepository) FetchByID(ctx context.Context, tenant kernel.TenantScope, id kernel.CredentialID) (*suppliers.Credential, error) {
	var row credentialRow
	query := `
		SELECT id, tenant_id, provider, name,
		       pgp_sym_decrypt(secret_enc, $3) AS secret_plain,
		       endpoint, model_configs, is_active, last_used_at,
		       created_at, updated_at
		FROM provider_credentials
		WHERE id = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &row, query, id.String(), tenant.TenantID().String(), r.key)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, suppliers.ErrCredentialNotFound()
		}
		return nil, suppliers.ErrDecryptFailed(err)
	}
	if !row.SecretPlain.Valid || row.SecretPlain.String == "" {
		return nil, suppliers.ErrDecryptFailed(sql.ErrNoRows).
			WithDetail("credential_id", id.String())
	}

	return row.toDomain()
}

// ListByTenant returns the tenant's credentials ordered by creation time.
// Secrets are decrypted only when asked for.
func (r *PostgresCredentialRepository) ListByTenant(ctx context.Context, tenant kernel.TenantScope, includeSecrets bool) ([]*suppliers.Credential, error) {
	secretExpr := `NULL AS secret_plain`
	args := []interface{}{tenant.TenantID().String()}
	if includeSecrets {
		secretExpr = `pgp_sym_decrypt(secret_enc, $2) AS secret_plain`
		args = append(args, r.key)
	}

	query := `
		SELECT id, tenant_id, provider, name, ` + secretExpr + `,
		       endpoint, model_configs, is_active, last_used_at,
		       created_at, updated_at
		FROM provider_credentials
		WHERE tenant_id = $1
		ORDER BY created_at ASC`

	var rows []credentialRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errx.Wrap(err, "failed to list credentials", errx.TypeInternal).
			WithDetail("tenant_id", tenant.TenantID().String())
	}

	out := make([]*suppliers.Credential, 0, len(rows))
	for _, row := range rows {
		if includeSecrets && (!row.SecretPlain.Valid || row.SecretPlain.String == "") {
			return nil, suppliers.ErrDecryptFailed(sql.ErrNoRows).
				WithDetail("credential_id", row.ID)
		}
		cred, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, nil
}

// TouchUsed stamps last_used_at.
func (r *PostgresCredentialRepository) TouchUsed(ctx context.Context, id kernel.CredentialID) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE provider_credentials SET last_used_at = NOW() WHERE id = $1`,
		id.String(),
	); err != nil {
		return errx.Wrap(err, "failed to touch credential", errx.TypeInternal)
	}
	return nil
}
