package suppliers

import (
	"context"

	"github.com/axonlabs/axongate/pkg/kernel"
)

// StoreInput is what a create or update persists. The plaintext secret is
// encrypted inside the store; it never reaches a column as-is.
type StoreInput struct {
	Provider     Provider
	Name         string
	Secret       string
	Endpoint     string
	ModelConfigs map[string]string
	IsActive     bool
}

// Repository is the encrypted credential store. Every call takes a tenant
// scope proof: constructing one with an empty tenant id fails, so no data
// access can be written without naming its tenant.
type Repository interface {
	Store(ctx context.Context, tenant kernel.TenantScope, in StoreInput) (*Credential, error)
	Update(ctx context.Context, tenant kernel.TenantScope, id kernel.CredentialID, in StoreInput) (*Credential, error)
	Delete(ctx context.Context, tenant kernel.TenantScope, id kernel.CredentialID) error

	// FetchByID decrypts and returns the credential, or CredentialNotFound
	// when it does not exist or belongs to another tenant. The two cases
	// are indistinguishable on purpose.
	FetchByID(ctx context.Context, tenant kernel.TenantScope, id kernel.CredentialID) (*Credential, error)

	// ListByTenant returns credentials ordered by creation time ascending,
	// decrypting secrets only when includeSecrets is set.
	ListByTenant(ctx context.Context, tenant kernel.TenantScope, includeSecrets bool) ([]*Credential, error)

	// TouchUsed stamps last_used_at; best-effort.
	TouchUsed(ctx context.Context, id kernel.CredentialID) error
}

// Cursor persists the round-robin position per tenant. Best-effort: losing
// the cursor only restarts the rotation.
type Cursor interface {
	Next(ctx context.Context, tenantID kernel.TenantID) (int64, error)
}

// Prober runs one live test against the provider behind a credential.
type Prober interface {
	Probe(ctx context.Context, cred *Credential, kind ProbeKind, model string) *ProbeResult
}
