package tenant

import (
	"context"

	"github.com/axonlabs/axongate/pkg/kernel"
)

// Repository defines the contract for tenant persistence
type Repository interface {
	FindByID(ctx context.Context, id kernel.TenantID) (*Tenant, error)
	FindBySlug(ctx context.Context, slug string) (*Tenant, error)
	Save(ctx context.Context, t Tenant) error
	UpdateStatus(ctx context.Context, id kernel.TenantID, status Status) error
}
