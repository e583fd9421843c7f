package tenant

import (
	"net/http"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
)

// Status is the tenant lifecycle state
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusInactive  Status = "inactive"
)

// Tenant is the top-level isolation boundary. Every user, credential, and
// session belongs to exactly one tenant.
type Tenant struct {
	ID        kernel.TenantID `db:"id" json:"id"`
	Slug      string          `db:"slug" json:"slug"`
	Name      string          `db:"name" json:"name"`
	Status    Status          `db:"status" json:"status"`
	Plan      string          `db:"plan" json:"plan"`
	UserCap   int             `db:"user_cap" json:"user_cap"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the tenant may authenticate users
func (t *Tenant) IsActive() bool {
	return t.Status == StatusActive
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("tenant")

var (
	CodeTenantNotFound  = ErrRegistry.Register(3002, errx.TypeNotFound, http.StatusNotFound, "Tenant not found")
	CodeTenantSuspended = ErrRegistry.Register(2008, errx.TypeAuthorization, http.StatusForbidden, "Tenant is suspended")
)

func ErrTenantNotFound() *errx.Error  { return ErrRegistry.New(CodeTenantNotFound) }
func ErrTenantSuspended() *errx.Error { return ErrRegistry.New(CodeTenantSuspended) }
