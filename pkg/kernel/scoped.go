package kernel

import "errors"

// ErrMissingTenantScope is returned when a tenant-owned value is constructed
// or accessed without presenting a tenant id. This is a programming error at
// the call site, not a user-facing condition, and must never be bypassed.
var ErrMissingTenantScope = errors.New("kernel: tenant scope is required")

// Scoped pairs a tenant id with a value. Repositories for tenant-owned data
// accept and return Scoped values so that no data-access call can be written
// without naming the tenant it operates for.
type Scoped[T any] struct {
	tenantID TenantID
	value    T
}

// NewScoped binds a value to a tenant. An empty tenant id is rejected.
func NewScoped[T any](tenantID TenantID, value T) (Scoped[T], error) {
	if tenantID.IsEmpty() {
		return Scoped[T]{}, ErrMissingTenantScope
	}
	return Scoped[T]{tenantID: tenantID, value: value}, nil
}

// MustScoped is NewScoped for call sites where the tenant id is statically
// known to be present; it panics on an empty tenant.
func MustScoped[T any](tenantID TenantID, value T) Scoped[T] {
	s, err := NewScoped(tenantID, value)
	if err != nil {
		panic(err)
	}
	return s
}

// TenantScope is a bare proof of tenant scope with no payload, for calls
// that need the tenant named but carry their data separately.
type TenantScope = Scoped[struct{}]

// NewTenantScope binds a scope proof to a tenant.
func NewTenantScope(tenantID TenantID) (TenantScope, error) {
	return NewScoped(tenantID, struct{}{})
}

// TenantID returns the owning tenant
func (s Scoped[T]) TenantID() TenantID { return s.tenantID }

// Value returns the wrapped value
func (s Scoped[T]) Value() T { return s.value }
