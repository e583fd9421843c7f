package user

import (
	"context"
	"time"

	"github.com/axonlabs/axongate/pkg/kernel"
)

// Repository defines the contract for user persistence. Reads of
// tenant-owned rows always present the tenant id; FindByIdentifier is the
// single login-time exception and is documented as such.
type Repository interface {
	// FindByIdentifier resolves a login identifier (email or username)
	// without a tenant hint. Emails are unique across the platform.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)

	FindByID(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID) (*User, error)
	Save(ctx context.Context, u User) error
	UpdateLastLogin(ctx context.Context, id kernel.UserID) error
	RecordFailedLogin(ctx context.Context, id kernel.UserID) (int, error)
	ResetFailedLogins(ctx context.Context, id kernel.UserID) error
	SetLockout(ctx context.Context, id kernel.UserID, until *time.Time) error
}

// PasswordHasher defines the contract for password operations, so hashing
// can be swapped or mocked in tests.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Directory is the identity surface other components consume: profile
// lookup and constant-time password verification. It never exposes hashes.
type Directory interface {
	Lookup(ctx context.Context, identifier string) (*User, error)
	GetProfile(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID) (*Profile, error)
	VerifyPassword(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID, plaintext string) error
	Snapshot(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID) (*Snapshot, error)
	TouchLastLogin(ctx context.Context, id kernel.UserID)
}
