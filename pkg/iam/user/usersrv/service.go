package usersrv

import (
	"context"

	"github.com/axonlabs/axongate/pkg/iam/role"
	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/logx"
)

// DirectoryService implements user.Directory on top of the user and role
// repositories. It is the only component that ever touches password hashes;
// nothing above this layer sees them.
type DirectoryService struct {
	users  user.Repository
	roles  role.Repository
	hasher user.PasswordHasher
}

// NewDirectoryService wires the directory.
func NewDirectoryService(users user.Repository, roles role.Repository, hasher user.PasswordHasher) *DirectoryService {
	return &DirectoryService{users: users, roles: roles, hasher: hasher}
}

// Lookup resolves a login identifier to a user record.
func (s *DirectoryService) Lookup(ctx context.Context, identifier string) (*user.User, error) {
	return s.users.FindByIdentifier(ctx, identifier)
}

// GetProfile returns the redacted profile for a tenant-scoped user.
func (s *DirectoryService) GetProfile(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID) (*user.Profile, error) {
	u, err := s.users.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	r, err := s.roles.FindByID(ctx, u.RoleID)
	if err != nil {
		return nil, err
	}

	return &user.Profile{
		ID:            u.ID,
		TenantID:      u.TenantID,
		Email:         u.Email,
		Username:      u.Username,
		Role:          r.Name,
		Permissions:   r.Permissions,
		EmailVerified: u.EmailVerified,
		MFAEnabled:    u.MFAEnabled,
		LastLoginAt:   u.LastLoginAt,
	}, nil
}

// VerifyPassword performs the adaptive-cost constant-time check. The hash
// never leaves this method.
func (s *DirectoryService) VerifyPassword(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID, plaintext string) error {
	u, err := s.users.FindByID(ctx, id, tenantID)
	if err != nil {
		return err
	}

	if err := s.hasher.Compare(u.PasswordHash, plaintext); err != nil {
		return user.ErrRegistry.NewWithCause(user.CodePasswordMismatch, err)
	}
	return nil
}

// Snapshot builds the token-minting view of a user.
func (s *DirectoryService) Snapshot(ctx context.Context, id kernel.UserID, tenantID kernel.TenantID) (*user.Snapshot, error) {
	u, err := s.users.FindByID(ctx, id, tenantID)
	if err != nil {
		return nil, err
	}

	r, err := s.roles.FindByID(ctx, u.RoleID)
	if err != nil {
		return nil, err
	}

	return &user.Snapshot{
		UserID:      u.ID,
		TenantID:    u.TenantID,
		Email:       u.Email,
		Role:        r.Name,
		Permissions: r.Permissions,
		IsActive:    u.IsActive,
		MFAVerified: u.MFAEnabled && u.EmailVerified,
	}, nil
}

// TouchLastLogin is best-effort: failure is logged, never surfaced.
func (s *DirectoryService) TouchLastLogin(ctx context.Context, id kernel.UserID) {
	if err := s.users.UpdateLastLogin(ctx, id); err != nil {
		logx.WithError(err).WithField("user_id", id.String()).Warn("failed to update last login")
	}
}
