package user

import (
	"net/http"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
)

// User is an account scoped to one tenant. The password is stored only as a
// salted adaptive-cost hash and is never serialized.
type User struct {
	ID            kernel.UserID   `db:"id" json:"id"`
	TenantID      kernel.TenantID `db:"tenant_id" json:"tenant_id"`
	Email         string          `db:"email" json:"email"`
	Username      string          `db:"username" json:"username"`
	PasswordHash  string          `db:"password_hash" json:"-"`
	RoleID        string          `db:"role_id" json:"role_id"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	EmailVerified bool            `db:"email_verified" json:"email_verified"`
	MFAEnabled    bool            `db:"mfa_enabled" json:"mfa_enabled"`
	FailedLogins  int             `db:"failed_logins" json:"-"`
	LockedUntil   *time.Time      `db:"locked_until" json:"-"`
	LastLoginAt   *time.Time      `db:"last_login_at" json:"last_login_at"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// IsLocked reports whether the account is under a temporary lockout
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// Profile is the redacted view returned to clients; no hash, no counters.
type Profile struct {
	ID            kernel.UserID   `json:"id"`
	TenantID      kernel.TenantID `json:"tenant_id"`
	Email         string          `json:"email"`
	Username      string          `json:"username"`
	Role          string          `json:"role"`
	Permissions   []string        `json:"permissions"`
	EmailVerified bool            `json:"email_verified"`
	MFAEnabled    bool            `json:"mfa_enabled"`
	LastLoginAt   *time.Time      `json:"last_login_at,omitempty"`
}

// Snapshot is the point-in-time identity used to mint tokens. Claims minted
// from equal snapshots are identical except for jti and timestamps.
type Snapshot struct {
	UserID      kernel.UserID
	TenantID    kernel.TenantID
	Email       string
	Role        string
	Permissions []string
	IsActive    bool
	MFAVerified bool
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("user")

var (
	CodeUserNotFound    = ErrRegistry.Register(3006, errx.TypeNotFound, http.StatusNotFound, "User not found")
	CodeDuplicateUser   = ErrRegistry.Register(3011, errx.TypeConflict, http.StatusConflict, "User already exists for this tenant")
	CodeAccountDisabled = ErrRegistry.Register(2007, errx.TypeAuthorization, http.StatusForbidden, "Account is disabled")
	CodeAccountLocked   = ErrRegistry.Register(2009, errx.TypeAuthorization, http.StatusForbidden, "Account is temporarily locked")

	// CodePasswordMismatch never crosses the gateway edge; the auth
	// orchestrator folds it into InvalidCredentials to avoid enumeration.
	CodePasswordMismatch = ErrRegistry.Register(2010, errx.TypeAuthentication, http.StatusUnauthorized, "Password mismatch")
)

func ErrUserNotFound() *errx.Error    { return ErrRegistry.New(CodeUserNotFound) }
func ErrDuplicateUser() *errx.Error   { return ErrRegistry.New(CodeDuplicateUser) }
func ErrAccountDisabled() *errx.Error { return ErrRegistry.New(CodeAccountDisabled) }
func ErrAccountLocked() *errx.Error   { return ErrRegistry.New(CodeAccountLocked) }
