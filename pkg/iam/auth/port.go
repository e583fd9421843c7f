package auth

import (
	"context"

	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/kernel"
)

// Sessions is the slice of the session registry the orchestrator drives.
type Sessions interface {
	Create(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, ip, userAgent string) (*session.Session, error)
	Bind(ctx context.Context, id kernel.SessionID, accessJTI, refreshJTI string) error
	Terminate(ctx context.Context, id kernel.SessionID, reason string) error
	TerminateAll(ctx context.Context, userID kernel.UserID, keep kernel.SessionID, reason string) (int, error)
	List(ctx context.Context, userID kernel.UserID, current kernel.SessionID) ([]session.View, error)
	Activities(ctx context.Context, id kernel.SessionID, limit int) ([]session.Activity, error)
}

// Policies is the slice of the policy engine consulted at login time.
type Policies interface {
	AdmitIP(ctx context.Context, ip string) error
	RecordLoginFailure(ctx context.Context, ip string) bool
	ClearLoginFailures(ctx context.Context, ip string)
}

// Limits is the slice of the rate limiter the orchestrator clears after a
// successful login: the anonymous window on the login endpoint itself, so a
// user who mistyped a few times does not stay throttled once they get in.
type Limits interface {
	ResetLoginWindow(ctx context.Context, ip string) error
}
