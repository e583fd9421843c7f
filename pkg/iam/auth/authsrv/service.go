package authsrv

import (
	"context"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/auth"
	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/iam/tenant"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/logx"
)

// lockoutDuration is how long an account stays locked after exhausting its
// failed-login budget. IP-level banning is the policy engine's job; this is
// the per-account complement.
const lockoutDuration = 15 * time.Minute

// Orchestrator runs the credential lifecycle end to end: login, refresh,
// logout, and the session management surface. Rate limiting happens in
// middleware before any of this is reached.
type Orchestrator struct {
	users    user.Directory
	userRepo user.Repository
	tenants  tenant.Repository
	tokens   token.Service
	sessions auth.Sessions
	policies auth.Policies
	limits   auth.Limits

	maxLoginAttempts int
}

// NewOrchestrator wires the orchestrator. A nil limits skips the login
// window reset, for callers that do not rate limit.
func NewOrchestrator(
	users user.Directory,
	userRepo user.Repository,
	tenants tenant.Repository,
	tokens token.Service,
	sessions auth.Sessions,
	policies auth.Policies,
	limits auth.Limits,
	maxLoginAttempts int,
) *Orchestrator {
	if maxLoginAttempts <= 0 {
		maxLoginAttempts = 5
	}
	return &Orchestrator{
		users:            users,
		userRepo:         userRepo,
		tenants:          tenants,
		tokens:           tokens,
		sessions:         sessions,
		policies:         policies,
		limits:           limits,
		maxLoginAttempts: maxLoginAttempts,
	}
}

// Login authenticates a credential pair and opens a session. Unknown
// identifiers and wrong passwords return the same error; every mismatch
// feeds the account lockout counter and the policy engine's per-IP counter.
func (o *Orchestrator) Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error) {
	if creds.Identifier == "" || creds.Password == "" {
		return nil, auth.ErrMissingFields()
	}

	if err := o.policies.AdmitIP(ctx, creds.IP); err != nil {
		return nil, err
	}

	u, err := o.users.Lookup(ctx, creds.Identifier)
	if err != nil {
		if errx.HasCode(err, user.CodeUserNotFound) {
			o.policies.RecordLoginFailure(ctx, creds.IP)
			return nil, auth.ErrInvalidCredentials()
		}
		return nil, err
	}

	t, err := o.tenants.FindByID(ctx, u.TenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive() {
		return nil, tenant.ErrTenantSuspended()
	}

	if u.IsLocked() {
		return nil, user.ErrAccountLocked()
	}
	if !u.IsActive {
		return nil, user.ErrAccountDisabled()
	}

	if err := o.users.VerifyPassword(ctx, u.ID, u.TenantID, creds.Password); err != nil {
		o.registerMismatch(ctx, u, creds.IP)
		return nil, auth.ErrInvalidCredentials()
	}

	snap, err := o.users.Snapshot(ctx, u.ID, u.TenantID)
	if err != nil {
		return nil, err
	}

	sess, err := o.sessions.Create(ctx, u.ID, u.TenantID, creds.IP, creds.UserAgent)
	if err != nil {
		return nil, err
	}

	pair, err := o.tokens.MintPair(snap, sess.ID.String())
	if err != nil {
		// The session is useless without tokens; close it again.
		o.sessions.Terminate(ctx, sess.ID, "token minting failed")
		return nil, err
	}

	if err := o.sessions.Bind(ctx, sess.ID, pair.AccessJTI, pair.RefreshJTI); err != nil {
		logx.WithError(err).WithField("session_id", sess.ID.String()).
			Warn("failed to bind tokens to session")
	}

	if err := o.userRepo.ResetFailedLogins(ctx, u.ID); err != nil {
		logx.WithError(err).WithField("user_id", u.ID.String()).
			Warn("failed to reset login counter")
	}
	o.policies.ClearLoginFailures(ctx, creds.IP)
	if o.limits != nil {
		if err := o.limits.ResetLoginWindow(ctx, creds.IP); err != nil {
			logx.WithError(err).WithField("ip", creds.IP).
				Warn("failed to reset login rate window")
		}
	}
	o.users.TouchLastLogin(ctx, u.ID)

	profile, err := o.users.GetProfile(ctx, u.ID, u.TenantID)
	if err != nil {
		return nil, err
	}

	logx.WithFields(map[string]interface{}{
		"user_id":    u.ID.String(),
		"tenant_id":  u.TenantID.String(),
		"session_id": sess.ID.String(),
		"ip":         creds.IP,
	}).Info("login succeeded")

	return &auth.LoginResult{Pair: pair, User: profile}, nil
}

// Refresh rotates a refresh token against a freshly loaded identity, so a
// deactivated account cannot keep itself alive through rotation.
func (o *Orchestrator) Refresh(ctx context.Context, refreshToken string) (*token.Pair, error) {
	claims, err := o.tokens.Verify(ctx, refreshToken, token.KindRefresh)
	if err != nil {
		return nil, err
	}

	snap, err := o.users.Snapshot(ctx, claims.UserID(), claims.TenantID)
	if err != nil {
		if errx.HasCode(err, user.CodeUserNotFound) {
			return nil, auth.ErrInvalidCredentials()
		}
		return nil, err
	}
	if !snap.IsActive {
		return nil, user.ErrAccountDisabled()
	}

	return o.tokens.Refresh(ctx, refreshToken, snap)
}

// Logout revokes whatever the client presents and ends the bound session.
// An absent or already-dead token is not an error; the client's intent is
// honored regardless.
func (o *Orchestrator) Logout(ctx context.Context, tokenString string) {
	if tokenString == "" {
		return
	}

	for _, kind := range []token.Kind{token.KindAccess, token.KindRefresh} {
		claims, err := o.tokens.Verify(ctx, tokenString, kind)
		if err != nil {
			continue
		}
		if claims.SessionID != "" {
			if err := o.sessions.Terminate(ctx, kernel.NewSessionID(claims.SessionID), "logout"); err != nil {
				logx.WithError(err).WithField("session_id", claims.SessionID).
					Warn("failed to terminate session at logout")
			}
			return
		}
		break
	}

	// Fall back to bare revocation for tokens with no live session.
	o.tokens.Revoke(ctx, tokenString, "logout")
}

// Profile returns the redacted profile of an authenticated principal.
func (o *Orchestrator) Profile(ctx context.Context, p *kernel.Principal) (*user.Profile, error) {
	return o.users.GetProfile(ctx, p.UserID, p.TenantID)
}

// Sessions lists the principal's live sessions.
func (o *Orchestrator) Sessions(ctx context.Context, p *kernel.Principal, current kernel.SessionID) ([]session.View, error) {
	return o.sessions.List(ctx, p.UserID, current)
}

// EndSession terminates one of the principal's sessions. Terminating a
// session the principal does not own is reported as not found.
func (o *Orchestrator) EndSession(ctx context.Context, p *kernel.Principal, id kernel.SessionID) error {
	views, err := o.sessions.List(ctx, p.UserID, "")
	if err != nil {
		return err
	}
	for _, v := range views {
		if v.ID == id {
			return o.sessions.Terminate(ctx, id, "terminated by owner")
		}
	}
	return session.ErrSessionNotFound()
}

// EndOtherSessions terminates everything but the caller's current session.
func (o *Orchestrator) EndOtherSessions(ctx context.Context, p *kernel.Principal, current kernel.SessionID) (int, error) {
	return o.sessions.TerminateAll(ctx, p.UserID, current, "terminated by owner")
}

// registerMismatch records a failed password attempt on both counters and
// locks the account when its budget is spent.
func (o *Orchestrator) registerMismatch(ctx context.Context, u *user.User, ip string) {
	o.policies.RecordLoginFailure(ctx, ip)

	count, err := o.userRepo.RecordFailedLogin(ctx, u.ID)
	if err != nil {
		logx.WithError(err).WithField("user_id", u.ID.String()).
			Warn("failed to record login failure")
		return
	}

	if count >= o.maxLoginAttempts {
		until := time.Now().Add(lockoutDuration)
		if err := o.userRepo.SetLockout(ctx, u.ID, &until); err != nil {
			logx.WithError(err).WithField("user_id", u.ID.String()).
				Warn("failed to lock account")
			return
		}
		logx.WithFields(map[string]interface{}{
			"user_id":  u.ID.String(),
			"failures": count,
		}).Warn("account locked after repeated login failures")
	}
}
