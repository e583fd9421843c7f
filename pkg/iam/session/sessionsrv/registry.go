package sessionsrv

import (
	"context"
	"time"

	"github.com/axonlabs/axongate/pkg/config"
	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/google/uuid"
)

// uaSimilarityFloor is the Jaccard score below which a presented user agent
// no longer counts as the same client.
const uaSimilarityFloor = 0.8

// ipChangeWindow and ipChangeLimit bound how often a session's IP may move
// before it is treated as hijacked.
const (
	ipChangeWindow = time.Hour
	ipChangeLimit  = 3
)

// Registry is the session lifecycle service. It owns concurrency caps,
// hijack heuristics, and the binding between sessions and token jtis; it
// also serves as the token service's view onto those bindings.
type Registry struct {
	store   session.Store
	revoker session.TokenRevoker
	cfg     config.SessionConfig
}

// NewRegistry wires the registry. The revoker is attached separately because
// the token service is constructed after the registry.
func NewRegistry(store session.Store, cfg config.SessionConfig) *Registry {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.HardLifetime <= 0 {
		cfg.HardLifetime = 24 * time.Hour
	}
	return &Registry{store: store, cfg: cfg}
}

// SetRevoker attaches the token revocation slice.
func (r *Registry) SetRevoker(rev session.TokenRevoker) {
	r.revoker = rev
}

// Create opens a session for a fresh login, enforcing the concurrency
// policy first: in single-session mode every other session dies; otherwise
// the oldest session is evicted once the cap is reached.
func (r *Registry) Create(ctx context.Context, userID kernel.UserID, tenantID kernel.TenantID, ip, userAgent string) (*session.Session, error) {
	existing, err := r.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if r.cfg.SingleSession {
		for _, old := range existing {
			r.terminate(ctx, old, "superseded by new login")
		}
	} else if len(existing) >= r.cfg.MaxConcurrent {
		// ListForUser is oldest-first, so evict from the front until a
		// slot opens.
		for i := 0; i <= len(existing)-r.cfg.MaxConcurrent; i++ {
			r.terminate(ctx, existing[i], "concurrent session limit")
		}
	}

	now := time.Now()
	sess := &session.Session{
		ID:         kernel.NewSessionID(uuid.NewString()),
		UserID:     userID,
		TenantID:   tenantID,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
	}

	if err := r.store.Save(ctx, sess); err != nil {
		return nil, err
	}

	r.record(ctx, sess.ID, session.Activity{At: now, Kind: "login", IP: ip})
	return sess, nil
}

// Bind attaches the minted token pair to the session.
func (r *Registry) Bind(ctx context.Context, id kernel.SessionID, accessJTI, refreshJTI string) error {
	_, _, err := r.store.Rebind(ctx, id, accessJTI, refreshJTI)
	return err
}

// Validate is the per-request check: liveness, idle and hard timeouts, then
// the hijack heuristics. A passing session is touched in place; a failing
// one is terminated with its tokens before the error returns.
func (r *Registry) Validate(ctx context.Context, id kernel.SessionID, ip, userAgent string) (*session.Session, error) {
	sess, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	if sess.IdleFor(now) > r.cfg.IdleTimeout || sess.Age(now) > r.cfg.HardLifetime {
		r.terminate(ctx, sess, "expired")
		return nil, session.ErrSessionExpired()
	}

	if sess.Suspicious {
		r.terminate(ctx, sess, "previously flagged suspicious")
		return nil, session.ErrSessionSuspicious()
	}

	if userAgent != "" && session.UASimilarity(sess.UserAgent, userAgent) < uaSimilarityFloor {
		r.flagAndKill(ctx, sess, "user agent mismatch")
		return nil, session.ErrSessionSuspicious().WithDetail("reason", "user_agent_mismatch")
	}

	if ip != "" && ip != sess.IP {
		sess.IPChanges = append(sess.IPChanges, now)
		if len(sess.IPChanges) > 10 {
			sess.IPChanges = sess.IPChanges[len(sess.IPChanges)-10:]
		}

		if sess.RecentIPChanges(now, ipChangeWindow) > ipChangeLimit {
			r.flagAndKill(ctx, sess, "excessive ip changes")
			return nil, session.ErrSessionSuspicious().WithDetail("reason", "ip_churn")
		}

		r.record(ctx, sess.ID, session.Activity{
			At: now, Kind: "ip_change", IP: ip,
			Detail: "previous " + sess.IP,
		})
		sess.IP = ip
	}

	sess.LastSeenAt = now
	if err := r.store.Save(ctx, sess); err != nil {
		logx.WithError(err).WithField("session_id", id.String()).Warn("failed to touch session")
	}

	return sess, nil
}

// Terminate ends one session and revokes its bound tokens. Unknown ids are
// a no-op so logout stays idempotent.
func (r *Registry) Terminate(ctx context.Context, id kernel.SessionID, reason string) error {
	sess, err := r.store.Get(ctx, id)
	if err != nil {
		if errx.HasCode(err, session.CodeSessionNotFound) {
			return nil
		}
		return err
	}

	r.terminate(ctx, sess, reason)
	return nil
}

// TerminateAll ends every session of the user except the one named by keep
// (pass an empty id to end them all). Returns the number terminated.
func (r *Registry) TerminateAll(ctx context.Context, userID kernel.UserID, keep kernel.SessionID, reason string) (int, error) {
	sessions, err := r.store.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, sess := range sessions {
		if sess.ID == keep {
			continue
		}
		r.terminate(ctx, sess, reason)
		n++
	}
	return n, nil
}

// List returns the user's live sessions as redacted views, oldest first.
func (r *Registry) List(ctx context.Context, userID kernel.UserID, current kernel.SessionID) ([]session.View, error) {
	sessions, err := r.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]session.View, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, session.View{
			ID:         sess.ID,
			IP:         sess.IP,
			UserAgent:  sess.UserAgent,
			CreatedAt:  sess.CreatedAt,
			LastSeenAt: sess.LastSeenAt,
			Current:    sess.ID == current,
			Suspicious: sess.Suspicious,
		})
	}
	return views, nil
}

// Activities exposes the bounded audit trail of one session.
func (r *Registry) Activities(ctx context.Context, id kernel.SessionID, limit int) ([]session.Activity, error) {
	return r.store.Activities(ctx, id, limit)
}

// JTIsForUser implements the token service's bindings view: both jtis of
// every live session.
func (r *Registry) JTIsForUser(ctx context.Context, userID kernel.UserID) ([]string, error) {
	sessions, err := r.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	jtis := make([]string, 0, len(sessions)*2)
	for _, sess := range sessions {
		if sess.AccessJTI != "" {
			jtis = append(jtis, sess.AccessJTI)
		}
		if sess.RefreshJTI != "" {
			jtis = append(jtis, sess.RefreshJTI)
		}
	}
	return jtis, nil
}

// Rebind implements the token service's bindings view for refresh rotation.
func (r *Registry) Rebind(ctx context.Context, sessionID, accessJTI, refreshJTI string) (string, error) {
	oldAccess, _, err := r.store.Rebind(ctx, kernel.NewSessionID(sessionID), accessJTI, refreshJTI)
	if err != nil {
		return "", err
	}

	r.record(ctx, kernel.NewSessionID(sessionID), session.Activity{
		At: time.Now(), Kind: "token_refresh",
	})
	return oldAccess, nil
}

// Run sweeps the store on the configured interval until ctx ends. Expired
// records die on their redis TTL; the sweep prunes index entries and
// surfaces corrupt records early.
func (r *Registry) Run(ctx context.Context) {
	interval := r.cfg.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.store.Sweep(ctx); err != nil {
				logx.WithError(err).Warn("session sweep failed")
			}
		}
	}
}

func (r *Registry) terminate(ctx context.Context, sess *session.Session, reason string) {
	exp := time.Now().Add(r.cfg.HardLifetime)
	if r.revoker != nil {
		if sess.AccessJTI != "" {
			r.revoker.RevokeJTI(ctx, sess.AccessJTI, reason, exp)
		}
		if sess.RefreshJTI != "" {
			r.revoker.RevokeJTI(ctx, sess.RefreshJTI, reason, exp)
		}
	}

	if err := r.store.Delete(ctx, sess.ID); err != nil {
		logx.WithError(err).WithField("session_id", sess.ID.String()).Warn("failed to delete session")
	}

	logx.WithFields(map[string]interface{}{
		"session_id": sess.ID.String(),
		"user_id":    sess.UserID.String(),
		"reason":     reason,
	}).Info("session terminated")
}

func (r *Registry) flagAndKill(ctx context.Context, sess *session.Session, reason string) {
	r.record(ctx, sess.ID, session.Activity{At: time.Now(), Kind: "hijack_suspected", Detail: reason})
	sess.Suspicious = true
	r.terminate(ctx, sess, reason)
}

func (r *Registry) record(ctx context.Context, id kernel.SessionID, a session.Activity) {
	if err := r.store.AppendActivity(ctx, id, a); err != nil {
		logx.WithError(err).WithField("session_id", id.String()).Warn("failed to record session activity")
	}
}
