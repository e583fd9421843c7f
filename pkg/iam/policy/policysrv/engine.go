package policysrv

import (
	"context"
	"net"
	"time"

	"github.com/axonlabs/axongate/pkg/iam/policy"
	"github.com/axonlabs/axongate/pkg/logx"
)

// Engine is the policy decision point: password checks, IP admission, and
// the failed-login auto-ban loop, all driven by the stored document.
type Engine struct {
	docs policy.DocumentStore
	bans policy.BanStore
}

// NewEngine wires the engine.
func NewEngine(docs policy.DocumentStore, bans policy.BanStore) *Engine {
	return &Engine{docs: docs, bans: bans}
}

// Document returns the current policy, seeding defaults when absent.
func (e *Engine) Document(ctx context.Context) (*policy.Document, error) {
	return e.docs.Load(ctx)
}

// Update validates and persists a replacement document.
func (e *Engine) Update(ctx context.Context, doc *policy.Document) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	doc.UpdatedAt = time.Now()
	return e.docs.Save(ctx, doc)
}

// CheckPassword validates a candidate against the stored password policy.
// The report is advisory; callers decide whether Valid gates the operation.
func (e *Engine) CheckPassword(ctx context.Context, pw string, userInputs ...string) (*policy.PasswordReport, error) {
	doc, err := e.docs.Load(ctx)
	if err != nil {
		return nil, err
	}
	return policy.CheckPassword(pw, doc.Password, userInputs...), nil
}

// AdmitIP checks the caller's IP against deny list, exclusive allow list,
// and the auto-ban table, in that order. A store failure admits: a broken
// redis must not lock out the whole fleet.
func (e *Engine) AdmitIP(ctx context.Context, ip string) error {
	doc, err := e.docs.Load(ctx)
	if err != nil {
		logx.WithError(err).Warn("policy document unavailable, admitting IP")
		return nil
	}

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return policy.ErrIPNotAllowed().WithDetail("reason", "unparseable address")
	}

	if matchesAny(parsed, doc.IP.DenyCIDRs) {
		return policy.ErrIPNotAllowed().WithDetail("reason", "deny list")
	}
	if doc.IP.AllowListExclusive && len(doc.IP.AllowCIDRs) > 0 && !matchesAny(parsed, doc.IP.AllowCIDRs) {
		return policy.ErrIPNotAllowed().WithDetail("reason", "outside allow list")
	}

	banned, until, err := e.bans.BannedUntil(ctx, ip)
	if err != nil {
		logx.WithError(err).WithField("ip", ip).Warn("ban table unavailable, admitting IP")
		return nil
	}
	if banned {
		return policy.ErrIPBanned(until)
	}
	return nil
}

// RecordLoginFailure feeds the auto-ban counter after a failed login.
// Returns true when this failure tripped a ban.
func (e *Engine) RecordLoginFailure(ctx context.Context, ip string) bool {
	doc, err := e.docs.Load(ctx)
	if err != nil {
		logx.WithError(err).Warn("policy document unavailable, skipping failure count")
		return false
	}
	if !doc.Lockout.AutoBanEnabled {
		return false
	}

	banFor := time.Duration(doc.Lockout.BanMinutes) * time.Minute
	banned, err := e.bans.RecordFailure(ctx, ip, doc.Lockout.MaxFailed, banFor)
	if err != nil {
		logx.WithError(err).WithField("ip", ip).Warn("failed to record login failure")
		return false
	}

	if banned {
		logx.WithFields(map[string]interface{}{
			"ip":          ip,
			"ban_minutes": doc.Lockout.BanMinutes,
		}).Warn("ip auto-banned after repeated login failures")
	}
	return banned
}

// ClearLoginFailures drops the ip's failure counter after a successful
// login, so stale failures do not accumulate toward a ban across sessions.
func (e *Engine) ClearLoginFailures(ctx context.Context, ip string) {
	if err := e.bans.ClearFailures(ctx, ip); err != nil {
		logx.WithError(err).WithField("ip", ip).Warn("failed to clear failure counter")
	}
}

// Unban lifts an auto-ban, for admin intervention.
func (e *Engine) Unban(ctx context.Context, ip string) error {
	return e.bans.Unban(ctx, ip)
}

// matchesAny reports whether ip falls inside any of the CIDR entries.
// Entries that do not parse are skipped; Validate rejects them on write, so
// a bad entry here means manual store edits.
func matchesAny(ip net.IP, cidrs []string) bool {
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
