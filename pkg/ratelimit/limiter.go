package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/axonlabs/axongate/pkg/config"
	"github.com/axonlabs/axongate/pkg/logx"
)

// Limiter evaluates every configured scope for one request. Evaluation
// short-circuits on the first denial so a blocked caller burns at most one
// slot in each scope checked before the denying one.
type Limiter struct {
	store Store
	cfg   config.RateLimitConfig
}

// NewLimiter wires the limiter over a sliding-window store.
func NewLimiter(store Store, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{store: store, cfg: cfg}
}

// Evaluate runs the scopes in order: global, per-IP, per-user (when
// authenticated), per-endpoint. The returned decisions cover every scope
// that was checked; when denied is non-nil it is the first denying scope.
//
// Store failures admit the request. A broken redis must degrade the limiter,
// not the whole API.
func (l *Limiter) Evaluate(ctx context.Context, req Request) (decisions []Decision, denied *Decision) {
	type check struct {
		scope Scope
		key   string
		limit config.ScopeLimit
	}

	checks := []check{
		{ScopeGlobal, "global", l.cfg.Global},
		{ScopeIP, fmt.Sprintf("ip:%s", req.IP), l.cfg.PerIP},
	}

	if req.UserID != "" {
		userLimit := l.cfg.PerUser
		if mult, ok := l.cfg.RoleMultipliers[req.Role]; ok && mult > 0 {
			userLimit.Limit = int(float64(userLimit.Limit) * mult)
		}
		checks = append(checks, check{ScopeUser, fmt.Sprintf("user:%s", req.UserID), userLimit})
	}

	checks = append(checks, check{
		ScopeEndpoint,
		fmt.Sprintf("endpoint:%s:%s %s", endpointSubject(req), req.Method, req.Path),
		l.endpointLimit(req),
	})

	for _, c := range checks {
		if c.limit.Limit <= 0 {
			continue
		}

		allowed, count, err := l.store.Admit(ctx, c.key, c.limit.Limit, c.limit.Window)
		if err != nil {
			logx.WithError(err).WithField("scope", string(c.scope)).
				Warn("rate limit store unavailable, admitting request")
			continue
		}

		d := Decision{
			Scope:     c.scope,
			Allowed:   allowed,
			Limit:     c.limit.Limit,
			Current:   count,
			Remaining: max(c.limit.Limit-count, 0),
			ResetAt:   time.Now().Add(c.limit.Window),
		}
		decisions = append(decisions, d)

		if !allowed {
			denied = &decisions[len(decisions)-1]
			return decisions, denied
		}
	}

	return decisions, nil
}

// ResetEndpoint clears the endpoint window the request would be admitted
// under. The auth flow calls it after a successful login so earlier failed
// attempts from the same address stop counting against the caller.
func (l *Limiter) ResetEndpoint(ctx context.Context, req Request) error {
	key := fmt.Sprintf("endpoint:%s:%s %s", endpointSubject(req), req.Method, req.Path)
	return l.store.Reset(ctx, key)
}

// endpointLimit resolves "METHOD /path" overrides, falling back to the
// default endpoint limit.
func (l *Limiter) endpointLimit(req Request) config.ScopeLimit {
	if override, ok := l.cfg.EndpointOverrides[fmt.Sprintf("%s %s", req.Method, req.Path)]; ok {
		return override
	}
	return l.cfg.Endpoint
}

// endpointSubject keys the endpoint window per user when authenticated and
// per IP otherwise, so anonymous traffic cannot exhaust a user's budget.
func endpointSubject(req Request) string {
	if req.UserID != "" {
		return "user:" + req.UserID
	}
	return "ip:" + req.IP
}
