package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
)

// Scope names one admission dimension. Scopes are evaluated in declaration
// order; the first denial wins.
type Scope string

const (
	ScopeGlobal   Scope = "Global"
	ScopeIP       Scope = "IP"
	ScopeUser     Scope = "User"
	ScopeEndpoint Scope = "Endpoint"
)

// Decision is the outcome of one scope's admission check.
type Decision struct {
	Scope     Scope
	Allowed   bool
	Limit     int
	Current   int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns the seconds a denied caller should wait.
func (d Decision) RetryAfter() int {
	secs := int(time.Until(d.ResetAt).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Request carries the identity facets the limiter keys on.
type Request struct {
	IP     string
	UserID string
	Role   string
	Method string
	Path   string
}

// Store is the sliding-window primitive: one atomic
// evict-count-insert-expire round per call.
type Store interface {
	// Admit evicts members older than the horizon, then inserts the
	// request timestamp unless the window already holds limit members.
	// The returned count includes the current request when admitted.
	Admit(ctx context.Context, key string, limit int, horizon time.Duration) (allowed bool, count int, err error)

	// Reset drops the window for one scope key. A missing key is a no-op.
	Reset(ctx context.Context, key string) error
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("ratelimit")

var CodeRateLimited = ErrRegistry.Register(1005, errx.TypeRateLimit, http.StatusTooManyRequests, "Rate limit exceeded")

// ErrRateLimited builds the structured denial carrying the denying scope and
// the retry horizon.
func ErrRateLimited(d Decision) *errx.Error {
	return ErrRegistry.New(CodeRateLimited).
		WithDetail("scope", string(d.Scope)).
		WithDetail("limit", d.Limit).
		WithDetail("current", d.Current).
		WithDetail("retry_after", d.RetryAfter())
}
