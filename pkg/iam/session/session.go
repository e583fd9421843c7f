package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
)

// Session is one authenticated device presence. A session outlives token
// rotation: the bound jtis change on every refresh while the session id
// stays stable, which is what lets revocation find every live token.
type Session struct {
	ID       kernel.SessionID `json:"id"`
	UserID   kernel.UserID    `json:"user_id"`
	TenantID kernel.TenantID  `json:"tenant_id"`

	IP        string `json:"ip"`
	UserAgent string `json:"user_agent"`

	AccessJTI  string `json:"access_jti"`
	RefreshJTI string `json:"refresh_jti"`

	CreatedAt  time.Time `json:"created_at"`
	LastSeenAt time.Time `json:"last_seen_at"`

	// IPChanges records when the observed client IP differed from the one
	// bound to the session, newest last, capped at a handful of entries.
	IPChanges []time.Time `json:"ip_changes,omitempty"`

	Suspicious bool `json:"suspicious"`
}

// Valid reports whether a decoded record carries every field a session
// cannot function without. Records failing this are treated as corrupt and
// dropped rather than half-trusted.
func (s *Session) Valid() bool {
	return !s.ID.IsEmpty() &&
		!s.UserID.IsEmpty() &&
		!s.TenantID.IsEmpty() &&
		!s.CreatedAt.IsZero() &&
		!s.LastSeenAt.IsZero()
}

// IdleFor returns how long the session has gone without a touch.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastSeenAt)
}

// Age returns time since creation.
func (s *Session) Age(now time.Time) time.Duration {
	return now.Sub(s.CreatedAt)
}

// RecentIPChanges counts changes inside the window ending at now.
func (s *Session) RecentIPChanges(now time.Time, window time.Duration) int {
	n := 0
	for _, t := range s.IPChanges {
		if now.Sub(t) <= window {
			n++
		}
	}
	return n
}

// Activity is one audit entry on a session's bounded activity trail.
type Activity struct {
	At     time.Time `json:"at"`
	Kind   string    `json:"kind"`
	IP     string    `json:"ip,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// View is the redacted listing shape returned to session owners. Bound jtis
// never leave the service.
type View struct {
	ID         kernel.SessionID `json:"id"`
	IP         string           `json:"ip"`
	UserAgent  string           `json:"user_agent"`
	CreatedAt  time.Time        `json:"created_at"`
	LastSeenAt time.Time        `json:"last_seen_at"`
	Current    bool             `json:"current"`
	Suspicious bool             `json:"suspicious"`
}

// UASimilarity is the Jaccard similarity of the two user-agent strings
// tokenized on non-alphanumeric runs, in [0, 1]. Two empty strings are
// identical; one empty string matches nothing.
func UASimilarity(a, b string) float64 {
	ta, tb := uaTokens(a), uaTokens(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inter := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

func uaTokens(ua string) map[string]struct{} {
	tokens := strings.FieldsFunc(strings.ToLower(ua), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})

	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("session")

var (
	CodeSessionNotFound   = ErrRegistry.Register(3007, errx.TypeNotFound, http.StatusNotFound, "Session not found")
	CodeSessionExpired    = ErrRegistry.Register(2014, errx.TypeAuthentication, http.StatusUnauthorized, "Session expired")
	CodeSessionSuspicious = ErrRegistry.Register(2015, errx.TypeAuthentication, http.StatusUnauthorized, "Session terminated due to suspicious activity")
	CodeCorruptRecord     = ErrRegistry.Register(5006, errx.TypeInternal, http.StatusInternalServerError, "Corrupt session record")
)

func ErrSessionNotFound() *errx.Error   { return ErrRegistry.New(CodeSessionNotFound) }
func ErrSessionExpired() *errx.Error    { return ErrRegistry.New(CodeSessionExpired) }
func ErrSessionSuspicious() *errx.Error { return ErrRegistry.New(CodeSessionSuspicious) }
func ErrCorruptRecord(cause error) *errx.Error {
	return ErrRegistry.NewWithCause(CodeCorruptRecord, cause)
}
