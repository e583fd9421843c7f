package token

import (
	"context"
	"time"

	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/axonlabs/axongate/pkg/kernel"
)

// Blacklist is the revocation set, keyed by jti. Add is atomic insert-if-
// absent; the boolean reports whether this call inserted the entry, which is
// the gate that makes concurrent refresh single-success.
type Blacklist interface {
	Add(ctx context.Context, jti, reason string, ttl time.Duration) (bool, error)
	Contains(ctx context.Context, jti string) (bool, error)
}

// SessionBindings is the narrow slice of the session registry the token
// service needs: enumerating a user's bound jtis for revoke-all, and
// rebinding a session to a rotated pair.
type SessionBindings interface {
	JTIsForUser(ctx context.Context, userID kernel.UserID) ([]string, error)

	// Rebind swaps the session's bound jtis and returns the previously
	// bound access jti so the caller can revoke it.
	Rebind(ctx context.Context, sessionID, accessJTI, refreshJTI string) (oldAccessJTI string, err error)
}

// Service is the token lifecycle contract consumed by the orchestrator,
// the gateway, and the session registry.
type Service interface {
	Mint(snap *user.Snapshot, kind Kind, sessionID string) (token string, jti string, exp time.Time, err error)
	MintPair(snap *user.Snapshot, sessionID string) (*Pair, error)
	Verify(ctx context.Context, tokenString string, expected Kind) (*Claims, error)
	Revoke(ctx context.Context, tokenString, reason string) bool
	RevokeJTI(ctx context.Context, jti, reason string, exp time.Time) bool
	RevokeAllFor(ctx context.Context, userID kernel.UserID, reason string) int
	Refresh(ctx context.Context, oldRefresh string, snap *user.Snapshot) (*Pair, error)
}
