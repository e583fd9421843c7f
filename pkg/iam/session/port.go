package session

import (
	"context"
	"time"

	"github.com/axonlabs/axongate/pkg/kernel"
)

// Store is the session persistence port. Implementations own the codec and
// the per-user index; corrupt records surface as ErrCorruptRecord and must
// never be returned half-decoded.
type Store interface {
	Save(ctx context.Context, s *Session) error
	Get(ctx context.Context, id kernel.SessionID) (*Session, error)
	Delete(ctx context.Context, id kernel.SessionID) error

	// ListForUser returns the user's live sessions oldest-first. Corrupt or
	// dangling index entries are pruned in passing, not reported.
	ListForUser(ctx context.Context, userID kernel.UserID) ([]*Session, error)

	// Rebind atomically swaps the bound jtis, returning the previous ones.
	Rebind(ctx context.Context, id kernel.SessionID, accessJTI, refreshJTI string) (oldAccess, oldRefresh string, err error)

	AppendActivity(ctx context.Context, id kernel.SessionID, a Activity) error
	Activities(ctx context.Context, id kernel.SessionID, limit int) ([]Activity, error)

	// Sweep prunes index entries whose records have expired or gone
	// corrupt. Expiry itself is the store's TTLs; the sweep is hygiene.
	Sweep(ctx context.Context) error
}

// TokenRevoker is the slice of the token service the registry needs to kill
// a session's bound tokens. Declared here so session does not import the
// token service package.
type TokenRevoker interface {
	RevokeJTI(ctx context.Context, jti, reason string, exp time.Time) bool
}
