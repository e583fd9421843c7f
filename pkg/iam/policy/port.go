package policy

import (
	"context"
	"time"
)

// DocumentStore persists the single policy document.
type DocumentStore interface {
	// Load returns the stored document, initializing the store with
	// Defaults() when empty. Concurrent first reads converge on one
	// defaults object.
	Load(ctx context.Context) (*Document, error)
	Save(ctx context.Context, doc *Document) error
}

// BanStore tracks failed-login bursts and the auto-ban table.
type BanStore interface {
	// RecordFailure bumps the per-IP counter and, at threshold, converts
	// it into a ban entry. The counter dies one hour after its first
	// increment regardless of later failures.
	RecordFailure(ctx context.Context, ip string, threshold int, banFor time.Duration) (banned bool, err error)

	// BannedUntil reports whether the ip has an active ban and when it
	// lifts.
	BannedUntil(ctx context.Context, ip string) (bool, time.Time, error)

	// ClearFailures drops the ip's failure counter without touching any
	// active ban. Called after a successful login.
	ClearFailures(ctx context.Context, ip string) error

	Unban(ctx context.Context, ip string) error
}
