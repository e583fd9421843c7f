package sessionsrv_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/axonlabs/axongate/pkg/config"
	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/iam/session/sessioninfra"
	"github.com/axonlabs/axongate/pkg/iam/session/sessionsrv"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/redis/go-redis/v9"
)

const (
	chromeUA  = "Mozilla/5.0 (X11; Linux x86_64) Chrome/120"
	bumpedUA  = "Mozilla/5.0 (X11; Linux x86_64) Chrome/121"
	foreignUA = "curl/8.4.0"
)

// recordingRevoker collects revoked jtis and the reasons given.
type recordingRevoker struct {
	mu      sync.Mutex
	jtis    []string
	reasons []string
}

func (r *recordingRevoker) RevokeJTI(_ context.Context, jti, reason string, _ time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jtis = append(r.jtis, jti)
	r.reasons = append(r.reasons, reason)
	return true
}

func (r *recordingRevoker) revoked() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.jtis...)
}

func newRegistry(t *testing.T, cfg config.SessionConfig) (*sessionsrv.Registry, session.Store, *recordingRevoker) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := sessioninfra.NewRedisStore(rdb, 24*time.Hour)
	registry := sessionsrv.NewRegistry(store, cfg)
	revoker := &recordingRevoker{}
	registry.SetRevoker(revoker)
	return registry, store, revoker
}

func seedSession(t *testing.T, store session.Store, id string, mutate func(*session.Session)) *session.Session {
	t.Helper()
	now := time.Now()
	sess := &session.Session{
		ID: kernel.NewSessionID(id), UserID: "u1", TenantID: "t1",
		IP: "1.2.3.4", UserAgent: chromeUA,
		AccessJTI: "a-" + id, RefreshJTI: "r-" + id,
		CreatedAt: now, LastSeenAt: now,
	}
	if mutate != nil {
		mutate(sess)
	}
	if err := store.Save(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	return sess
}

// --- Create tests ---

func TestRegistry_CreateAndValidate(t *testing.T) {
	registry, _, _ := newRegistry(t, config.SessionConfig{})
	ctx := context.Background()

	sess, err := registry.Create(ctx, "u1", "t1", "1.2.3.4", chromeUA)
	if err != nil {
		t.Fatal(err)
	}
	if sess.ID.IsEmpty() {
		t.Fatal("created session has no id")
	}

	got, err := registry.Validate(ctx, sess.ID, "1.2.3.4", chromeUA)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != sess.ID {
		t.Fatal("validate returned a different session")
	}
}

func TestRegistry_ConcurrencyCapEvictsOldest(t *testing.T) {
	registry, store, revoker := newRegistry(t, config.SessionConfig{MaxConcurrent: 2})
	ctx := context.Background()

	// The per-user index orders by creation millisecond; space the logins
	// out so the ordering is deterministic.
	first, _ := registry.Create(ctx, "u1", "t1", "1.1.1.1", chromeUA)
	registry.Bind(ctx, first.ID, "a-old", "r-old")
	time.Sleep(5 * time.Millisecond)
	second, _ := registry.Create(ctx, "u1", "t1", "2.2.2.2", chromeUA)
	time.Sleep(5 * time.Millisecond)
	third, err := registry.Create(ctx, "u1", "t1", "3.3.3.3", chromeUA)
	if err != nil {
		t.Fatal(err)
	}

	sessions, err := store.ListForUser(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("cap not enforced, %d sessions live", len(sessions))
	}
	if sessions[0].ID != second.ID || sessions[1].ID != third.ID {
		t.Fatalf("wrong session evicted: %v %v", sessions[0].ID, sessions[1].ID)
	}

	// The evicted session's bound tokens die with it, tagged with the
	// limit as the reason.
	jtis := revoker.revoked()
	if len(jtis) != 2 || jtis[0] != "a-old" || jtis[1] != "r-old" {
		t.Fatalf("evicted session tokens not revoked: %v", jtis)
	}
	revoker.mu.Lock()
	reason := revoker.reasons[0]
	revoker.mu.Unlock()
	if reason != "concurrent session limit" {
		t.Fatalf("eviction reason = %q, want %q", reason, "concurrent session limit")
	}
}

func TestRegistry_SingleSessionMode(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{SingleSession: true})
	ctx := context.Background()

	registry.Create(ctx, "u1", "t1", "1.1.1.1", chromeUA)
	second, err := registry.Create(ctx, "u1", "t1", "2.2.2.2", chromeUA)
	if err != nil {
		t.Fatal(err)
	}

	sessions, _ := store.ListForUser(ctx, "u1")
	if len(sessions) != 1 || sessions[0].ID != second.ID {
		t.Fatalf("single-session mode left %d sessions", len(sessions))
	}
}

// --- Validate tests ---

func TestRegistry_ValidateExpiresIdleSession(t *testing.T) {
	registry, store, revoker := newRegistry(t, config.SessionConfig{IdleTimeout: 10 * time.Minute})
	sess := seedSession(t, store, "s1", func(s *session.Session) {
		s.LastSeenAt = time.Now().Add(-time.Hour)
	})

	_, err := registry.Validate(context.Background(), sess.ID, "1.2.3.4", chromeUA)
	if !errx.HasCode(err, session.CodeSessionExpired) {
		t.Fatalf("expected expired, got %v", err)
	}

	// Expiry terminates: record gone, tokens revoked.
	if _, err := store.Get(context.Background(), sess.ID); !errx.HasCode(err, session.CodeSessionNotFound) {
		t.Fatal("expired session should be deleted")
	}
	if len(revoker.revoked()) != 2 {
		t.Fatalf("bound tokens not revoked: %v", revoker.revoked())
	}
}

func TestRegistry_ValidateKillsOnUserAgentSwap(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	sess := seedSession(t, store, "s1", nil)

	_, err := registry.Validate(context.Background(), sess.ID, "1.2.3.4", foreignUA)
	if !errx.HasCode(err, session.CodeSessionSuspicious) {
		t.Fatalf("expected suspicious, got %v", err)
	}
	if _, err := store.Get(context.Background(), sess.ID); !errx.HasCode(err, session.CodeSessionNotFound) {
		t.Fatal("hijacked session should be terminated")
	}
}

func TestRegistry_ValidateToleratesVersionBump(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	sess := seedSession(t, store, "s1", nil)

	if _, err := registry.Validate(context.Background(), sess.ID, "1.2.3.4", bumpedUA); err != nil {
		t.Fatalf("a browser version bump must not kill the session: %v", err)
	}
}

func TestRegistry_ValidateTracksIPChange(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	sess := seedSession(t, store, "s1", nil)
	ctx := context.Background()

	got, err := registry.Validate(ctx, sess.ID, "5.6.7.8", chromeUA)
	if err != nil {
		t.Fatal(err)
	}
	if got.IP != "5.6.7.8" {
		t.Fatalf("session should follow the new IP, got %s", got.IP)
	}
	if len(got.IPChanges) != 1 {
		t.Fatalf("change not recorded: %v", got.IPChanges)
	}

	activities, err := registry.Activities(ctx, sess.ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(activities) != 1 || activities[0].Kind != "ip_change" {
		t.Fatalf("expected an ip_change entry, got %+v", activities)
	}
}

func TestRegistry_ValidateKillsOnIPChurn(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	sess := seedSession(t, store, "s1", nil)
	ctx := context.Background()

	ips := []string{"5.5.5.5", "6.6.6.6", "7.7.7.7"}
	for _, ip := range ips {
		if _, err := registry.Validate(ctx, sess.ID, ip, chromeUA); err != nil {
			t.Fatalf("change to %s should still pass: %v", ip, err)
		}
	}

	_, err := registry.Validate(ctx, sess.ID, "8.8.8.8", chromeUA)
	if !errx.HasCode(err, session.CodeSessionSuspicious) {
		t.Fatalf("fourth change inside the window should kill the session, got %v", err)
	}
}

func TestRegistry_ValidateRejectsFlaggedSession(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	sess := seedSession(t, store, "s1", func(s *session.Session) { s.Suspicious = true })

	_, err := registry.Validate(context.Background(), sess.ID, "1.2.3.4", chromeUA)
	if !errx.HasCode(err, session.CodeSessionSuspicious) {
		t.Fatalf("expected suspicious, got %v", err)
	}
}

// --- Termination tests ---

func TestRegistry_TerminateIsIdempotent(t *testing.T) {
	registry, store, revoker := newRegistry(t, config.SessionConfig{})
	sess := seedSession(t, store, "s1", nil)
	ctx := context.Background()

	if err := registry.Terminate(ctx, sess.ID, "logout"); err != nil {
		t.Fatal(err)
	}
	if len(revoker.revoked()) != 2 {
		t.Fatalf("tokens not revoked: %v", revoker.revoked())
	}
	if err := registry.Terminate(ctx, sess.ID, "logout"); err != nil {
		t.Fatalf("second terminate should be a no-op: %v", err)
	}
	if err := registry.Terminate(ctx, "never-existed", "logout"); err != nil {
		t.Fatalf("unknown id should be a no-op: %v", err)
	}
}

func TestRegistry_TerminateAllKeepsCurrent(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	seedSession(t, store, "s1", nil)
	keep := seedSession(t, store, "s2", func(s *session.Session) {
		s.CreatedAt = s.CreatedAt.Add(time.Second)
	})
	seedSession(t, store, "s3", func(s *session.Session) {
		s.CreatedAt = s.CreatedAt.Add(2 * time.Second)
	})
	ctx := context.Background()

	n, err := registry.TerminateAll(ctx, "u1", keep.ID, "password change")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 terminated, got %d", n)
	}

	sessions, _ := store.ListForUser(ctx, "u1")
	if len(sessions) != 1 || sessions[0].ID != keep.ID {
		t.Fatalf("kept the wrong session: %+v", sessions)
	}
}

// --- Bindings view tests ---

func TestRegistry_JTIsForUser(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	seedSession(t, store, "s1", nil)
	seedSession(t, store, "s2", func(s *session.Session) {
		s.CreatedAt = s.CreatedAt.Add(time.Second)
		s.AccessJTI = ""
	})

	jtis, err := registry.JTIsForUser(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"a-s1": true, "r-s1": true, "r-s2": true}
	if len(jtis) != len(want) {
		t.Fatalf("expected %d jtis, got %v", len(want), jtis)
	}
	for _, jti := range jtis {
		if !want[jti] {
			t.Fatalf("unexpected jti %s", jti)
		}
	}
}

func TestRegistry_RebindReturnsOldAccess(t *testing.T) {
	registry, store, _ := newRegistry(t, config.SessionConfig{})
	sess := seedSession(t, store, "s1", nil)
	ctx := context.Background()

	oldAccess, err := registry.Rebind(ctx, sess.ID.String(), "a-new", "r-new")
	if err != nil {
		t.Fatal(err)
	}
	if oldAccess != "a-s1" {
		t.Fatalf("expected previous access jti, got %s", oldAccess)
	}

	activities, _ := registry.Activities(ctx, sess.ID, 10)
	if len(activities) == 0 || activities[0].Kind != "token_refresh" {
		t.Fatalf("refresh not recorded: %+v", activities)
	}
}
