package policyinfra_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/axonlabs/axongate/pkg/iam/policy"
	"github.com/axonlabs/axongate/pkg/iam/policy/policyinfra"
	"github.com/redis/go-redis/v9"
)

func newPolicyStore(t *testing.T) (*policyinfra.RedisPolicyStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return policyinfra.NewRedisPolicyStore(rdb), mr
}

// --- Document tests ---

func TestPolicyStore_LoadSeedsDefaults(t *testing.T) {
	store, mr := newPolicyStore(t)
	ctx := context.Background()

	doc, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Password.MinLength != 8 || !doc.Lockout.AutoBanEnabled {
		t.Fatalf("defaults not seeded: %+v", doc)
	}
	if !mr.Exists("policy:document") {
		t.Fatal("seed not persisted")
	}
}

func TestPolicyStore_SaveLoadRoundTrip(t *testing.T) {
	store, _ := newPolicyStore(t)
	ctx := context.Background()

	doc := policy.Defaults()
	doc.Password.MinLength = 12
	doc.IP.DenyCIDRs = []string{"10.0.0.0/8"}
	if err := store.Save(ctx, doc); err != nil {
		t.Fatal(err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Password.MinLength != 12 {
		t.Fatalf("saved document lost: %+v", got)
	}
	if len(got.IP.DenyCIDRs) != 1 || got.IP.DenyCIDRs[0] != "10.0.0.0/8" {
		t.Fatalf("deny list lost: %+v", got.IP)
	}
}

// --- Ban table tests ---

func TestPolicyStore_RecordFailureBansAtThreshold(t *testing.T) {
	store, _ := newPolicyStore(t)
	ctx := context.Background()

	for i := 1; i <= 2; i++ {
		banned, err := store.RecordFailure(ctx, "9.9.9.9", 3, 15*time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if banned {
			t.Fatalf("failure %d should not yet ban", i)
		}
	}

	banned, err := store.RecordFailure(ctx, "9.9.9.9", 3, 15*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !banned {
		t.Fatal("third failure should trip the ban")
	}

	isBanned, until, err := store.BannedUntil(ctx, "9.9.9.9")
	if err != nil {
		t.Fatal(err)
	}
	if !isBanned {
		t.Fatal("ban entry missing")
	}
	if remaining := time.Until(until); remaining < 14*time.Minute || remaining > 16*time.Minute {
		t.Fatalf("unban time out of range: %v", remaining)
	}
}

func TestPolicyStore_FailuresAreScopedPerIP(t *testing.T) {
	store, _ := newPolicyStore(t)
	ctx := context.Background()

	store.RecordFailure(ctx, "1.1.1.1", 2, time.Minute)
	banned, err := store.RecordFailure(ctx, "2.2.2.2", 2, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if banned {
		t.Fatal("one failure per IP must not ban")
	}
}

func TestPolicyStore_BanExpires(t *testing.T) {
	store, mr := newPolicyStore(t)
	ctx := context.Background()

	store.RecordFailure(ctx, "9.9.9.9", 1, time.Minute)
	mr.FastForward(2 * time.Minute)

	banned, _, err := store.BannedUntil(ctx, "9.9.9.9")
	if err != nil {
		t.Fatal(err)
	}
	if banned {
		t.Fatal("ban should have expired")
	}
}

func TestPolicyStore_Unban(t *testing.T) {
	store, _ := newPolicyStore(t)
	ctx := context.Background()

	store.RecordFailure(ctx, "9.9.9.9", 1, time.Hour)
	if banned, _, _ := store.BannedUntil(ctx, "9.9.9.9"); !banned {
		t.Fatal("precondition: IP should be banned")
	}

	if err := store.Unban(ctx, "9.9.9.9"); err != nil {
		t.Fatal(err)
	}
	if banned, _, _ := store.BannedUntil(ctx, "9.9.9.9"); banned {
		t.Fatal("unban did not lift the ban")
	}
}

func TestPolicyStore_ClearFailuresKeepsBans(t *testing.T) {
	store, mr := newPolicyStore(t)
	ctx := context.Background()

	store.RecordFailure(ctx, "9.9.9.9", 3, time.Minute)
	store.RecordFailure(ctx, "9.9.9.9", 3, time.Minute)
	if err := store.ClearFailures(ctx, "9.9.9.9"); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("policy:failcount:9.9.9.9") {
		t.Fatal("counter should be gone")
	}

	// The count restarts, so two more failures stay below the threshold.
	store.RecordFailure(ctx, "9.9.9.9", 3, time.Minute)
	banned, err := store.RecordFailure(ctx, "9.9.9.9", 3, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if banned {
		t.Fatal("cleared failures must not count toward a ban")
	}

	// An active ban survives a counter clear.
	store.RecordFailure(ctx, "8.8.8.8", 1, time.Hour)
	store.ClearFailures(ctx, "8.8.8.8")
	if isBanned, _, _ := store.BannedUntil(ctx, "8.8.8.8"); !isBanned {
		t.Fatal("clearing the counter must not lift the ban")
	}
}

func TestPolicyStore_BanClearsCounter(t *testing.T) {
	store, mr := newPolicyStore(t)
	ctx := context.Background()

	store.RecordFailure(ctx, "9.9.9.9", 2, time.Minute)
	store.RecordFailure(ctx, "9.9.9.9", 2, time.Minute)
	if mr.Exists("policy:failcount:9.9.9.9") {
		t.Fatal("counter should be cleared when the ban lands")
	}
}
