package supplierssrv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/suppliers"
	"github.com/axonlabs/axongate/pkg/suppliers/supplierssrv"
)

// --- fakes ---

type fakeRepo struct {
	creds   []*suppliers.Credential
	listErr error
	touched []kernel.CredentialID
	tchErr  error
}

func (f *fakeRepo) Store(context.Context, kernel.TenantScope, suppliers.StoreInput) (*suppliers.Credential, error) {
	return nil, nil
}
func (f *fakeRepo) Update(context.Context, kernel.TenantScope, kernel.CredentialID, suppliers.StoreInput) (*suppliers.Credential, error) {
	return nil, nil
}
func (f *fakeRepo) Delete(context.Context, kernel.TenantScope, kernel.CredentialID) error {
	return nil
}

func (f *fakeRepo) FetchByID(_ context.Context, _ kernel.TenantScope, id kernel.CredentialID) (*suppliers.Credential, error) {
	for _, c := range f.creds {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, suppliers.ErrCredentialNotFound()
}

func (f *fakeRepo) ListByTenant(context.Context, kernel.TenantScope, bool) ([]*suppliers.Credential, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	// The selector reorders in place; hand out a copy so the canned data
	// survives across calls.
	return append([]*suppliers.Credential(nil), f.creds...), nil
}

func (f *fakeRepo) TouchUsed(_ context.Context, id kernel.CredentialID) error {
	if f.tchErr != nil {
		return f.tchErr
	}
	f.touched = append(f.touched, id)
	return nil
}

type fakeCursor struct {
	pos int64
	err error
}

func (f *fakeCursor) Next(context.Context, kernel.TenantID) (int64, error) {
	return f.pos, f.err
}

type fakeProber struct {
	probed  []string
	results map[string]*suppliers.ProbeResult
}

func (f *fakeProber) Probe(_ context.Context, cred *suppliers.Credential, kind suppliers.ProbeKind, _ string) *suppliers.ProbeResult {
	f.probed = append(f.probed, cred.ID.String()+":"+string(kind))
	if r, ok := f.results[cred.ID.String()]; ok {
		return r
	}
	return &suppliers.ProbeResult{Success: true, Ms: 1}
}

func cred(id string, provider suppliers.Provider, active bool, createdAgo time.Duration) *suppliers.Credential {
	return &suppliers.Credential{
		ID:           kernel.NewCredentialID(id),
		TenantID:     "t1",
		Provider:     provider,
		Name:         "key-" + id,
		Secret:       "sk-" + id,
		ModelConfigs: map[string]string{"default": "model-" + id},
		IsActive:     active,
		CreatedAt:    time.Now().Add(-createdAgo),
	}
}

func newSelector(creds ...*suppliers.Credential) (*supplierssrv.Selector, *fakeRepo, *fakeCursor, *fakeProber) {
	repo := &fakeRepo{creds: creds}
	cursor := &fakeCursor{}
	prober := &fakeProber{results: map[string]*suppliers.ProbeResult{}}
	return supplierssrv.NewSelector(repo, cursor, prober), repo, cursor, prober
}

func ids(views []suppliers.View) []string {
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.ID.String()
	}
	return out
}

func sameOrder(got []string, want ...string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// --- Select tests ---

func TestSelect_DefaultsToCreationOrder(t *testing.T) {
	sel, repo, _, _ := newSelector(
		cred("c1", suppliers.ProviderOpenAI, true, 3*time.Hour),
		cred("c2", suppliers.ProviderAnthropic, true, 2*time.Hour),
		cred("c3", suppliers.ProviderGoogle, true, time.Hour),
	)

	views, err := sel.Select(context.Background(), "t1", suppliers.SelectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !sameOrder(ids(views), "c1", "c2", "c3") {
		t.Fatalf("order wrong: %v", ids(views))
	}
	if views[0].Secret != "sk-c1" || views[0].Model != "model-c1" {
		t.Fatalf("view incomplete: %+v", views[0])
	}
	if len(repo.touched) != 1 || repo.touched[0] != "c1" {
		t.Fatalf("head usage stamp wrong: %v", repo.touched)
	}
}

func TestSelect_RejectsUnknownStrategy(t *testing.T) {
	sel, _, _, _ := newSelector(cred("c1", suppliers.ProviderOpenAI, true, 0))

	_, err := sel.Select(context.Background(), "t1", suppliers.SelectOptions{Strategy: "random"})
	if !errx.HasCode(err, suppliers.CodeInvalidStrategy) {
		t.Fatalf("expected invalid strategy, got %v", err)
	}
}

func TestSelect_RequiresTenant(t *testing.T) {
	sel, _, _, _ := newSelector(cred("c1", suppliers.ProviderOpenAI, true, 0))

	_, err := sel.Select(context.Background(), "", suppliers.SelectOptions{})
	if !errors.Is(err, kernel.ErrMissingTenantScope) {
		t.Fatalf("expected missing tenant scope, got %v", err)
	}
}

func TestSelect_RoundRobinRotates(t *testing.T) {
	sel, repo, cursor, _ := newSelector(
		cred("c1", suppliers.ProviderOpenAI, true, 3*time.Hour),
		cred("c2", suppliers.ProviderOpenAI, true, 2*time.Hour),
		cred("c3", suppliers.ProviderOpenAI, true, time.Hour),
	)
	cursor.pos = 4

	views, err := sel.Select(context.Background(), "t1", suppliers.SelectOptions{Strategy: suppliers.StrategyRoundRobin})
	if err != nil {
		t.Fatal(err)
	}
	// Position 4 over 3 credentials starts at index 1.
	if !sameOrder(ids(views), "c2", "c3", "c1") {
		t.Fatalf("rotation wrong: %v", ids(views))
	}
	if repo.touched[0] != "c2" {
		t.Fatalf("usage stamp should follow the rotated head, got %v", repo.touched)
	}
}

func TestSelect_RoundRobinDegradesWithoutCursor(t *testing.T) {
	sel, _, cursor, _ := newSelector(
		cred("c1", suppliers.ProviderOpenAI, true, 2*time.Hour),
		cred("c2", suppliers.ProviderOpenAI, true, time.Hour),
	)
	cursor.err = errors.New("redis gone")

	views, err := sel.Select(context.Background(), "t1", suppliers.SelectOptions{Strategy: suppliers.StrategyRoundRobin})
	if err != nil {
		t.Fatal(err)
	}
	if !sameOrder(ids(views), "c1", "c2") {
		t.Fatalf("cursor failure should fall back to creation order: %v", ids(views))
	}
}

func TestSelect_LeastUsedOrdersByIdle(t *testing.T) {
	used1h := time.Now().Add(-time.Hour)
	used5m := time.Now().Add(-5 * time.Minute)

	fresh := cred("fresh", suppliers.ProviderOpenAI, true, time.Hour)
	idle := cred("idle", suppliers.ProviderOpenAI, true, 3*time.Hour)
	idle.LastUsedAt = &used1h
	busy := cred("busy", suppliers.ProviderOpenAI, true, 2*time.Hour)
	busy.LastUsedAt = &used5m

	sel, _, _, _ := newSelector(busy, fresh, idle)

	views, err := sel.Select(context.Background(), "t1", suppliers.SelectOptions{Strategy: suppliers.StrategyLeastUsed})
	if err != nil {
		t.Fatal(err)
	}
	if !sameOrder(ids(views), "fresh", "idle", "busy") {
		t.Fatalf("idle ordering wrong: %v", ids(views))
	}
}

func TestSelect_Filters(t *testing.T) {
	sel, _, _, _ := newSelector(
		cred("c1", suppliers.ProviderOpenAI, true, 4*time.Hour),
		cred("c2", suppliers.ProviderAnthropic, false, 3*time.Hour),
		cred("c3", suppliers.ProviderAnthropic, true, 2*time.Hour),
		cred("c4", suppliers.ProviderGoogle, true, time.Hour),
	)

	views, err := sel.Select(context.Background(), "t1", suppliers.SelectOptions{
		OnlyActive: true,
		Providers:  []suppliers.Provider{suppliers.ProviderAnthropic, suppliers.ProviderGoogle},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !sameOrder(ids(views), "c3", "c4") {
		t.Fatalf("filter wrong: %v", ids(views))
	}
}

func TestSelect_EmptyAfterFilter(t *testing.T) {
	sel, repo, _, _ := newSelector(cred("c1", suppliers.ProviderOpenAI, false, 0))

	views, err := sel.Select(context.Background(), "t1", suppliers.SelectOptions{OnlyActive: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 0 {
		t.Fatalf("expected empty selection, got %v", ids(views))
	}
	if len(repo.touched) != 0 {
		t.Fatal("nothing was selected, nothing should be stamped")
	}
}

// --- Test and TestAll tests ---

func TestTest_DefaultsToModelList(t *testing.T) {
	sel, repo, _, prober := newSelector(cred("c1", suppliers.ProviderOpenAI, true, 0))

	result, err := sel.Test(context.Background(), "t1", "c1", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("probe should succeed: %+v", result)
	}
	if len(prober.probed) != 1 || prober.probed[0] != "c1:model_list" {
		t.Fatalf("probe kind wrong: %v", prober.probed)
	}
	if len(repo.touched) != 1 || repo.touched[0] != "c1" {
		t.Fatalf("successful probe should stamp usage: %v", repo.touched)
	}
}

func TestTest_FailureDoesNotStampUsage(t *testing.T) {
	sel, repo, _, prober := newSelector(cred("c1", suppliers.ProviderOpenAI, true, 0))
	prober.results["c1"] = &suppliers.ProbeResult{
		Success: false, Error: "401 unauthorized", ErrorKind: suppliers.ProbeUnauthorized,
	}

	result, err := sel.Test(context.Background(), "t1", "c1", suppliers.ProbeCompletion, "gpt-4o")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success || result.ErrorKind != suppliers.ProbeUnauthorized {
		t.Fatalf("failure result mangled: %+v", result)
	}
	if len(repo.touched) != 0 {
		t.Fatal("failed probe must not stamp usage")
	}
}

func TestTest_UnknownCredential(t *testing.T) {
	sel, _, _, _ := newSelector()

	_, err := sel.Test(context.Background(), "t1", "nope", "", "")
	if !errx.HasCode(err, suppliers.CodeCredentialNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTestAll_ProbesOnlyActive(t *testing.T) {
	sel, _, _, prober := newSelector(
		cred("c1", suppliers.ProviderOpenAI, true, 2*time.Hour),
		cred("c2", suppliers.ProviderAnthropic, false, time.Hour),
		cred("c3", suppliers.ProviderGoogle, true, 0),
	)
	prober.results["c3"] = &suppliers.ProbeResult{
		Success: false, Error: "timeout", ErrorKind: suppliers.ProbeTimeout,
	}

	results, err := sel.TestAll(context.Background(), "t1", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if _, ok := results["c2"]; ok {
		t.Fatal("inactive credential must not be probed")
	}
	if !results["c1"].Success {
		t.Fatalf("c1 should pass: %+v", results["c1"])
	}
	// One bad key is a result, not an error.
	if results["c3"].ErrorKind != suppliers.ProbeTimeout {
		t.Fatalf("c3 failure lost: %+v", results["c3"])
	}
}

// --- Gate tests ---

func TestIsServicePrincipal(t *testing.T) {
	cases := []struct {
		name string
		p    *kernel.Principal
		want bool
	}{
		{"nil", nil, false},
		{"admin wildcard", &kernel.Principal{UserID: "u1", TenantID: "t1", Permissions: []string{"*"}}, true},
		{"internal grant", &kernel.Principal{UserID: "u1", TenantID: "t1", Permissions: []string{"internal:suppliers"}}, true},
		{"plain member", &kernel.Principal{UserID: "u1", TenantID: "t1", Permissions: []string{"chat:write"}}, false},
	}
	for _, tc := range cases {
		if got := supplierssrv.IsServicePrincipal(tc.p); got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

// --- Prober classification tests ---

func TestSDKProber_RefusesUnroutableCredentials(t *testing.T) {
	prober := supplierssrv.NewSDKProber()
	ctx := context.Background()

	bogus := cred("c1", "bogus", true, 0)
	result := prober.Probe(ctx, bogus, suppliers.ProbeModelList, "")
	if result.Success || result.ErrorKind != suppliers.ProbeOther {
		t.Fatalf("unknown provider should fail closed: %+v", result)
	}

	azure := cred("c2", suppliers.ProviderAzure, true, 0)
	result = prober.Probe(ctx, azure, suppliers.ProbeModelList, "")
	if result.Success || result.ErrorKind != suppliers.ProbeOther {
		t.Fatalf("azure without an endpoint should fail: %+v", result)
	}
}
