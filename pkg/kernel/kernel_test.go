package kernel_test

import (
	"errors"
	"testing"

	"github.com/axonlabs/axongate/pkg/kernel"
)

// --- Principal tests ---

func TestPrincipal_IsValid(t *testing.T) {
	p := &kernel.Principal{UserID: "u1", TenantID: "t1"}
	if !p.IsValid() {
		t.Fatal("principal with user and tenant should be valid")
	}

	cases := []*kernel.Principal{
		nil,
		{UserID: "u1"},
		{TenantID: "t1"},
	}
	for _, c := range cases {
		if c.IsValid() {
			t.Fatalf("expected invalid principal: %+v", c)
		}
	}
}

func TestPrincipal_HasPermission(t *testing.T) {
	p := &kernel.Principal{
		UserID:      "u1",
		TenantID:    "t1",
		Permissions: []string{"chat:*", "suppliers:read"},
	}

	if !p.HasPermission("suppliers:read") {
		t.Fatal("exact permission should match")
	}
	if !p.HasPermission("chat:write") {
		t.Fatal("prefix wildcard should match chat:write")
	}
	if !p.HasPermission("chat:stream:sse") {
		t.Fatal("prefix wildcard should match deeper paths")
	}
	if p.HasPermission("chatter:write") {
		t.Fatal("wildcard must not match across segment boundaries")
	}
	if p.HasPermission("suppliers:write") {
		t.Fatal("exact permission must not imply siblings")
	}

	var nilP *kernel.Principal
	if nilP.HasPermission("anything") {
		t.Fatal("nil principal holds no permissions")
	}
}

func TestPrincipal_GlobalWildcardAndAdmin(t *testing.T) {
	root := &kernel.Principal{UserID: "u1", TenantID: "t1", Permissions: []string{"*"}}
	if !root.HasPermission("anything:at:all") || !root.IsAdmin() {
		t.Fatal("global wildcard should grant everything")
	}

	admin := &kernel.Principal{UserID: "u2", TenantID: "t1", Permissions: []string{"admin:*"}}
	if !admin.IsAdmin() {
		t.Fatal("admin:* should mark the principal as admin")
	}

	user := &kernel.Principal{UserID: "u3", TenantID: "t1", Permissions: []string{"chat:read"}}
	if user.IsAdmin() {
		t.Fatal("plain permission must not grant admin")
	}
	if !user.HasAnyPermission("suppliers:read", "chat:read") {
		t.Fatal("HasAnyPermission missed a held permission")
	}
	if user.HasAnyPermission("suppliers:read", "suppliers:write") {
		t.Fatal("HasAnyPermission matched nothing that is held")
	}
}

// --- Scoped tests ---

func TestScoped_RequiresTenant(t *testing.T) {
	if _, err := kernel.NewScoped(kernel.TenantID(""), "payload"); !errors.Is(err, kernel.ErrMissingTenantScope) {
		t.Fatalf("expected ErrMissingTenantScope, got %v", err)
	}

	s, err := kernel.NewScoped(kernel.NewTenantID("t1"), 42)
	if err != nil {
		t.Fatal(err)
	}
	if s.TenantID() != "t1" || s.Value() != 42 {
		t.Fatalf("scoped value lost its parts: %v %v", s.TenantID(), s.Value())
	}
}

func TestNewTenantScope(t *testing.T) {
	if _, err := kernel.NewTenantScope(kernel.TenantID("")); err == nil {
		t.Fatal("empty tenant must not produce a scope proof")
	}
	scope, err := kernel.NewTenantScope(kernel.NewTenantID("t1"))
	if err != nil {
		t.Fatal(err)
	}
	if scope.TenantID() != "t1" {
		t.Fatalf("scope carries wrong tenant: %s", scope.TenantID())
	}
}

func TestMustScoped_PanicsOnEmptyTenant(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on empty tenant")
		}
	}()
	kernel.MustScoped(kernel.TenantID(""), "payload")
}

// --- RequestContext tests ---

func TestRequestContext_Authenticated(t *testing.T) {
	rc := &kernel.RequestContext{
		RequestID: "req-1",
		Principal: &kernel.Principal{UserID: "u1", TenantID: "t1"},
	}
	if !rc.Authenticated() {
		t.Fatal("request with a valid principal is authenticated")
	}

	if (&kernel.RequestContext{RequestID: "req-2"}).Authenticated() {
		t.Fatal("request without a principal is not authenticated")
	}
	var nilRC *kernel.RequestContext
	if nilRC.Authenticated() {
		t.Fatal("nil request context is not authenticated")
	}
}
