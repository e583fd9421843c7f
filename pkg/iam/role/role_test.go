package role_test

import (
	"testing"

	"github.com/axonlabs/axongate/pkg/iam/role"
)

func TestRole_HasPermission(t *testing.T) {
	r := &role.Role{Name: "member", Permissions: []string{"chat:write", "profile:*"}}

	cases := []struct {
		perm string
		want bool
	}{
		{"chat:write", true},
		{"chat:read", false},
		{"profile:read", true},
		{"profile:update:email", true},
		{"profiles:read", false},
		{"admin:read", false},
	}
	for _, tc := range cases {
		if got := r.HasPermission(tc.perm); got != tc.want {
			t.Fatalf("%q: got %v, want %v", tc.perm, got, tc.want)
		}
	}
}

func TestRole_WildcardGrantsEverything(t *testing.T) {
	r := &role.Role{Name: "admin", Permissions: []string{"*"}}

	for _, perm := range []string{"chat:write", "admin:delete", "anything"} {
		if !r.HasPermission(perm) {
			t.Fatalf("%q should be granted by *", perm)
		}
	}
}
