package gateway_test

import (
	"testing"
	"time"

	"github.com/axonlabs/axongate/pkg/config"
	"github.com/axonlabs/axongate/pkg/gateway"
)

func TestTable_LongestPrefixWins(t *testing.T) {
	table := gateway.NewTable([]gateway.Route{
		{Prefix: "/api/v1/chat", ServiceTag: "chat"},
		{Prefix: "/api/v1/chat/admin", ServiceTag: "chat-admin"},
		{Prefix: "/api/v1/memory", ServiceTag: "memory"},
	})

	cases := map[string]string{
		"/api/v1/chat":             "chat",
		"/api/v1/chat/completions": "chat",
		"/api/v1/chat/admin":       "chat-admin",
		"/api/v1/chat/admin/flush": "chat-admin",
		"/api/v1/memory/search":    "memory",
	}
	for path, want := range cases {
		route := table.Match(path)
		if route == nil {
			t.Fatalf("no route for %s", path)
		}
		if route.ServiceTag != want {
			t.Fatalf("Match(%s) hit %s, want %s", path, route.ServiceTag, want)
		}
	}
}

func TestTable_WholeSegmentsOnly(t *testing.T) {
	table := gateway.NewTable([]gateway.Route{
		{Prefix: "/api/v1/chat", ServiceTag: "chat"},
	})

	if table.Match("/api/v1/chatx") != nil {
		t.Fatal("prefix must not match a partial segment")
	}
	if table.Match("/api/v1/chatx/completions") != nil {
		t.Fatal("prefix must not match across a partial segment")
	}
	if table.Match("/api/v1") != nil {
		t.Fatal("shorter path must not match")
	}
}

func TestTableFromConfig(t *testing.T) {
	table := gateway.TableFromConfig(config.GatewayConfig{
		Upstreams: []config.UpstreamConfig{
			{Tag: "chat", BaseURL: "http://chat:9000", Timeout: 2 * time.Minute},
			{Tag: "admin", BaseURL: "http://admin:9000"},
		},
		DefaultTimeout: 30 * time.Second,
	})

	route := table.Match("/api/v1/chat/completions")
	if route == nil || route.Target != "http://chat:9000" {
		t.Fatalf("chat upstream not routed: %+v", route)
	}
	if route.Timeout != 2*time.Minute {
		t.Fatalf("per-upstream timeout not honored: %v", route.Timeout)
	}
	if !route.RequireAuth {
		t.Fatal("configured upstreams must require auth")
	}

	route = table.Match("/api/v1/admin/users")
	if route == nil || route.Timeout != 30*time.Second {
		t.Fatalf("default timeout not applied: %+v", route)
	}
}
