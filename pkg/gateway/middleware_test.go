package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/axonlabs/axongate/pkg/gateway"
	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// fakeTokens verifies exactly one canned token string.
type fakeTokens struct {
	accept string
	claims *token.Claims
}

func (f *fakeTokens) Mint(*user.Snapshot, token.Kind, string) (string, string, time.Time, error) {
	return "", "", time.Time{}, nil
}
func (f *fakeTokens) MintPair(*user.Snapshot, string) (*token.Pair, error) { return nil, nil }
func (f *fakeTokens) Verify(_ context.Context, raw string, expected token.Kind) (*token.Claims, error) {
	if raw != f.accept || f.claims.Kind != expected {
		return nil, token.ErrTokenInvalid()
	}
	return f.claims, nil
}
func (f *fakeTokens) Revoke(context.Context, string, string) bool               { return false }
func (f *fakeTokens) RevokeJTI(context.Context, string, string, time.Time) bool { return false }
func (f *fakeTokens) RevokeAllFor(context.Context, kernel.UserID, string) int   { return 0 }
func (f *fakeTokens) Refresh(context.Context, string, *user.Snapshot) (*token.Pair, error) {
	return nil, nil
}

type fakeValidator struct {
	err    error
	called int
}

func (f *fakeValidator) Validate(_ context.Context, id kernel.SessionID, ip, ua string) (*session.Session, error) {
	f.called++
	if f.err != nil {
		return nil, f.err
	}
	return &session.Session{ID: id}, nil
}

func accessClaims(sessionID string) *token.Claims {
	return &token.Claims{
		TenantID:    "t1",
		Email:       "alice@example.com",
		Role:        "member",
		Permissions: []string{"chat:*"},
		Kind:        token.KindAccess,
		SessionID:   sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: "u1",
			ID:      "jti-access",
		},
	}
}

func authApp(tokens token.Service, sessions gateway.SessionValidator) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: gateway.ErrorHandler})
	m := gateway.NewAuthMiddleware(tokens, sessions)
	app.Get("/private", m.Authenticate(), func(c *fiber.Ctx) error {
		p := gateway.PrincipalFrom(c)
		return gateway.Respond(c, fiber.StatusOK, fiber.Map{
			"user_id":    p.UserID.String(),
			"session_id": gateway.SessionIDFrom(c).String(),
		})
	})
	return app
}

// --- Authenticate tests ---

func TestAuthenticate_AttachesPrincipal(t *testing.T) {
	validator := &fakeValidator{}
	app := authApp(&fakeTokens{accept: "good", claims: accessClaims("s1")}, validator)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if validator.called != 1 {
		t.Fatalf("session validation should run once, ran %d times", validator.called)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	app := authApp(&fakeTokens{accept: "good", claims: accessClaims("s1")}, &fakeValidator{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthenticate_RejectsBadToken(t *testing.T) {
	app := authApp(&fakeTokens{accept: "good", claims: accessClaims("s1")}, &fakeValidator{})

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer forged")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthenticate_DeadSessionRejects(t *testing.T) {
	validator := &fakeValidator{err: session.ErrSessionExpired()}
	app := authApp(&fakeTokens{accept: "good", claims: accessClaims("s1")}, validator)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired session, got %d", resp.StatusCode)
	}
}

func TestAuthenticate_SkipsValidationWithoutSession(t *testing.T) {
	validator := &fakeValidator{err: session.ErrSessionExpired()}
	app := authApp(&fakeTokens{accept: "good", claims: accessClaims("")}, validator)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("tokens without a session id skip session validation, got %d", resp.StatusCode)
	}
	if validator.called != 0 {
		t.Fatal("validator must not run for session-less tokens")
	}
}

func TestAuthenticate_HonorsRouteAuthOptOut(t *testing.T) {
	validator := &fakeValidator{}
	m := gateway.NewAuthMiddleware(&fakeTokens{accept: "good", claims: accessClaims("s1")}, validator)
	m.SetRoutes(gateway.NewTable([]gateway.Route{
		{Prefix: "/api/v1/status", Target: "http://status", RequireAuth: false},
		{Prefix: "/api/v1/chat", Target: "http://chat", RequireAuth: true},
	}))

	app := fiber.New(fiber.Config{ErrorHandler: gateway.ErrorHandler})
	app.All("/api/v1/*", m.Authenticate(), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	// The opted-out route admits anonymous callers.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/status/live", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("auth opt-out route should admit without a token, got %d", resp.StatusCode)
	}
	if validator.called != 0 {
		t.Fatal("opt-out routes must not touch the session registry")
	}

	// Everything else still demands a bearer.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/chat/completions", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("auth-required route should 401 without a token, got %d", resp.StatusCode)
	}

	// Paths outside the table keep requiring auth.
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unmatched path should 401 without a token, got %d", resp.StatusCode)
	}
}

// --- RequirePermission tests ---

func TestRequirePermission(t *testing.T) {
	m := gateway.NewAuthMiddleware(&fakeTokens{accept: "good", claims: accessClaims("s1")}, &fakeValidator{})
	app := fiber.New(fiber.Config{ErrorHandler: gateway.ErrorHandler})
	app.Get("/admin", m.Authenticate(), m.RequirePermission("admin:read"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	app.Get("/chat", m.Authenticate(), m.RequirePermission("chat:write"), func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without the permission, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/chat", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("wildcard permission should pass, got %d", resp.StatusCode)
	}
}

// --- Header middleware tests ---

func TestBearerToken(t *testing.T) {
	app := fiber.New()
	var got string
	app.Get("/", func(c *fiber.Ctx) error {
		got = gateway.BearerToken(c)
		return nil
	})

	cases := map[string]string{
		"Bearer abc": "abc",
		"bearer abc": "abc",
		"Bearer":     "",
		"Basic abc":  "",
		"":           "",
	}
	for header, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set(fiber.HeaderAuthorization, header)
		}
		if _, err := app.Test(req); err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(gateway.SecurityHeaders())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	if err != nil {
		t.Fatal(err)
	}
	for header, want := range map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	} {
		if got := resp.Header.Get(header); got != want {
			t.Fatalf("%s = %q, want %q", header, got, want)
		}
	}
}

func TestStripIdentityHeaders(t *testing.T) {
	app := fiber.New()
	app.Use(gateway.StripIdentityHeaders())
	var seen string
	app.Get("/", func(c *fiber.Ctx) error {
		seen = c.Get("X-User-Id")
		return c.SendString("ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-Id", "forged")
	if _, err := app.Test(req); err != nil {
		t.Fatal(err)
	}
	if seen != "" {
		t.Fatalf("forged identity header survived: %q", seen)
	}
}
