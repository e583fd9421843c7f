package gateway

import (
	"context"
	"strings"

	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// SessionValidator is the slice of the session registry the gateway checks
// on every authenticated request.
type SessionValidator interface {
	Validate(ctx context.Context, id kernel.SessionID, ip, userAgent string) (*session.Session, error)
}

// AuthMiddleware turns bearer tokens into request principals.
type AuthMiddleware struct {
	tokens   token.Service
	sessions SessionValidator
	routes   *Table
}

// NewAuthMiddleware wires the middleware.
func NewAuthMiddleware(tokens token.Service, sessions SessionValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, sessions: sessions}
}

// SetRoutes attaches the proxy's routing table so routes that opt out of
// authentication pass through anonymously. Without a table every route
// requires auth.
func (m *AuthMiddleware) SetRoutes(t *Table) {
	m.routes = t
}

// Authenticate verifies the bearer as an access token, validates its bound
// session, and attaches the principal plus session id to the request.
// Requests matching a route with RequireAuth disabled skip all of it.
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if m.routes != nil {
			if route := m.routes.Match(c.Path()); route != nil && !route.RequireAuth {
				return c.Next()
			}
		}

		raw := BearerToken(c)
		if raw == "" {
			return token.ErrMissingToken()
		}

		claims, err := m.tokens.Verify(c.UserContext(), raw, token.KindAccess)
		if err != nil {
			return err
		}

		if m.sessions != nil && claims.SessionID != "" {
			if _, err := m.sessions.Validate(c.UserContext(), kernel.NewSessionID(claims.SessionID), c.IP(), c.Get(fiber.HeaderUserAgent)); err != nil {
				return err
			}
		}

		c.Locals(string(kernel.PrincipalKey), claims.Principal())
		c.Locals("session_id", claims.SessionID)
		return c.Next()
	}
}

// RequirePermission gates a route on one permission, wildcards included.
func (m *AuthMiddleware) RequirePermission(perm string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := PrincipalFrom(c)
		if p == nil {
			return token.ErrMissingToken()
		}
		if !p.HasPermission(perm) {
			return fiber.ErrForbidden
		}
		return c.Next()
	}
}

// PrincipalFrom returns the authenticated principal, or nil on public
// routes.
func PrincipalFrom(c *fiber.Ctx) *kernel.Principal {
	p, _ := c.Locals(string(kernel.PrincipalKey)).(*kernel.Principal)
	return p
}

// SessionIDFrom returns the session id bound to the request's token.
func SessionIDFrom(c *fiber.Ctx) kernel.SessionID {
	id, _ := c.Locals("session_id").(string)
	return kernel.NewSessionID(id)
}

// BearerToken extracts the Authorization bearer value, empty when absent or
// malformed.
func BearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return ""
	}
	return parts[1]
}

// SecurityHeaders sets the standard browser hardening headers on every
// response.
func SecurityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "no-referrer")
		c.Set("Cache-Control", "no-store")
		return c.Next()
	}
}

// StripIdentityHeaders discards inbound identity propagation headers so
// clients cannot forge what the proxy injects.
func StripIdentityHeaders() fiber.Handler {
	return func(c *fiber.Ctx) error {
		for _, h := range identityHeaders {
			c.Request().Header.Del(h)
		}
		return c.Next()
	}
}

var identityHeaders = []string{
	"X-User-Id",
	"X-Tenant-Id",
	"X-User-Role",
	"X-User-Email",
}
