package ratelimit

import (
	"fmt"
	"strconv"

	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// IdentityFn resolves the caller's user id and role at admission time, for
// pipelines where authentication runs after rate limiting. Returning two
// empty strings admits the request as anonymous.
type IdentityFn func(c *fiber.Ctx) (userID, role string)

// Middleware admits or denies every request before routing. Each checked
// scope reports its window through X-RateLimit-<Scope>-* headers; a denial
// additionally carries Retry-After and surfaces as a structured error for
// the app's error handler to translate.
//
// The principal attached by an upstream auth middleware wins; when none is
// present yet, identity (if non-nil) resolves the caller so the user scope
// and role multipliers still apply.
func Middleware(limiter *Limiter, identity IdentityFn) fiber.Handler {
	return func(c *fiber.Ctx) error {
		req := Request{
			IP:     c.IP(),
			Method: c.Method(),
			Path:   c.Path(),
		}

		if p, ok := c.Locals(string(kernel.PrincipalKey)).(*kernel.Principal); ok && p != nil {
			req.UserID = p.UserID.String()
			req.Role = p.Role
		} else if identity != nil {
			req.UserID, req.Role = identity(c)
		}

		decisions, denied := limiter.Evaluate(c.UserContext(), req)

		for _, d := range decisions {
			prefix := fmt.Sprintf("X-RateLimit-%s", d.Scope)
			c.Set(prefix+"-Limit", strconv.Itoa(d.Limit))
			c.Set(prefix+"-Remaining", strconv.Itoa(d.Remaining))
			c.Set(prefix+"-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		}

		if denied != nil {
			c.Set("Retry-After", strconv.Itoa(denied.RetryAfter()))
			return ErrRateLimited(*denied)
		}

		return c.Next()
	}
}
