package userinfra

import (
	"github.com/axonlabs/axongate/pkg/gateway"
	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/gofiber/fiber/v2"
)

// Handlers exposes the internal user directory surface. It never returns a
// password hash; the only password operation is a constant-time yes/no.
type Handlers struct {
	dir user.Directory
}

// NewHandlers wires the handlers.
func NewHandlers(dir user.Directory) *Handlers {
	return &Handlers{dir: dir}
}

// RegisterRoutes mounts the internal user routes.
func (h *Handlers) RegisterRoutes(app *fiber.App) {
	grp := app.Group("/internal/users")

	grp.Post("/verify", h.verify)
	grp.Post("/verify-password", h.verifyPassword)
}

// verify resolves an identifier to a redacted profile.
func (h *Handlers) verify(c *fiber.Ctx) error {
	var body struct {
		Identifier string `json:"identifier"`
	}
	if err := c.BodyParser(&body); err != nil || body.Identifier == "" {
		return fiber.ErrBadRequest
	}

	u, err := h.dir.Lookup(c.UserContext(), body.Identifier)
	if err != nil {
		return err
	}

	profile, err := h.dir.GetProfile(c.UserContext(), u.ID, u.TenantID)
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, profile)
}

// verifyPassword runs the constant-time comparison and reports only the
// boolean outcome.
func (h *Handlers) verifyPassword(c *fiber.Ctx) error {
	var body struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := c.BodyParser(&body); err != nil || body.Identifier == "" || body.Password == "" {
		return fiber.ErrBadRequest
	}

	u, err := h.dir.Lookup(c.UserContext(), body.Identifier)
	if err != nil {
		return err
	}

	valid := h.dir.VerifyPassword(c.UserContext(), u.ID, u.TenantID, body.Password) == nil
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"valid": valid})
}
