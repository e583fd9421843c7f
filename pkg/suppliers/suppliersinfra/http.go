package suppliersinfra

import (
	"context"
	"strings"

	"github.com/axonlabs/axongate/pkg/gateway"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/axonlabs/axongate/pkg/ptrx"
	"github.com/axonlabs/axongate/pkg/suppliers"
	"github.com/gofiber/fiber/v2"
)

// SelectorService is the selection surface the internal API exposes.
type SelectorService interface {
	Select(ctx context.Context, tenantID kernel.TenantID, opts suppliers.SelectOptions) ([]suppliers.View, error)
	Test(ctx context.Context, tenantID kernel.TenantID, id kernel.CredentialID, kind suppliers.ProbeKind, model string) (*suppliers.ProbeResult, error)
	TestAll(ctx context.Context, tenantID kernel.TenantID, kind suppliers.ProbeKind) (map[string]*suppliers.ProbeResult, error)
}

// Handlers exposes the supplier surface on the internal listener only.
// Nothing here may be mounted on the public app: responses carry decrypted
// secrets.
type Handlers struct {
	selector SelectorService
	repo     suppliers.Repository
}

// NewHandlers wires the handlers.
func NewHandlers(selector SelectorService, repo suppliers.Repository) *Handlers {
	return &Handlers{selector: selector, repo: repo}
}

// RegisterRoutes mounts the internal supplier routes.
func (h *Handlers) RegisterRoutes(app *fiber.App) {
	grp := app.Group("/internal/suppliers")

	grp.Get("/:tenant/available", h.available)
	grp.Post("/:id/test", h.test)
	grp.Post("/:tenant/test-all", h.testAll)

	grp.Get("/:tenant/credentials", h.list)
	grp.Post("/:tenant/credentials", h.create)
	grp.Put("/:tenant/credentials/:id", h.update)
	grp.Delete("/:tenant/credentials/:id", h.remove)
}

func (h *Handlers) available(c *fiber.Ctx) error {
	opts := suppliers.SelectOptions{
		Strategy:   suppliers.Strategy(c.Query("strategy", string(suppliers.StrategyFirstAvailable))),
		OnlyActive: c.QueryBool("only_active", true),
	}
	if raw := c.Query("providers"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			opts.Providers = append(opts.Providers, suppliers.Provider(strings.TrimSpace(p)))
		}
	}

	views, err := h.selector.Select(c.UserContext(), kernel.NewTenantID(c.Params("tenant")), opts)
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"credentials": views})
}

func (h *Handlers) test(c *fiber.Ctx) error {
	var body struct {
		TenantID  string `json:"tenant_id"`
		TestType  string `json:"test_type"`
		ModelName string `json:"model_name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}

	result, err := h.selector.Test(
		c.UserContext(),
		kernel.NewTenantID(body.TenantID),
		kernel.NewCredentialID(c.Params("id")),
		suppliers.ProbeKind(body.TestType),
		body.ModelName,
	)
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, result)
}

func (h *Handlers) testAll(c *fiber.Ctx) error {
	var body struct {
		TestType string `json:"test_type"`
	}
	_ = c.BodyParser(&body)

	results, err := h.selector.TestAll(
		c.UserContext(),
		kernel.NewTenantID(c.Params("tenant")),
		suppliers.ProbeKind(body.TestType),
	)
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"results": results})
}

// credentialBody is the create/update payload.
type credentialBody struct {
	Provider     string            `json:"provider"`
	Name         string            `json:"name"`
	APIKey       string            `json:"api_key"`
	Endpoint     string            `json:"endpoint"`
	ModelConfigs map[string]string `json:"model_configs"`
	IsActive     *bool             `json:"is_active"`
}

func (b credentialBody) toInput() suppliers.StoreInput {
	active := ptrx.Deref(b.IsActive, true)
	return suppliers.StoreInput{
		Provider:     suppliers.Provider(b.Provider),
		Name:         b.Name,
		Secret:       b.APIKey,
		Endpoint:     b.Endpoint,
		ModelConfigs: b.ModelConfigs,
		IsActive:     active,
	}
}

func (h *Handlers) list(c *fiber.Ctx) error {
	scope, err := kernel.NewTenantScope(kernel.NewTenantID(c.Params("tenant")))
	if err != nil {
		return err
	}

	creds, err := h.repo.ListByTenant(c.UserContext(), scope, false)
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"credentials": creds})
}

func (h *Handlers) create(c *fiber.Ctx) error {
	scope, err := kernel.NewTenantScope(kernel.NewTenantID(c.Params("tenant")))
	if err != nil {
		return err
	}

	var body credentialBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}

	cred, err := h.repo.Store(c.UserContext(), scope, body.toInput())
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusCreated, cred)
}

func (h *Handlers) update(c *fiber.Ctx) error {
	scope, err := kernel.NewTenantScope(kernel.NewTenantID(c.Params("tenant")))
	if err != nil {
		return err
	}

	var body credentialBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.ErrBadRequest
	}

	cred, err := h.repo.Update(c.UserContext(), scope, kernel.NewCredentialID(c.Params("id")), body.toInput())
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, cred)
}

func (h *Handlers) remove(c *fiber.Ctx) error {
	scope, err := kernel.NewTenantScope(kernel.NewTenantID(c.Params("tenant")))
	if err != nil {
		return err
	}

	if err := h.repo.Delete(c.UserContext(), scope, kernel.NewCredentialID(c.Params("id"))); err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"deleted": c.Params("id")})
}
