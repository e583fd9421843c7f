package authinfra

import (
	"context"

	"github.com/axonlabs/axongate/pkg/gateway"
	"github.com/axonlabs/axongate/pkg/iam/auth"
	"github.com/axonlabs/axongate/pkg/iam/session"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/iam/user"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Service is the orchestrator surface the HTTP layer consumes.
type Service interface {
	Login(ctx context.Context, creds auth.Credentials) (*auth.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*token.Pair, error)
	Logout(ctx context.Context, tokenString string)
	Profile(ctx context.Context, p *kernel.Principal) (*user.Profile, error)
	Sessions(ctx context.Context, p *kernel.Principal, current kernel.SessionID) ([]session.View, error)
	EndSession(ctx context.Context, p *kernel.Principal, id kernel.SessionID) error
	EndOtherSessions(ctx context.Context, p *kernel.Principal, current kernel.SessionID) (int, error)
}

// Handlers exposes the authentication surface on the public app.
type Handlers struct {
	svc Service
}

// NewHandlers wires the handlers.
func NewHandlers(svc Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes mounts the auth routes. authn protects the routes that
// need a live principal.
func (h *Handlers) RegisterRoutes(app *fiber.App, authn fiber.Handler) {
	grp := app.Group("/api/v1/auth")

	grp.Post("/token", h.login)
	grp.Post("/refresh", h.refresh)
	grp.Post("/logout", h.logout)

	grp.Get("/me", authn, h.me)
	grp.Get("/sessions", authn, h.listSessions)
	grp.Delete("/sessions/:id", authn, h.endSession)
	grp.Delete("/sessions", authn, h.endOtherSessions)
}

// tokenResponse is the login and refresh payload.
type tokenResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	UserInfo     *user.Profile `json:"user_info,omitempty"`
}

// login accepts the OAuth2 password-grant form fields.
func (h *Handlers) login(c *fiber.Ctx) error {
	creds := auth.Credentials{
		Identifier: c.FormValue("username"),
		Password:   c.FormValue("password"),
		IP:         c.IP(),
		UserAgent:  c.Get(fiber.HeaderUserAgent),
	}

	result, err := h.svc.Login(c.UserContext(), creds)
	if err != nil {
		return err
	}

	return gateway.Respond(c, fiber.StatusOK, tokenResponse{
		AccessToken:  result.Pair.AccessToken,
		RefreshToken: result.Pair.RefreshToken,
		TokenType:    result.Pair.TokenType,
		ExpiresIn:    result.Pair.ExpiresIn,
		UserInfo:     result.User,
	})
}

func (h *Handlers) refresh(c *fiber.Ctx) error {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&body); err != nil || body.RefreshToken == "" {
		return token.ErrMissingToken()
	}

	pair, err := h.svc.Refresh(c.UserContext(), body.RefreshToken)
	if err != nil {
		return err
	}

	return gateway.Respond(c, fiber.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    pair.TokenType,
		ExpiresIn:    pair.ExpiresIn,
	})
}

// logout accepts the token from the body or falls back to the bearer. A
// missing token still succeeds.
func (h *Handlers) logout(c *fiber.Ctx) error {
	var body struct {
		Token string `json:"token"`
	}
	_ = c.BodyParser(&body)

	tok := body.Token
	if tok == "" {
		tok = gateway.BearerToken(c)
	}

	h.svc.Logout(c.UserContext(), tok)
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"logged_out": true})
}

func (h *Handlers) me(c *fiber.Ctx) error {
	profile, err := h.svc.Profile(c.UserContext(), gateway.PrincipalFrom(c))
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, profile)
}

func (h *Handlers) listSessions(c *fiber.Ctx) error {
	views, err := h.svc.Sessions(c.UserContext(), gateway.PrincipalFrom(c), gateway.SessionIDFrom(c))
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"sessions": views})
}

func (h *Handlers) endSession(c *fiber.Ctx) error {
	id := kernel.NewSessionID(c.Params("id"))
	if err := h.svc.EndSession(c.UserContext(), gateway.PrincipalFrom(c), id); err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"terminated": id.String()})
}

func (h *Handlers) endOtherSessions(c *fiber.Ctx) error {
	n, err := h.svc.EndOtherSessions(c.UserContext(), gateway.PrincipalFrom(c), gateway.SessionIDFrom(c))
	if err != nil {
		return err
	}
	return gateway.Respond(c, fiber.StatusOK, fiber.Map{"terminated_count": n})
}
