package gateway

import (
	"errors"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

// Envelope is the uniform response shape for everything the gateway itself
// originates. Proxied upstream successes pass through untouched.
type Envelope struct {
	Success   bool          `json:"success"`
	Data      interface{}   `json:"data,omitempty"`
	Error     *ErrorPayload `json:"error,omitempty"`
	RequestID string        `json:"request_id"`
	Timestamp string        `json:"timestamp"`
}

// ErrorPayload is the error half of the envelope.
type ErrorPayload struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// RequestIDHeader is echoed on every response and minted at ingress when
// absent.
const RequestIDHeader = "X-Request-Id"

// Respond writes a success envelope.
func Respond(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(Envelope{
		Success:   true,
		Data:      data,
		RequestID: requestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// ErrorHandler is the app-level translation edge: structured errors carry
// their own status and code, anything else becomes an opaque 500. It is the
// only place internal errors meet the wire.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *errx.Error
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= 500 {
			logx.WithError(err).WithFields(map[string]interface{}{
				"request_id": requestID(c),
				"path":       c.Path(),
			}).Error("request failed")
		}
		return writeError(c, appErr.HTTPStatus, appErr.Code, appErr.Message, appErr.Details)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return writeError(c, fiberErr.Code, "5000", fiberErr.Message, nil)
	}

	logx.WithError(err).WithField("request_id", requestID(c)).Error("unhandled error")
	return writeError(c, fiber.StatusInternalServerError, "5000", "Internal server error", nil)
}

// RespondError writes an error envelope directly, bypassing the error
// handler. The proxy uses it to re-emit upstream error envelopes under this
// request's id.
func RespondError(c *fiber.Ctx, status int, code, message string, details map[string]interface{}) error {
	return writeError(c, status, code, message, details)
}

func writeError(c *fiber.Ctx, status int, code, message string, details map[string]interface{}) error {
	if status == fiber.StatusUnauthorized {
		c.Set(fiber.HeaderWWWAuthenticate, bearerChallenge(code))
	}
	if len(details) == 0 {
		details = nil
	}
	return c.Status(status).JSON(Envelope{
		Success:   false,
		Error:     &ErrorPayload{Code: code, Message: message, Details: details},
		RequestID: requestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// bearerChallenge picks the WWW-Authenticate value for a 401. A credential
// that was presented but is no longer good (expired, revoked, bad signature)
// carries the RFC 6750 invalid_token attribute; an absent or malformed one
// gets the bare scheme.
func bearerChallenge(code string) string {
	switch code {
	case token.CodeTokenExpired.Code, token.CodeTokenRevoked.Code, token.CodeBadSignature.Code:
		return `Bearer error="invalid_token"`
	default:
		return "Bearer"
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("request_id").(string); ok {
		return id
	}
	return c.Get(RequestIDHeader)
}
