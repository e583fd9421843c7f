package auth

import (
	"net/http"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/iam/token"
	"github.com/axonlabs/axongate/pkg/iam/user"
)

// LoginResult is what a successful login returns: the minted pair plus the
// redacted owner profile.
type LoginResult struct {
	Pair *token.Pair   `json:"pair"`
	User *user.Profile `json:"user"`
}

// Credentials is the login input. The identifier may be an email or a
// username.
type Credentials struct {
	Identifier string
	Password   string
	IP         string
	UserAgent  string
}

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("auth")

var (
	// CodeInvalidCredentials deliberately covers both unknown identifier
	// and wrong password so responses cannot be used to enumerate accounts.
	CodeInvalidCredentials = ErrRegistry.Register(3004, errx.TypeAuthentication, http.StatusUnauthorized, "Invalid credentials")

	CodeMissingFields = ErrRegistry.Register(1001, errx.TypeValidation, http.StatusBadRequest, "Username and password are required")
)

func ErrInvalidCredentials() *errx.Error { return ErrRegistry.New(CodeInvalidCredentials) }
func ErrMissingFields() *errx.Error      { return ErrRegistry.New(CodeMissingFields) }
