package token

import (
	"net/http"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
	"github.com/axonlabs/axongate/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

// Kind tags a token as access or refresh. Verification demands the expected
// kind; an access token can never stand in for a refresh token or vice versa.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the signed claims document carried by every bearer token.
type Claims struct {
	TenantID    kernel.TenantID `json:"tid"`
	Email       string          `json:"email"`
	Role        string          `json:"role"`
	Permissions []string        `json:"perms"`
	IsActive    bool            `json:"act"`
	MFAVerified bool            `json:"mfa"`
	Kind        Kind            `json:"typ"`
	SessionID   string          `json:"sid"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a typed id
func (c *Claims) UserID() kernel.UserID {
	return kernel.NewUserID(c.Subject)
}

// JTI returns the token's unique id
func (c *Claims) JTI() string {
	return c.ID
}

// Principal converts verified claims into the request principal.
func (c *Claims) Principal() *kernel.Principal {
	return &kernel.Principal{
		UserID:      c.UserID(),
		TenantID:    c.TenantID,
		Email:       c.Email,
		Role:        c.Role,
		Permissions: c.Permissions,
		MFAVerified: c.MFAVerified,
	}
}

// Pair is one freshly minted access+refresh pair, bound to a session.
type Pair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessJTI        string    `json:"-"`
	RefreshJTI       string    `json:"-"`
	SessionID        string    `json:"-"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// ============================================================================
// Error Registry: the closed verify-error set
// ============================================================================

var ErrRegistry = errx.NewRegistry("token")

var (
	CodeMissingToken   = ErrRegistry.Register(2001, errx.TypeAuthentication, http.StatusUnauthorized, "Authentication required")
	CodeTokenExpired   = ErrRegistry.Register(2002, errx.TypeAuthentication, http.StatusUnauthorized, "Token has expired")
	CodeTokenMalformed = ErrRegistry.Register(2003, errx.TypeAuthentication, http.StatusUnauthorized, "Token is malformed")
	CodeWrongKind      = ErrRegistry.Register(2004, errx.TypeAuthentication, http.StatusUnauthorized, "Token kind mismatch")
	CodeTokenRevoked   = ErrRegistry.Register(2005, errx.TypeAuthentication, http.StatusUnauthorized, "Token has been revoked")
	CodeBadSignature   = ErrRegistry.Register(2012, errx.TypeAuthentication, http.StatusUnauthorized, "Token signature is invalid")
	CodeTokenInvalid   = ErrRegistry.Register(2013, errx.TypeAuthentication, http.StatusUnauthorized, "Token is invalid")

	CodeSigningFailed = ErrRegistry.Register(5005, errx.TypeInternal, http.StatusInternalServerError, "Token signing failed")
)

func ErrMissingToken() *errx.Error   { return ErrRegistry.New(CodeMissingToken) }
func ErrTokenExpired() *errx.Error   { return ErrRegistry.New(CodeTokenExpired) }
func ErrTokenMalformed() *errx.Error { return ErrRegistry.New(CodeTokenMalformed) }
func ErrWrongKind() *errx.Error      { return ErrRegistry.New(CodeWrongKind) }
func ErrTokenRevoked() *errx.Error   { return ErrRegistry.New(CodeTokenRevoked) }
func ErrBadSignature() *errx.Error   { return ErrRegistry.New(CodeBadSignature) }
func ErrTokenInvalid() *errx.Error   { return ErrRegistry.New(CodeTokenInvalid) }
func ErrSigningFailed() *errx.Error  { return ErrRegistry.New(CodeSigningFailed) }
