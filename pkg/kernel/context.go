package kernel

// ============================================================================
// Request Identity Types
// ============================================================================

// Principal is the authenticated identity attached to a request after the
// bearer token has been verified.
type Principal struct {
	UserID      UserID   `json:"user_id"`
	TenantID    TenantID `json:"tenant_id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	MFAVerified bool     `json:"mfa_verified"`
}

// IsValid verifies the principal carries the minimum identity
func (p *Principal) IsValid() bool {
	return p != nil && !p.UserID.IsEmpty() && !p.TenantID.IsEmpty()
}

// HasPermission checks a permission, honoring "*" and prefix wildcards
// (e.g. "chat:*" matches "chat:write").
func (p *Principal) HasPermission(perm string) bool {
	if p == nil {
		return false
	}
	for _, have := range p.Permissions {
		if have == perm || have == "*" {
			return true
		}
		if len(have) > 2 && have[len(have)-2:] == ":*" {
			prefix := have[:len(have)-2]
			if len(perm) > len(prefix) && perm[:len(prefix)] == prefix && perm[len(prefix)] == ':' {
				return true
			}
		}
	}
	return false
}

// IsAdmin reports whether the principal holds an admin wildcard
func (p *Principal) IsAdmin() bool {
	return p.HasPermission("*") || p.HasPermission("admin:*")
}

// HasAnyPermission checks if any of the given permissions is held
func (p *Principal) HasAnyPermission(perms ...string) bool {
	for _, perm := range perms {
		if p.HasPermission(perm) {
			return true
		}
	}
	return false
}

// RequestContext travels with a request from ingress to the upstream call.
// It is created by the gateway and passed by argument, never through globals.
type RequestContext struct {
	RequestID string     `json:"request_id"`
	Principal *Principal `json:"principal,omitempty"`
	IP        string     `json:"ip"`
	UserAgent string     `json:"user_agent"`
}

// Authenticated reports whether a valid principal is attached
func (rc *RequestContext) Authenticated() bool {
	return rc != nil && rc.Principal.IsValid()
}

// ============================================================================
// Context Keys
// ============================================================================

type ContextKey string

const (
	// RequestContextKey stores the *RequestContext in fiber locals
	RequestContextKey ContextKey = "request_context"

	// PrincipalKey stores the *Principal in fiber locals
	PrincipalKey ContextKey = "principal"
)
