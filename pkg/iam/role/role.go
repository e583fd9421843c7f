package role

import (
	"net/http"
	"time"

	"github.com/axonlabs/axongate/pkg/errx"
)

// Role is a named permission set. System roles ship with the platform and
// are immutable.
type Role struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Label       string    `db:"label" json:"label"`
	Permissions []string  `db:"-" json:"permissions"`
	IsSystem    bool      `db:"is_system" json:"is_system"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// HasPermission checks membership in the permission list, honoring the
// "*" and "prefix:*" wildcards.
func (r *Role) HasPermission(perm string) bool {
	for _, have := range r.Permissions {
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

// ============================================================================
// Error Registry
// ============================================================================

var ErrRegistry = errx.NewRegistry("role")

var (
	CodeRoleNotFound  = ErrRegistry.Register(3009, errx.TypeNotFound, http.StatusNotFound, "Role not found")
	CodeRoleImmutable = ErrRegistry.Register(3010, errx.TypeConflict, http.StatusConflict, "System roles cannot be modified")
)

func ErrRoleNotFound() *errx.Error  { return ErrRegistry.New(CodeRoleNotFound) }
func ErrRoleImmutable() *errx.Error { return ErrRegistry.New(CodeRoleImmutable) }
