package usersrv

import (
	"github.com/axonlabs/axongate/pkg/errx"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher implements user.PasswordHasher with bcrypt. The comparison is
// constant time regardless of where the inputs diverge.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher creates a hasher with the given cost; values below the
// bcrypt minimum fall back to cost 12.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost {
		cost = 12
	}
	return &BcryptHasher{cost: cost}
}

// Hash returns the bcrypt hash of the password.
func (h *BcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", errx.Wrap(err, "failed to hash password", errx.TypeInternal)
	}
	return string(bytes), nil
}

// Compare checks the password against the hash; nil means match.
func (h *BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
