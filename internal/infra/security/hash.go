package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultBcryptCost is the work factor applied when none is configured.
const DefaultBcryptCost = 12

// Hasher performs one-way password hashing with a configurable bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher constructs a Hasher. Costs outside bcrypt's supported range fall
// back to the default.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	return &Hasher{cost: cost}
}

// Hash generates a salted bcrypt digest of the password.
func (h *Hasher) Hash(password string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Compare reports whether the password matches the stored digest. bcrypt's
// comparison is constant-time with respect to the digest contents. A malformed
// digest is an internal error, not a mismatch.
func (h *Hasher) Compare(password, digest string) (bool, error) {
	if password == "" || digest == "" {
		return false, nil
	}

	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("compare password: %w", err)
}
