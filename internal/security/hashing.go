package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by CheckPassword when the password does not match the stored hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// PasswordHasher hashes and checks user passwords with bcrypt.
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher returns a PasswordHasher; cost is clamped to bcrypt's allowed range.
func NewPasswordHasher(cost int) *PasswordHasher {
	switch {
	case cost <= 0:
		cost = bcrypt.DefaultCost
	case cost < bcrypt.MinCost:
		cost = bcrypt.MinCost
	case cost > bcrypt.MaxCost:
		cost = bcrypt.MaxCost
	}
	return &PasswordHasher{cost: cost}
}

// Cost returns the bcrypt cost used for new hashes.
func (h *PasswordHasher) Cost() int { return h.cost }

// HashPassword returns a bcrypt hash suitable for storage.
func (h *PasswordHasher) HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword returns ErrPasswordMismatch when password does not match hash.
// A malformed hash is reported as a mismatch as well.
func (h *PasswordHasher) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
