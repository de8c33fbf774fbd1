package loginguard

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Credentials hashes new passwords and checks login attempts against the
// stored hash.
type Credentials interface {
	Hash(password string) (string, error)
	Verify(hash, password string) (bool, error)
}

type BcryptCredentials struct {
	cost int
}

// NewBcryptCredentials uses bcrypt.DefaultCost when cost is zero.
func NewBcryptCredentials(cost int) *BcryptCredentials {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptCredentials{cost: cost}
}

func (c *BcryptCredentials) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), c.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify reports a mismatch as (false, nil). Any other bcrypt failure, such
// as a corrupt stored hash, is returned as an error.
func (c *BcryptCredentials) Verify(hash, password string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("failed to verify password: %w", err)
	}
}
