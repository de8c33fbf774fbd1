package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const AccountNumberLength = 16

// AccountNumberGenerator produces candidate account numbers. Uniqueness is
// checked by the store when the account is inserted.
type AccountNumberGenerator interface {
	Generate() (string, error)
}

type RandomAccountNumberGenerator struct{}

func (RandomAccountNumberGenerator) Generate() (string, error) {
	digits := make([]byte, AccountNumberLength)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
