package util

import (
	"github.com/google/uuid"
)

// IDGenerator hands out entity identifiers. Services take it as a dependency
// so tests can produce predictable ids.
type IDGenerator interface {
	NewID() string
}

type UUIDGenerator struct{}

func (UUIDGenerator) NewID() string {
	return GenerateUUID()
}

func GenerateUUID() string {
	return uuid.NewString()
}
