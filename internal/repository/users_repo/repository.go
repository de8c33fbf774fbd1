package users_repo

import (
	"context"

	"bank/internal/domain"
)

type UserRepository interface {
	Create(ctx context.Context, user *domain.UserRecord) error
	GetByID(ctx context.Context, id string) (*domain.UserRecord, error)
	GetByEmail(ctx context.Context, email string) (*domain.UserRecord, error)
	// GetByEmailForUpdate locks the row until the surrounding transaction ends.
	GetByEmailForUpdate(ctx context.Context, email string) (*domain.UserRecord, error)
	// Save persists the lockout fields of user.
	Save(ctx context.Context, user *domain.UserRecord) error
}
