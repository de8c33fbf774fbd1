package accounts_repo

import (
	"context"

	"bank/internal/domain"
	"bank/internal/money"
)

type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Account, error)
	// LockForUpdate row-locks the given accounts in ascending id order and
	// returns them keyed by id. Missing ids yield ErrAccountNotFound.
	LockForUpdate(ctx context.Context, ids ...string) (map[string]*domain.Account, error)
	// AdjustBalance adds delta to the balance. A negative delta larger than
	// the balance fails with ErrInsufficientFunds and changes nothing.
	AdjustBalance(ctx context.Context, id string, delta money.Money) (*domain.Account, error)
}

// ApplyDelta is the balance rule shared by every AccountRepository
// implementation.
func ApplyDelta(balance, delta money.Money) (money.Money, error) {
	next := balance.Add(delta)
	if delta.IsNegative() && next.IsNegative() {
		return balance, domain.ErrInsufficientFunds
	}
	next = money.Max(money.Zero, next)
	if !next.InRange() {
		return balance, domain.ErrInvalidAmount
	}
	return next, nil
}
