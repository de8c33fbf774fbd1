package transfers_repo

import (
	"context"

	"bank/internal/domain"
)

// TransferRepository is the append-only ledger. Entries are never updated or
// deleted.
type TransferRepository interface {
	Create(ctx context.Context, transfer *domain.Transfer) error
	// ListByAccount returns entries where the account is sender or receiver,
	// most recent first.
	ListByAccount(ctx context.Context, accountID string) ([]*domain.Transfer, error)
}
