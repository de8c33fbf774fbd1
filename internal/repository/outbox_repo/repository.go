package outbox_repo

import (
	"context"

	"bank/internal/domain"
)

type OutboxRepository interface {
	Create(ctx context.Context, msg *domain.OutboxMessage) error
	// GetPending returns up to limit pending messages, oldest first, locked
	// for the current transaction. Rows locked elsewhere are skipped.
	GetPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error)
	UpdateStatus(ctx context.Context, id string, status domain.OutboxMessageStatus) error
}
