package transfers_repo

import (
	"context"
	"database/sql"
	"fmt"

	"bank/internal/domain"
)

type transferRepository struct {
	querier domain.Querier
}

func NewTransferRepository(querier domain.Querier) *transferRepository {
	return &transferRepository{querier: querier}
}

func (r *transferRepository) Create(ctx context.Context, transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers (id, sender_id, receiver_id, value, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.querier.ExecContext(ctx, query,
		transfer.ID,
		nullString(transfer.SenderID),
		nullString(transfer.ReceiverID),
		transfer.Value,
		transfer.Description,
		transfer.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record transfer %s: %w", transfer.ID, err)
	}
	return nil
}

func (r *transferRepository) ListByAccount(ctx context.Context, accountID string) ([]*domain.Transfer, error) {
	query := `
		SELECT id, sender_id, receiver_id, value, description, created_at
		FROM transfers
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	rows, err := r.querier.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transfers for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		var (
			transfer   domain.Transfer
			senderID   sql.NullString
			receiverID sql.NullString
		)
		if err := rows.Scan(
			&transfer.ID,
			&senderID,
			&receiverID,
			&transfer.Value,
			&transfer.Description,
			&transfer.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if senderID.Valid {
			transfer.SenderID = &senderID.String
		}
		if receiverID.Valid {
			transfer.ReceiverID = &receiverID.String
		}
		transfers = append(transfers, &transfer)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfers: %w", err)
	}
	return transfers, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
