package domain

import (
	"time"

	"bank/internal/money"
)

// Transfer is one immutable ledger entry. A nil SenderID is money entering
// the system (deposit, loan disbursement); a nil ReceiverID is a withdrawal.
type Transfer struct {
	ID          string
	SenderID    *string
	ReceiverID  *string
	Value       money.Money
	Description string
	CreatedAt   time.Time
}

// NewTransfer validates the entry shape before it is recorded.
func NewTransfer(id string, senderID, receiverID *string, value money.Money, description string, createdAt time.Time) (*Transfer, error) {
	if senderID == nil && receiverID == nil {
		return nil, ErrInvalidTransfer
	}
	if !value.IsPositive() {
		return nil, ErrInvalidTransfer
	}
	return &Transfer{
		ID:          id,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Value:       value,
		Description: description,
		CreatedAt:   createdAt,
	}, nil
}

// Involves reports whether accountID is either side of the entry.
func (t *Transfer) Involves(accountID string) bool {
	return (t.SenderID != nil && *t.SenderID == accountID) ||
		(t.ReceiverID != nil && *t.ReceiverID == accountID)
}
