package domain

import (
	"encoding/json"
	"time"
)

const (
	EventTransferCompleted   = "transfer.completed"
	EventDepositCompleted    = "deposit.completed"
	EventWithdrawalCompleted = "withdrawal.completed"
	EventLoanCreated         = "loan.created"
	EventCreditCreated       = "credit.created"
	EventUserLocked          = "user.locked"
)

// LedgerEvent is published for every committed balance-affecting entry.
type LedgerEvent struct {
	TransferID  string    `json:"transfer_id"`
	SenderID    *string   `json:"sender_id,omitempty"`
	ReceiverID  *string   `json:"receiver_id,omitempty"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

type LendingEvent struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	Value        string    `json:"value"`
	Installments int       `json:"installments"`
	Timestamp    time.Time `json:"timestamp"`
}

type UserLockedEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	LockedAt   time.Time `json:"locked_at"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// NewOutboxMessage serializes payload into a pending outbox message keyed by
// the aggregate id.
func NewOutboxMessage(id, aggregateType, aggregateID, messageType string, payload interface{}, createdAt time.Time) (*OutboxMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxMessage{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		MessageType:   messageType,
		Key:           aggregateID,
		Payload:       body,
		Status:        OutboxStatusPending,
		CreatedAt:     createdAt,
	}, nil
}

// EventEnvelope is the Kafka message body: the stored payload wrapped with
// the outbox metadata consumers need to dispatch on.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

func NewEventEnvelope(msg *OutboxMessage) EventEnvelope {
	return EventEnvelope{
		ID:            msg.ID,
		Type:          msg.MessageType,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		OccurredAt:    msg.CreatedAt,
		Payload:       json.RawMessage(msg.Payload),
	}
}
