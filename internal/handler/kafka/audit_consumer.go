package kafka_handler

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bank/internal/domain"
	kafka_infra "bank/internal/infrastructure/kafka"
)

// AuditMessageHandler writes one structured audit line per published event.
// Undecodable messages are logged and acknowledged so they do not block the
// partition.
func AuditMessageHandler(logger *zap.Logger) kafka_infra.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var envelope domain.EventEnvelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			logger.Error("Failed to unmarshal event envelope",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			return nil
		}

		fields := []zap.Field{
			zap.String("event_id", envelope.ID),
			zap.String("event_type", envelope.Type),
			zap.String("aggregate_id", envelope.AggregateID),
			zap.Time("occurred_at", envelope.OccurredAt),
		}

		switch envelope.Type {
		case domain.EventTransferCompleted, domain.EventDepositCompleted, domain.EventWithdrawalCompleted:
			var ev domain.LedgerEvent
			if err := json.Unmarshal(envelope.Payload, &ev); err != nil {
				logger.Error("Failed to unmarshal ledger event", append(fields, zap.Error(err))...)
				return nil
			}
			fields = append(fields, zap.String("transfer_id", ev.TransferID), zap.String("amount", ev.Value))
			if ev.SenderID != nil {
				fields = append(fields, zap.String("sender_id", *ev.SenderID))
			}
			if ev.ReceiverID != nil {
				fields = append(fields, zap.String("receiver_id", *ev.ReceiverID))
			}
			logger.Info("Ledger event", fields...)
		case domain.EventLoanCreated, domain.EventCreditCreated:
			var ev domain.LendingEvent
			if err := json.Unmarshal(envelope.Payload, &ev); err != nil {
				logger.Error("Failed to unmarshal lending event", append(fields, zap.Error(err))...)
				return nil
			}
			logger.Info("Lending event", append(fields,
				zap.String("account_id", ev.AccountID),
				zap.String("amount", ev.Value),
				zap.Int("installments", ev.Installments))...)
		case domain.EventUserLocked:
			var ev domain.UserLockedEvent
			if err := json.Unmarshal(envelope.Payload, &ev); err != nil {
				logger.Error("Failed to unmarshal user locked event", append(fields, zap.Error(err))...)
				return nil
			}
			logger.Warn("User locked out", append(fields,
				zap.String("user_id", ev.UserID),
				zap.Time("unlocked_at", ev.UnlockedAt))...)
		default:
			logger.Warn("Unknown event type", fields...)
		}
		return nil
	}
}
