package outbox

import (
	"context"
	"encoding/json"
	"time"

	"bank/internal/domain"
	kafkaInfra "bank/internal/infrastructure/kafka"
	"bank/internal/repository"

	"go.uber.org/zap"
)

// Processor publishes pending outbox messages to Kafka and marks them SENT.
// Delivery is at-least-once: a crash between publish and commit republishes.
type Processor struct {
	store         repository.Store
	kafkaProducer kafkaInfra.Producer
	topic         string
	batchSize     int
	pollInterval  time.Duration
	pollTimeout   time.Duration
	logger        *zap.Logger
}

func NewProcessor(
	store repository.Store,
	kafkaProducer kafkaInfra.Producer,
	topic string,
	batchSize int,
	pollInterval time.Duration,
	pollTimeout time.Duration,
	logger *zap.Logger,
) *Processor {
	if batchSize <= 0 {
		batchSize = 10
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &Processor{
		store:         store,
		kafkaProducer: kafkaProducer,
		topic:         topic,
		batchSize:     batchSize,
		pollInterval:  pollInterval,
		pollTimeout:   pollTimeout,
		logger:        logger,
	}
}

// Start polls until ctx is cancelled.
func (p *Processor) Start(ctx context.Context) {
	p.logger.Info("Starting outbox processor", zap.Duration("poll_interval", p.pollInterval))
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Outbox processor stopped")
			return
		case <-ticker.C:
			if _, err := p.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Outbox poll failed", zap.Error(err))
			}
		}
	}
}

// ProcessOnce publishes one batch and returns how many messages were sent.
// A publish failure ends the batch; the remaining messages stay pending.
func (p *Processor) ProcessOnce(ctx context.Context) (int, error) {
	pollCtx, cancel := context.WithTimeout(ctx, p.pollTimeout)
	defer cancel()

	sent := 0
	err := p.store.WithinTx(pollCtx, func(ctx context.Context, repos repository.Repositories) error {
		messages, err := repos.Outbox().GetPending(ctx, p.batchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			p.logger.Debug("No pending outbox messages found.")
			return nil
		}
		p.logger.Debug("Found pending outbox messages", zap.Int("count", len(messages)))

		for i := range messages {
			msg := &messages[i]
			topic := msg.Topic
			if topic == "" {
				topic = p.topic
			}

			body, err := json.Marshal(domain.NewEventEnvelope(msg))
			if err != nil {
				p.logger.Error("Failed to encode outbox message, marking FAILED", zap.String("message_id", msg.ID), zap.Error(err))
				if err := repos.Outbox().UpdateStatus(ctx, msg.ID, domain.OutboxStatusFailed); err != nil {
					return err
				}
				continue
			}

			if err := p.kafkaProducer.Produce(ctx, msg.Key, topic, body); err != nil {
				p.logger.Error("Failed to send message to Kafka",
					zap.String("message_id", msg.ID),
					zap.String("topic", topic),
					zap.Error(err))
				return nil
			}

			if err := repos.Outbox().UpdateStatus(ctx, msg.ID, domain.OutboxStatusSent); err != nil {
				return err
			}
			sent++
			p.logger.Debug("Outbox message sent",
				zap.String("message_id", msg.ID),
				zap.String("message_type", msg.MessageType),
				zap.String("topic", topic))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		p.logger.Info("Outbox messages published", zap.Int("count", sent))
	}
	return sent, nil
}
