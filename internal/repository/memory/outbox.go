package memory

import (
	"context"
	"sort"
	"time"

	"bank/internal/domain"
)

type outboxRepo struct{ t *tx }

func applyOutboxStatus(msg *domain.OutboxMessage, status domain.OutboxMessageStatus, now time.Time) {
	msg.Status = status
	if status == domain.OutboxStatusSent {
		msg.SentAt = &now
	} else {
		msg.SentAt = nil
	}
}

func (r outboxRepo) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	if err := r.t.check(); err != nil {
		return err
	}
	m := *msg
	m.Payload = append([]byte(nil), msg.Payload...)
	r.t.outbox = append(r.t.outbox, m)
	return nil
}

// GetPending claims committed pending rows that no other transaction holds,
// the in-memory counterpart of FOR UPDATE SKIP LOCKED.
func (r outboxRepo) GetPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}

	t.s.mu.RLock()
	candidates := make([]*outboxRow, 0, len(t.s.outbox))
	for _, row := range t.s.outbox {
		if row.msg.Status == domain.OutboxStatusPending {
			candidates = append(candidates, row)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].msg.CreatedAt.Before(candidates[j].msg.CreatedAt)
	})

	var messages []domain.OutboxMessage
	for _, row := range candidates {
		if len(messages) >= limit {
			break
		}
		if !row.lock.tryLock() {
			continue
		}
		t.heldOutbox = append(t.heldOutbox, row)
		msg := row.msg
		msg.Payload = append([]byte(nil), row.msg.Payload...)
		messages = append(messages, msg)
	}
	t.s.mu.RUnlock()
	return messages, nil
}

func (r outboxRepo) UpdateStatus(ctx context.Context, id string, status domain.OutboxMessageStatus) error {
	if err := r.t.check(); err != nil {
		return err
	}
	r.t.outboxStatus[id] = status
	return nil
}

type autoOutbox struct{ s *Store }

func (a autoOutbox) Create(ctx context.Context, msg *domain.OutboxMessage) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Outbox().Create(ctx, msg)
	})
	return err
}

func (a autoOutbox) GetPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) ([]domain.OutboxMessage, error) {
		return r.Outbox().GetPending(ctx, limit)
	})
}

func (a autoOutbox) UpdateStatus(ctx context.Context, id string, status domain.OutboxMessageStatus) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Outbox().UpdateStatus(ctx, id, status)
	})
	return err
}
