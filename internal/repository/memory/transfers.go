package memory

import (
	"context"
	"sort"

	"bank/internal/domain"
)

type storedTransfer struct {
	seq      int64
	transfer domain.Transfer
}

type transferRepo struct{ t *tx }

func (r transferRepo) Create(ctx context.Context, transfer *domain.Transfer) error {
	if err := r.t.check(); err != nil {
		return err
	}
	if (transfer.SenderID == nil && transfer.ReceiverID == nil) || !transfer.Value.IsPositive() {
		return domain.ErrInvalidTransfer
	}
	r.t.transfers = append(r.t.transfers, *transfer)
	return nil
}

// ListByAccount returns entries where accountID is sender or receiver, newest
// first. Entries created with the same timestamp keep reverse insertion order.
func (r transferRepo) ListByAccount(ctx context.Context, accountID string) ([]*domain.Transfer, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}

	var matched []storedTransfer
	t.s.mu.RLock()
	for _, st := range t.s.transfers {
		if st.transfer.Involves(accountID) {
			matched = append(matched, st)
		}
	}
	next := t.s.nextSeq
	t.s.mu.RUnlock()
	for _, tr := range t.transfers {
		next++
		if tr.Involves(accountID) {
			matched = append(matched, storedTransfer{seq: next, transfer: tr})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.transfer.CreatedAt.Equal(b.transfer.CreatedAt) {
			return a.seq > b.seq
		}
		return a.transfer.CreatedAt.After(b.transfer.CreatedAt)
	})

	out := make([]*domain.Transfer, 0, len(matched))
	for _, st := range matched {
		tr := st.transfer
		out = append(out, &tr)
	}
	return out, nil
}

type autoTransfers struct{ s *Store }

func (a autoTransfers) Create(ctx context.Context, transfer *domain.Transfer) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Transfers().Create(ctx, transfer)
	})
	return err
}

func (a autoTransfers) ListByAccount(ctx context.Context, accountID string) ([]*domain.Transfer, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) ([]*domain.Transfer, error) {
		return r.Transfers().ListByAccount(ctx, accountID)
	})
}
