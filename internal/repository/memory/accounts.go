package memory

import (
	"context"
	"fmt"
	"sort"

	"bank/internal/domain"
	"bank/internal/money"
	"bank/internal/repository/accounts_repo"
)

type accountRepo struct{ t *tx }

// account returns the version of id visible to the transaction.
func (t *tx) account(id string) (domain.Account, bool) {
	if acc, ok := t.accounts[id]; ok {
		return acc, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	acc, ok := t.s.accounts[id]
	return acc, ok
}

func (r accountRepo) Create(ctx context.Context, account *domain.Account) error {
	t := r.t
	if err := t.check(); err != nil {
		return err
	}

	t.s.mu.RLock()
	_, idTaken := t.s.accounts[account.ID]
	_, numberTaken := t.s.accountNumbers[account.Number]
	t.s.mu.RUnlock()
	if idTaken {
		return fmt.Errorf("account %s already exists", account.ID)
	}
	for _, id := range t.newAccounts {
		if t.accounts[id].Number == account.Number {
			numberTaken = true
		}
	}
	if numberTaken {
		return fmt.Errorf("account number %s: %w", account.Number, domain.ErrRetryableCollision)
	}

	if err := t.lockAccount(ctx, account.ID); err != nil {
		return err
	}
	t.accounts[account.ID] = *account
	t.newAccounts = append(t.newAccounts, account.ID)
	return nil
}

func (r accountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	acc, ok := r.t.account(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &acc, nil
}

func (r accountRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}

	visible := make(map[string]domain.Account)
	t.s.mu.RLock()
	for id, acc := range t.s.accounts {
		if acc.UserID == userID {
			visible[id] = acc
		}
	}
	t.s.mu.RUnlock()
	for id, acc := range t.accounts {
		if acc.UserID == userID {
			visible[id] = acc
		}
	}

	accounts := make([]*domain.Account, 0, len(visible))
	for _, acc := range visible {
		acc := acc
		accounts = append(accounts, &acc)
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID > accounts[j].ID
		}
		return accounts[i].CreatedAt.After(accounts[j].CreatedAt)
	})
	return accounts, nil
}

func (r accountRepo) LockForUpdate(ctx context.Context, ids ...string) (map[string]*domain.Account, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}

	ordered := accounts_repo.SortedUnique(ids)
	for _, id := range ordered {
		if err := t.lockAccount(ctx, id); err != nil {
			return nil, err
		}
	}

	locked := make(map[string]*domain.Account, len(ordered))
	for _, id := range ordered {
		acc, ok := t.account(id)
		if !ok {
			return nil, domain.ErrAccountNotFound
		}
		locked[id] = &acc
	}
	return locked, nil
}

func (r accountRepo) AdjustBalance(ctx context.Context, id string, delta money.Money) (*domain.Account, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}
	if err := t.lockAccount(ctx, id); err != nil {
		return nil, err
	}

	acc, ok := t.account(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	balance, err := accounts_repo.ApplyDelta(acc.Balance, delta)
	if err != nil {
		return nil, err
	}
	acc.Balance = balance
	acc.UpdatedAt = t.s.clock.Now()

	if _, isNew := t.accounts[id]; !isNew {
		t.dirty[id] = true
	}
	t.accounts[id] = acc
	return &acc, nil
}

type autoAccounts struct{ s *Store }

func (a autoAccounts) Create(ctx context.Context, account *domain.Account) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Accounts().Create(ctx, account)
	})
	return err
}

func (a autoAccounts) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (*domain.Account, error) {
		return r.Accounts().GetByID(ctx, id)
	})
}

func (a autoAccounts) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) ([]*domain.Account, error) {
		return r.Accounts().ListByUser(ctx, userID)
	})
}

func (a autoAccounts) LockForUpdate(ctx context.Context, ids ...string) (map[string]*domain.Account, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (map[string]*domain.Account, error) {
		return r.Accounts().LockForUpdate(ctx, ids...)
	})
}

func (a autoAccounts) AdjustBalance(ctx context.Context, id string, delta money.Money) (*domain.Account, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (*domain.Account, error) {
		return r.Accounts().AdjustBalance(ctx, id, delta)
	})
}
