package accounts_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"bank/internal/domain"
	"bank/internal/money"

	"github.com/lib/pq"
)

const accountColumns = `id, agency, number, nickname, balance, user_id, created_at, updated_at`

type accountRepository struct {
	querier domain.Querier
}

func NewAccountRepository(querier domain.Querier) *accountRepository {
	return &accountRepository{querier: querier}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	account := &domain.Account{}
	err := row.Scan(
		&account.ID,
		&account.Agency,
		&account.Number,
		&account.Nickname,
		&account.Balance,
		&account.UserID,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, agency, number, nickname, balance, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.querier.ExecContext(ctx, query,
		account.ID, account.Agency, account.Number, account.Nickname,
		account.Balance, account.UserID, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("account number %s: %w", account.Number, domain.ErrRetryableCollision)
		}
		return fmt.Errorf("failed to create account for user %s: %w", account.UserID, err)
	}
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	account, err := scanAccount(r.querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account %s: %w", id, err)
	}
	return account, nil
}

func (r *accountRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.querier.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for user %s: %w", userID, err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}
	return accounts, nil
}

func (r *accountRepository) LockForUpdate(ctx context.Context, ids ...string) (map[string]*domain.Account, error) {
	ordered := SortedUnique(ids)
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = ANY($1::uuid[]) ORDER BY id FOR UPDATE`

	rows, err := r.querier.QueryContext(ctx, query, pq.Array(ordered))
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts %v: %w", ordered, err)
	}
	defer rows.Close()

	locked := make(map[string]*domain.Account, len(ordered))
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan locked account: %w", err)
		}
		locked[account.ID] = account
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating locked accounts: %w", err)
	}
	if len(locked) != len(ordered) {
		return nil, domain.ErrAccountNotFound
	}
	return locked, nil
}

func (r *accountRepository) AdjustBalance(ctx context.Context, id string, delta money.Money) (*domain.Account, error) {
	checkBalanceQuery := `SELECT balance FROM accounts WHERE id = $1 FOR UPDATE`
	var currentBalance money.Money
	err := r.querier.QueryRowContext(ctx, checkBalanceQuery, id).Scan(&currentBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to check current balance for account %s: %w", id, err)
	}

	newBalance, err := ApplyDelta(currentBalance, delta)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + accountColumns
	account, err := scanAccount(r.querier.QueryRowContext(ctx, query, newBalance, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to update account balance for %s: %w", id, err)
	}
	return account, nil
}

// SortedUnique returns ids deduplicated in ascending order, the order every
// caller must lock account rows in.
func SortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
