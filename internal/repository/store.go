package repository

import (
	"context"
	"database/sql"
	"fmt"

	"bank/internal/domain"
	"bank/internal/repository/accounts_repo"
	"bank/internal/repository/lending_repo"
	"bank/internal/repository/outbox_repo"
	"bank/internal/repository/transfers_repo"
	"bank/internal/repository/users_repo"

	"go.uber.org/zap"
)

// Repositories groups the repositories bound to one connection or one
// transaction.
type Repositories interface {
	Accounts() accounts_repo.AccountRepository
	Transfers() transfers_repo.TransferRepository
	Lending() lending_repo.LendingRepository
	Users() users_repo.UserRepository
	Outbox() outbox_repo.OutboxRepository
}

// Store reads outside of a transaction through its embedded Repositories and
// runs read-check-write sequences through WithinTx. fn's writes are committed
// only when it returns nil.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

type repositories struct {
	accounts  accounts_repo.AccountRepository
	transfers transfers_repo.TransferRepository
	lending   lending_repo.LendingRepository
	users     users_repo.UserRepository
	outbox    outbox_repo.OutboxRepository
}

func newRepositories(querier domain.Querier) *repositories {
	return &repositories{
		accounts:  accounts_repo.NewAccountRepository(querier),
		transfers: transfers_repo.NewTransferRepository(querier),
		lending:   lending_repo.NewLendingRepository(querier),
		users:     users_repo.NewUserRepository(querier),
		outbox:    outbox_repo.NewOutboxRepository(querier),
	}
}

func (r *repositories) Accounts() accounts_repo.AccountRepository    { return r.accounts }
func (r *repositories) Transfers() transfers_repo.TransferRepository { return r.transfers }
func (r *repositories) Lending() lending_repo.LendingRepository      { return r.lending }
func (r *repositories) Users() users_repo.UserRepository             { return r.users }
func (r *repositories) Outbox() outbox_repo.OutboxRepository         { return r.outbox }

type PostgresStore struct {
	*repositories
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{
		repositories: newRepositories(db),
		db:           db,
		logger:       logger.With(zap.String("component", "postgres_store")),
	}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Recovered panic inside transaction, rolling back", zap.Any("panic", r))
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("Failed to roll back transaction", zap.Error(rbErr), zap.NamedError("cause", err))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
