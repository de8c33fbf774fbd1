package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bank/internal/domain"
	"bank/internal/repository"
	"bank/internal/util"

	"go.uber.org/zap"
)

// maxNumberAttempts bounds how many generated account numbers are tried
// before ErrRetryableCollision is returned to the caller.
const maxNumberAttempts = 3

type AccountService interface {
	OpenAccount(ctx context.Context, userID, nickname string) (*domain.Account, error)
	ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error)
	// GetAccount returns the account only if userID owns it.
	GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error)
	Statement(ctx context.Context, userID, accountID string) ([]*domain.Transfer, error)
}

type accountService struct {
	store   repository.Store
	numbers util.AccountNumberGenerator
	ids     util.IDGenerator
	clock   util.Clock
	logger  *zap.Logger
}

func NewAccountService(
	store repository.Store,
	numbers util.AccountNumberGenerator,
	ids util.IDGenerator,
	clock util.Clock,
	logger *zap.Logger,
) AccountService {
	return &accountService{
		store:   store,
		numbers: numbers,
		ids:     ids,
		clock:   clock,
		logger:  logger.With(zap.String("component", "account_service")),
	}
}

func (s *accountService) OpenAccount(ctx context.Context, userID, nickname string) (*domain.Account, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, domain.ErrNicknameRequired
	}
	if _, err := s.store.Users().GetByID(ctx, userID); err != nil {
		return nil, domain.TransactionFailure(err)
	}

	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		number, err := s.numbers.Generate()
		if err != nil {
			return nil, fmt.Errorf("%w: generate account number: %w", domain.ErrTransactionFailed, err)
		}

		now := s.clock.Now()
		account := &domain.Account{
			ID:        s.ids.NewID(),
			Agency:    domain.DefaultAgency,
			Number:    number,
			Nickname:  nickname,
			UserID:    userID,
			CreatedAt: now,
			UpdatedAt: now,
		}

		err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
			return repos.Accounts().Create(ctx, account)
		})
		if err == nil {
			s.logger.Info("Account opened",
				zap.String("account_id", account.ID),
				zap.String("user_id", userID),
				zap.String("number", account.Number))
			return account, nil
		}
		if !errors.Is(err, domain.ErrRetryableCollision) {
			s.logger.Error("Failed to open account", zap.String("user_id", userID), zap.Error(err))
			return nil, domain.TransactionFailure(err)
		}

		lastErr = err
		s.logger.Warn("Account number collision, retrying",
			zap.String("user_id", userID),
			zap.Int("attempt", attempt))
	}
	return nil, lastErr
}

func (s *accountService) ListAccounts(ctx context.Context, userID string) ([]*domain.Account, error) {
	accounts, err := s.store.Accounts().ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list accounts", zap.String("user_id", userID), zap.Error(err))
		return nil, domain.TransactionFailure(err)
	}
	return accounts, nil
}

func (s *accountService) GetAccount(ctx context.Context, userID, accountID string) (*domain.Account, error) {
	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, domain.TransactionFailure(err)
	}
	if !account.OwnedBy(userID) {
		s.logger.Warn("Account access denied", zap.String("account_id", accountID), zap.String("user_id", userID))
		return nil, domain.ErrNotOwner
	}
	return account, nil
}

// Statement returns the account's ledger entries, most recent first.
func (s *accountService) Statement(ctx context.Context, userID, accountID string) ([]*domain.Transfer, error) {
	if _, err := s.GetAccount(ctx, userID, accountID); err != nil {
		return nil, err
	}
	entries, err := s.store.Transfers().ListByAccount(ctx, accountID)
	if err != nil {
		s.logger.Error("Failed to load statement", zap.String("account_id", accountID), zap.Error(err))
		return nil, domain.TransactionFailure(err)
	}
	return entries, nil
}
