package transfers

import (
	"context"
	"errors"

	"bank/internal/domain"
	"bank/internal/money"
	"bank/internal/repository"
	"bank/internal/util"

	"go.uber.org/zap"
)

const aggregateType = "account"

type TransferRequest struct {
	CallerID    string
	SenderID    string
	ReceiverID  string
	Value       money.Money
	Description string
}

type TransferService interface {
	// Transfer moves Value from SenderID to ReceiverID. The caller must own
	// the sender account.
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error)
	// Deposit credits the account unconditionally.
	Deposit(ctx context.Context, accountID string, value money.Money, description string) (*domain.Transfer, error)
	// Withdraw debits an account owned by callerID. It is rejected with
	// ErrInsufficientFunds when the balance is below value.
	Withdraw(ctx context.Context, callerID, accountID string, value money.Money, description string) (*domain.Transfer, error)
}

type transferService struct {
	store  repository.Store
	ids    util.IDGenerator
	clock  util.Clock
	logger *zap.Logger
}

func NewTransferService(store repository.Store, ids util.IDGenerator, clock util.Clock, logger *zap.Logger) TransferService {
	return &transferService{
		store:  store,
		ids:    ids,
		clock:  clock,
		logger: logger.With(zap.String("component", "transfer_service")),
	}
}

func validateValue(value money.Money) error {
	if !value.IsPositive() || !value.InRange() {
		return domain.ErrInvalidAmount
	}
	return nil
}

func (s *transferService) Transfer(ctx context.Context, req TransferRequest) (*domain.Transfer, error) {
	logger := s.logger.With(
		zap.String("sender_id", req.SenderID),
		zap.String("receiver_id", req.ReceiverID),
		zap.String("amount", req.Value.String()))

	if err := validateValue(req.Value); err != nil {
		logger.Warn("Transfer rejected", zap.Error(err))
		return nil, err
	}
	if req.SenderID == "" || req.ReceiverID == "" || req.SenderID == req.ReceiverID {
		logger.Warn("Transfer rejected", zap.Error(domain.ErrInvalidTransfer))
		return nil, domain.ErrInvalidTransfer
	}

	var entry *domain.Transfer
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		locked, err := repos.Accounts().LockForUpdate(ctx, req.SenderID, req.ReceiverID)
		if err != nil {
			return err
		}
		sender := locked[req.SenderID]
		if sender.Balance.LessThan(req.Value) {
			return domain.ErrInsufficientFunds
		}
		if !sender.OwnedBy(req.CallerID) {
			return domain.ErrNotOwner
		}

		senderID, receiverID := req.SenderID, req.ReceiverID
		entry, err = s.record(ctx, repos, &senderID, &receiverID, req.Value, req.Description, domain.EventTransferCompleted)
		if err != nil {
			return err
		}
		if _, err := repos.Accounts().AdjustBalance(ctx, req.SenderID, req.Value.Neg()); err != nil {
			return err
		}
		_, err = repos.Accounts().AdjustBalance(ctx, req.ReceiverID, req.Value)
		return err
	})
	if err != nil {
		return nil, s.fail(logger, "Transfer", err)
	}

	logger.Info("Transfer completed", zap.String("transfer_id", entry.ID))
	return entry, nil
}

func (s *transferService) Deposit(ctx context.Context, accountID string, value money.Money, description string) (*domain.Transfer, error) {
	logger := s.logger.With(zap.String("account_id", accountID), zap.String("amount", value.String()))

	if err := validateValue(value); err != nil {
		logger.Warn("Deposit rejected", zap.Error(err))
		return nil, err
	}

	var entry *domain.Transfer
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if _, err := repos.Accounts().LockForUpdate(ctx, accountID); err != nil {
			return err
		}
		var err error
		entry, err = s.record(ctx, repos, nil, &accountID, value, description, domain.EventDepositCompleted)
		if err != nil {
			return err
		}
		_, err = repos.Accounts().AdjustBalance(ctx, accountID, value)
		return err
	})
	if err != nil {
		return nil, s.fail(logger, "Deposit", err)
	}

	logger.Info("Deposit completed", zap.String("transfer_id", entry.ID))
	return entry, nil
}

func (s *transferService) Withdraw(ctx context.Context, callerID, accountID string, value money.Money, description string) (*domain.Transfer, error) {
	logger := s.logger.With(zap.String("account_id", accountID), zap.String("amount", value.String()))

	if err := validateValue(value); err != nil {
		logger.Warn("Withdrawal rejected", zap.Error(err))
		return nil, err
	}

	var entry *domain.Transfer
	err := s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		locked, err := repos.Accounts().LockForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		account := locked[accountID]
		if account.Balance.LessThan(value) {
			return domain.ErrInsufficientFunds
		}
		if !account.OwnedBy(callerID) {
			return domain.ErrNotOwner
		}

		entry, err = s.record(ctx, repos, &accountID, nil, value, description, domain.EventWithdrawalCompleted)
		if err != nil {
			return err
		}
		// AdjustBalance floors the result at zero.
		_, err = repos.Accounts().AdjustBalance(ctx, accountID, value.Neg())
		return err
	})
	if err != nil {
		return nil, s.fail(logger, "Withdrawal", err)
	}

	logger.Info("Withdrawal completed", zap.String("transfer_id", entry.ID))
	return entry, nil
}

// record appends the ledger entry and its outbox event. It runs before the
// balance writes of the same transaction.
func (s *transferService) record(
	ctx context.Context,
	repos repository.Repositories,
	senderID, receiverID *string,
	value money.Money,
	description string,
	eventType string,
) (*domain.Transfer, error) {
	now := s.clock.Now()
	entry, err := domain.NewTransfer(s.ids.NewID(), senderID, receiverID, value, description, now)
	if err != nil {
		return nil, err
	}
	if err := repos.Transfers().Create(ctx, entry); err != nil {
		return nil, err
	}

	var aggregateID string
	if senderID != nil {
		aggregateID = *senderID
	} else {
		aggregateID = *receiverID
	}
	msg, err := domain.NewOutboxMessage(s.ids.NewID(), aggregateType, aggregateID, eventType, domain.LedgerEvent{
		TransferID:  entry.ID,
		SenderID:    senderID,
		ReceiverID:  receiverID,
		Value:       value.String(),
		Description: description,
		Timestamp:   now,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := repos.Outbox().Create(ctx, msg); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *transferService) fail(logger *zap.Logger, op string, err error) error {
	err = domain.TransactionFailure(err)
	if errors.Is(err, domain.ErrTransactionFailed) {
		logger.Error(op+" failed", zap.Error(err))
	} else {
		logger.Warn(op+" rejected", zap.Error(err))
	}
	return err
}
