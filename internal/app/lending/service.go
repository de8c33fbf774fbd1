package lending

import (
	"context"
	"errors"
	"time"

	"bank/internal/domain"
	"bank/internal/money"
	"bank/internal/repository"
	"bank/internal/schedule"
	"bank/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	// Loans must be strictly above this principal.
	LoanMinimum = money.MustParse("100")
	// Credits must not exceed this principal.
	CreditMaximum = money.MustParse("10000")

	DefaultFeeRate = decimal.RequireFromString("1.05")
)

const aggregateType = "account"

type LoanResult struct {
	Loan         *domain.Loan
	Installments []domain.Installment
}

type CreditResult struct {
	Credit       *domain.Credit
	Installments []domain.Installment
}

type LendingService interface {
	// CreateLoan disburses value into the account and stores its
	// installment plan in the same transaction.
	CreateLoan(ctx context.Context, callerID, accountID string, value money.Money, installments int) (*LoanResult, error)
	// CreateCredit stores a deferred-payment plan. The balance is untouched.
	CreateCredit(ctx context.Context, callerID, accountID string, value money.Money, installments int) (*CreditResult, error)
	ListLoans(ctx context.Context, callerID, accountID string) ([]*domain.Loan, error)
	ListCredits(ctx context.Context, callerID, accountID string) ([]*domain.Credit, error)
	LoanInstallments(ctx context.Context, callerID, loanID string) ([]domain.Installment, error)
	CreditInstallments(ctx context.Context, callerID, creditID string) ([]domain.Installment, error)
}

type lendingService struct {
	store   repository.Store
	ids     util.IDGenerator
	clock   util.Clock
	feeRate decimal.Decimal
	logger  *zap.Logger
}

func NewLendingService(
	store repository.Store,
	ids util.IDGenerator,
	clock util.Clock,
	feeRate decimal.Decimal,
	logger *zap.Logger,
) LendingService {
	return &lendingService{
		store:   store,
		ids:     ids,
		clock:   clock,
		feeRate: feeRate,
		logger:  logger.With(zap.String("component", "lending_service")),
	}
}

func (s *lendingService) CreateLoan(ctx context.Context, callerID, accountID string, value money.Money, installments int) (*LoanResult, error) {
	logger := s.logger.With(
		zap.String("account_id", accountID),
		zap.String("amount", value.String()),
		zap.Int("installments", installments))

	if !value.GreaterThan(LoanMinimum) || installments < schedule.MinInstallments {
		logger.Warn("Loan rejected", zap.Error(domain.ErrBelowMinimum))
		return nil, domain.ErrBelowMinimum
	}
	if installments > schedule.MaxInstallments {
		logger.Warn("Loan rejected", zap.Error(domain.ErrAboveMaximum))
		return nil, domain.ErrAboveMaximum
	}
	if !value.InRange() {
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	plan, err := schedule.Loan(value, installments, s.feeRate, now)
	if err != nil {
		return nil, err
	}

	loan := &domain.Loan{
		ID:           s.ids.NewID(),
		AccountID:    accountID,
		Value:        value,
		Installments: installments,
		FeeRate:      s.feeRate,
		CreatedAt:    now,
	}
	rows, err := s.installments(loan.ID, plan)
	if err != nil {
		logger.Warn("Loan rejected", zap.Error(err))
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := s.lockOwned(ctx, repos, callerID, accountID); err != nil {
			return err
		}
		if err := repos.Lending().CreateLoan(ctx, loan, rows); err != nil {
			return err
		}

		// Disbursement is recorded in the ledger like a deposit.
		entry, err := domain.NewTransfer(s.ids.NewID(), nil, &accountID, value, "loan disbursement", now)
		if err != nil {
			return err
		}
		if err := repos.Transfers().Create(ctx, entry); err != nil {
			return err
		}
		if _, err := repos.Accounts().AdjustBalance(ctx, accountID, value); err != nil {
			return err
		}
		return s.publish(ctx, repos, domain.EventLoanCreated, loan.ID, accountID, value, installments, now)
	})
	if err != nil {
		return nil, s.fail(logger, "Loan", err)
	}

	logger.Info("Loan created", zap.String("loan_id", loan.ID))
	return &LoanResult{Loan: loan, Installments: rows}, nil
}

func (s *lendingService) CreateCredit(ctx context.Context, callerID, accountID string, value money.Money, installments int) (*CreditResult, error) {
	logger := s.logger.With(
		zap.String("account_id", accountID),
		zap.String("amount", value.String()),
		zap.Int("installments", installments))

	switch {
	case value.GreaterThan(CreditMaximum), installments > schedule.MaxInstallments:
		logger.Warn("Credit rejected", zap.Error(domain.ErrAboveMaximum))
		return nil, domain.ErrAboveMaximum
	case installments < schedule.MinInstallments:
		logger.Warn("Credit rejected", zap.Error(domain.ErrBelowMinimum))
		return nil, domain.ErrBelowMinimum
	case !value.IsPositive():
		logger.Warn("Credit rejected", zap.Error(domain.ErrInvalidAmount))
		return nil, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	plan, err := schedule.Credit(value, installments, now)
	if err != nil {
		return nil, err
	}

	credit := &domain.Credit{
		ID:           s.ids.NewID(),
		AccountID:    accountID,
		Value:        value,
		Installments: installments,
		CreatedAt:    now,
	}
	rows, err := s.installments(credit.ID, plan)
	if err != nil {
		return nil, err
	}

	err = s.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		if err := s.lockOwned(ctx, repos, callerID, accountID); err != nil {
			return err
		}
		if err := repos.Lending().CreateCredit(ctx, credit, rows); err != nil {
			return err
		}
		return s.publish(ctx, repos, domain.EventCreditCreated, credit.ID, accountID, value, installments, now)
	})
	if err != nil {
		return nil, s.fail(logger, "Credit", err)
	}

	logger.Info("Credit created", zap.String("credit_id", credit.ID))
	return &CreditResult{Credit: credit, Installments: rows}, nil
}

func (s *lendingService) ListLoans(ctx context.Context, callerID, accountID string) ([]*domain.Loan, error) {
	if err := s.checkOwner(ctx, callerID, accountID); err != nil {
		return nil, err
	}
	loans, err := s.store.Lending().ListLoansByAccount(ctx, accountID)
	return loans, domain.TransactionFailure(err)
}

func (s *lendingService) ListCredits(ctx context.Context, callerID, accountID string) ([]*domain.Credit, error) {
	if err := s.checkOwner(ctx, callerID, accountID); err != nil {
		return nil, err
	}
	credits, err := s.store.Lending().ListCreditsByAccount(ctx, accountID)
	return credits, domain.TransactionFailure(err)
}

func (s *lendingService) LoanInstallments(ctx context.Context, callerID, loanID string) ([]domain.Installment, error) {
	loan, err := s.store.Lending().GetLoan(ctx, loanID)
	if err != nil {
		return nil, domain.TransactionFailure(err)
	}
	if err := s.checkOwner(ctx, callerID, loan.AccountID); err != nil {
		return nil, err
	}
	rows, err := s.store.Lending().ListLoanInstallments(ctx, loanID)
	return rows, domain.TransactionFailure(err)
}

func (s *lendingService) CreditInstallments(ctx context.Context, callerID, creditID string) ([]domain.Installment, error) {
	credit, err := s.store.Lending().GetCredit(ctx, creditID)
	if err != nil {
		return nil, domain.TransactionFailure(err)
	}
	if err := s.checkOwner(ctx, callerID, credit.AccountID); err != nil {
		return nil, err
	}
	rows, err := s.store.Lending().ListCreditInstallments(ctx, creditID)
	return rows, domain.TransactionFailure(err)
}

func (s *lendingService) installments(parentID string, plan []schedule.Entry) ([]domain.Installment, error) {
	rows := make([]domain.Installment, 0, len(plan))
	for _, e := range plan {
		if !e.Value.InRange() {
			return nil, domain.ErrInvalidAmount
		}
		rows = append(rows, domain.Installment{
			ID:       s.ids.NewID(),
			ParentID: parentID,
			Sequence: e.Sequence,
			Value:    e.Value,
			DueDate:  e.DueDate,
		})
	}
	return rows, nil
}

func (s *lendingService) lockOwned(ctx context.Context, repos repository.Repositories, callerID, accountID string) error {
	locked, err := repos.Accounts().LockForUpdate(ctx, accountID)
	if err != nil {
		return err
	}
	if !locked[accountID].OwnedBy(callerID) {
		return domain.ErrNotOwner
	}
	return nil
}

func (s *lendingService) checkOwner(ctx context.Context, callerID, accountID string) error {
	account, err := s.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return domain.TransactionFailure(err)
	}
	if !account.OwnedBy(callerID) {
		return domain.ErrNotOwner
	}
	return nil
}

func (s *lendingService) publish(
	ctx context.Context,
	repos repository.Repositories,
	eventType, id, accountID string,
	value money.Money,
	installments int,
	now time.Time,
) error {
	msg, err := domain.NewOutboxMessage(s.ids.NewID(), aggregateType, accountID, eventType, domain.LendingEvent{
		ID:           id,
		AccountID:    accountID,
		Value:        value.String(),
		Installments: installments,
		Timestamp:    now,
	}, now)
	if err != nil {
		return err
	}
	return repos.Outbox().Create(ctx, msg)
}

func (s *lendingService) fail(logger *zap.Logger, op string, err error) error {
	err = domain.TransactionFailure(err)
	if errors.Is(err, domain.ErrTransactionFailed) {
		logger.Error(op+" failed", zap.Error(err))
	} else {
		logger.Warn(op+" rejected", zap.Error(err))
	}
	return err
}
