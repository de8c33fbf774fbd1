package lending_repo

import (
	"context"

	"bank/internal/domain"
)

// LendingRepository persists loans, credits and their installment batches.
type LendingRepository interface {
	CreateLoan(ctx context.Context, loan *domain.Loan, installments []domain.Installment) error
	CreateCredit(ctx context.Context, credit *domain.Credit, installments []domain.Installment) error
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	GetCredit(ctx context.Context, id string) (*domain.Credit, error)
	ListLoansByAccount(ctx context.Context, accountID string) ([]*domain.Loan, error)
	ListCreditsByAccount(ctx context.Context, accountID string) ([]*domain.Credit, error)
	ListLoanInstallments(ctx context.Context, loanID string) ([]domain.Installment, error)
	ListCreditInstallments(ctx context.Context, creditID string) ([]domain.Installment, error)
}
