package lending_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bank/internal/domain"
)

type lendingRepository struct {
	querier domain.Querier
}

func NewLendingRepository(querier domain.Querier) *lendingRepository {
	return &lendingRepository{querier: querier}
}

func (r *lendingRepository) CreateLoan(ctx context.Context, loan *domain.Loan, installments []domain.Installment) error {
	query := `
		INSERT INTO loans (id, account_id, value, installments, fee_rate, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.querier.ExecContext(ctx, query,
		loan.ID, loan.AccountID, loan.Value, loan.Installments, loan.FeeRate, loan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan for account %s: %w", loan.AccountID, err)
	}
	return r.insertInstallments(ctx, "loan_installments", "loan_id", installments)
}

func (r *lendingRepository) CreateCredit(ctx context.Context, credit *domain.Credit, installments []domain.Installment) error {
	query := `
		INSERT INTO credits (id, account_id, value, installments, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.querier.ExecContext(ctx, query,
		credit.ID, credit.AccountID, credit.Value, credit.Installments, credit.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create credit for account %s: %w", credit.AccountID, err)
	}
	return r.insertInstallments(ctx, "credit_installments", "credit_id", installments)
}

// insertInstallments writes the whole batch in a single statement.
func (r *lendingRepository) insertInstallments(ctx context.Context, table, parentColumn string, installments []domain.Installment) error {
	if len(installments) == 0 {
		return nil
	}

	const columns = 6
	placeholders := make([]string, 0, len(installments))
	args := make([]interface{}, 0, len(installments)*columns)
	for i, inst := range installments {
		base := i * columns
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6))
		var paidAt sql.NullTime
		if inst.PaidAt != nil {
			paidAt = sql.NullTime{Time: *inst.PaidAt, Valid: true}
		}
		args = append(args, inst.ID, inst.ParentID, inst.Sequence, inst.Value, inst.DueDate, paidAt)
	}

	query := fmt.Sprintf(`INSERT INTO %s (id, %s, sequence, value, due_date, paid_at) VALUES %s`,
		table, parentColumn, strings.Join(placeholders, ", "))
	if _, err := r.querier.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert %d rows into %s: %w", len(installments), table, err)
	}
	return nil
}

func (r *lendingRepository) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	query := `SELECT id, account_id, value, installments, fee_rate, created_at FROM loans WHERE id = $1`
	loan := &domain.Loan{}
	err := r.querier.QueryRowContext(ctx, query, id).Scan(
		&loan.ID, &loan.AccountID, &loan.Value, &loan.Installments, &loan.FeeRate, &loan.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan %s: %w", id, err)
	}
	return loan, nil
}

func (r *lendingRepository) GetCredit(ctx context.Context, id string) (*domain.Credit, error) {
	query := `SELECT id, account_id, value, installments, created_at FROM credits WHERE id = $1`
	credit := &domain.Credit{}
	err := r.querier.QueryRowContext(ctx, query, id).Scan(
		&credit.ID, &credit.AccountID, &credit.Value, &credit.Installments, &credit.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCreditNotFound
		}
		return nil, fmt.Errorf("failed to get credit %s: %w", id, err)
	}
	return credit, nil
}

func (r *lendingRepository) ListLoansByAccount(ctx context.Context, accountID string) ([]*domain.Loan, error) {
	query := `
		SELECT id, account_id, value, installments, fee_rate, created_at
		FROM loans WHERE account_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.querier.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var loans []*domain.Loan
	for rows.Next() {
		loan := &domain.Loan{}
		if err := rows.Scan(&loan.ID, &loan.AccountID, &loan.Value, &loan.Installments, &loan.FeeRate, &loan.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, loan)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating loans: %w", err)
	}
	return loans, nil
}

func (r *lendingRepository) ListCreditsByAccount(ctx context.Context, accountID string) ([]*domain.Credit, error) {
	query := `
		SELECT id, account_id, value, installments, created_at
		FROM credits WHERE account_id = $1 ORDER BY created_at DESC
	`
	rows, err := r.querier.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var credits []*domain.Credit
	for rows.Next() {
		credit := &domain.Credit{}
		if err := rows.Scan(&credit.ID, &credit.AccountID, &credit.Value, &credit.Installments, &credit.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		credits = append(credits, credit)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating credits: %w", err)
	}
	return credits, nil
}

func (r *lendingRepository) ListLoanInstallments(ctx context.Context, loanID string) ([]domain.Installment, error) {
	return r.listInstallments(ctx, "loan_installments", "loan_id", loanID)
}

func (r *lendingRepository) ListCreditInstallments(ctx context.Context, creditID string) ([]domain.Installment, error) {
	return r.listInstallments(ctx, "credit_installments", "credit_id", creditID)
}

func (r *lendingRepository) listInstallments(ctx context.Context, table, parentColumn, parentID string) ([]domain.Installment, error) {
	query := fmt.Sprintf(`
		SELECT id, %[2]s, sequence, value, due_date, paid_at
		FROM %[1]s WHERE %[2]s = $1 ORDER BY sequence ASC
	`, table, parentColumn)
	rows, err := r.querier.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s for %s: %w", table, parentID, err)
	}
	defer rows.Close()

	var installments []domain.Installment
	for rows.Next() {
		var (
			inst   domain.Installment
			paidAt sql.NullTime
		)
		if err := rows.Scan(&inst.ID, &inst.ParentID, &inst.Sequence, &inst.Value, &inst.DueDate, &paidAt); err != nil {
			return nil, fmt.Errorf("failed to scan installment: %w", err)
		}
		if paidAt.Valid {
			inst.PaidAt = &paidAt.Time
		}
		installments = append(installments, inst)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s: %w", table, err)
	}
	return installments, nil
}
