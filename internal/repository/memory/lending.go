package memory

import (
	"context"
	"fmt"
	"sort"

	"bank/internal/domain"
)

type lendingRepo struct{ t *tx }

func copyInstallments(in []domain.Installment) []domain.Installment {
	out := make([]domain.Installment, len(in))
	copy(out, in)
	return out
}

func (r lendingRepo) CreateLoan(ctx context.Context, loan *domain.Loan, installments []domain.Installment) error {
	t := r.t
	if err := t.check(); err != nil {
		return err
	}
	if _, exists := t.loan(loan.ID); exists {
		return fmt.Errorf("loan %s already exists", loan.ID)
	}
	l := *loan
	t.loans[loan.ID] = lendingRecord{loan: &l, installments: copyInstallments(installments)}
	return nil
}

func (r lendingRepo) CreateCredit(ctx context.Context, credit *domain.Credit, installments []domain.Installment) error {
	t := r.t
	if err := t.check(); err != nil {
		return err
	}
	if _, exists := t.credit(credit.ID); exists {
		return fmt.Errorf("credit %s already exists", credit.ID)
	}
	c := *credit
	t.credits[credit.ID] = lendingRecord{credit: &c, installments: copyInstallments(installments)}
	return nil
}

func (t *tx) loan(id string) (lendingRecord, bool) {
	if rec, ok := t.loans[id]; ok {
		return rec, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	rec, ok := t.s.loans[id]
	return rec, ok
}

func (t *tx) credit(id string) (lendingRecord, bool) {
	if rec, ok := t.credits[id]; ok {
		return rec, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	rec, ok := t.s.credits[id]
	return rec, ok
}

// visible merges committed records with the ones buffered in the transaction.
func (t *tx) visible(committed, pending map[string]lendingRecord, keep func(lendingRecord) bool) []lendingRecord {
	merged := make(map[string]lendingRecord)
	t.s.mu.RLock()
	for id, rec := range committed {
		if keep(rec) {
			merged[id] = rec
		}
	}
	t.s.mu.RUnlock()
	for id, rec := range pending {
		if keep(rec) {
			merged[id] = rec
		}
	}
	out := make([]lendingRecord, 0, len(merged))
	for _, rec := range merged {
		out = append(out, rec)
	}
	return out
}

func (r lendingRepo) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	rec, ok := r.t.loan(id)
	if !ok {
		return nil, domain.ErrLoanNotFound
	}
	l := *rec.loan
	return &l, nil
}

func (r lendingRepo) GetCredit(ctx context.Context, id string) (*domain.Credit, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	rec, ok := r.t.credit(id)
	if !ok {
		return nil, domain.ErrCreditNotFound
	}
	c := *rec.credit
	return &c, nil
}

func (r lendingRepo) ListLoansByAccount(ctx context.Context, accountID string) ([]*domain.Loan, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}
	recs := t.visible(t.s.loans, t.loans, func(rec lendingRecord) bool { return rec.loan.AccountID == accountID })
	loans := make([]*domain.Loan, 0, len(recs))
	for _, rec := range recs {
		l := *rec.loan
		loans = append(loans, &l)
	}
	sort.Slice(loans, func(i, j int) bool { return loans[i].CreatedAt.After(loans[j].CreatedAt) })
	return loans, nil
}

func (r lendingRepo) ListCreditsByAccount(ctx context.Context, accountID string) ([]*domain.Credit, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}
	recs := t.visible(t.s.credits, t.credits, func(rec lendingRecord) bool { return rec.credit.AccountID == accountID })
	credits := make([]*domain.Credit, 0, len(recs))
	for _, rec := range recs {
		c := *rec.credit
		credits = append(credits, &c)
	}
	sort.Slice(credits, func(i, j int) bool { return credits[i].CreatedAt.After(credits[j].CreatedAt) })
	return credits, nil
}

func (r lendingRepo) ListLoanInstallments(ctx context.Context, loanID string) ([]domain.Installment, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	rec, ok := r.t.loan(loanID)
	if !ok {
		return nil, nil
	}
	return sortedInstallments(rec.installments), nil
}

func (r lendingRepo) ListCreditInstallments(ctx context.Context, creditID string) ([]domain.Installment, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	rec, ok := r.t.credit(creditID)
	if !ok {
		return nil, nil
	}
	return sortedInstallments(rec.installments), nil
}

func sortedInstallments(in []domain.Installment) []domain.Installment {
	out := copyInstallments(in)
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out
}

type autoLending struct{ s *Store }

func (a autoLending) CreateLoan(ctx context.Context, loan *domain.Loan, installments []domain.Installment) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Lending().CreateLoan(ctx, loan, installments)
	})
	return err
}

func (a autoLending) CreateCredit(ctx context.Context, credit *domain.Credit, installments []domain.Installment) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Lending().CreateCredit(ctx, credit, installments)
	})
	return err
}

func (a autoLending) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (*domain.Loan, error) {
		return r.Lending().GetLoan(ctx, id)
	})
}

func (a autoLending) GetCredit(ctx context.Context, id string) (*domain.Credit, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (*domain.Credit, error) {
		return r.Lending().GetCredit(ctx, id)
	})
}

func (a autoLending) ListLoansByAccount(ctx context.Context, accountID string) ([]*domain.Loan, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) ([]*domain.Loan, error) {
		return r.Lending().ListLoansByAccount(ctx, accountID)
	})
}

func (a autoLending) ListCreditsByAccount(ctx context.Context, accountID string) ([]*domain.Credit, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) ([]*domain.Credit, error) {
		return r.Lending().ListCreditsByAccount(ctx, accountID)
	})
}

func (a autoLending) ListLoanInstallments(ctx context.Context, loanID string) ([]domain.Installment, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) ([]domain.Installment, error) {
		return r.Lending().ListLoanInstallments(ctx, loanID)
	})
}

func (a autoLending) ListCreditInstallments(ctx context.Context, creditID string) ([]domain.Installment, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) ([]domain.Installment, error) {
		return r.Lending().ListCreditInstallments(ctx, creditID)
	})
}
