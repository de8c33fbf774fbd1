// Package schedule derives installment plans for loans and credits.
package schedule

import (
	"fmt"
	"time"

	"bank/internal/domain"
	"bank/internal/money"

	"github.com/shopspring/decimal"
)

const (
	MinInstallments = 2
	// MaxInstallments caps a plan at 30 years of monthly payments.
	MaxInstallments = 360
	CreditDueDay    = 5
)

func checkCount(count int) error {
	if count < MinInstallments {
		return fmt.Errorf("%w: %d installments, need at least %d", domain.ErrInvalidSchedule, count, MinInstallments)
	}
	if count > MaxInstallments {
		return fmt.Errorf("%w: %d installments, at most %d allowed", domain.ErrInvalidSchedule, count, MaxInstallments)
	}
	return nil
}

// Entry is one computed installment before it is persisted.
type Entry struct {
	Sequence int
	Value    money.Money
	DueDate  time.Time
}

// Loan computes value_i = principal / count * feeRate * i for i in [0, count),
// due on the same day of consecutive months starting today. The first entry
// is therefore always zero.
func Loan(principal money.Money, count int, feeRate decimal.Decimal, today time.Time) ([]Entry, error) {
	if err := checkCount(count); err != nil {
		return nil, err
	}

	base := principal.Decimal().Div(decimal.NewFromInt(int64(count))).Mul(feeRate)
	start := midnight(today)

	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		entries[i] = Entry{
			Sequence: i,
			Value:    money.New(base.Mul(decimal.NewFromInt(int64(i)))),
			DueDate:  AddMonths(start, i),
		}
	}
	return entries, nil
}

// Credit splits principal evenly; every installment is due on the 5th of
// consecutive months starting with the current one.
func Credit(principal money.Money, count int, now time.Time) ([]Entry, error) {
	if err := checkCount(count); err != nil {
		return nil, err
	}

	value := principal.DivInt(count)
	start := midnight(now)

	entries := make([]Entry, count)
	for i := 0; i < count; i++ {
		due := AddMonths(start, i)
		entries[i] = Entry{
			Sequence: i,
			Value:    value,
			DueDate:  time.Date(due.Year(), due.Month(), CreditDueDay, 0, 0, 0, 0, due.Location()),
		}
	}
	return entries, nil
}

// AddMonths moves t by n calendar months, clamping the day to the end of the
// target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
