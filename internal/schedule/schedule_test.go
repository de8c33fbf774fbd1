package schedule

import (
	"errors"
	"testing"
	"time"

	"bank/internal/domain"
	"bank/internal/money"

	"github.com/shopspring/decimal"
)

func TestLoanSchedule(t *testing.T) {
	today := time.Date(2024, time.January, 31, 14, 30, 0, 0, time.UTC)

	entries, err := Loan(money.MustParse("1000"), 5, decimal.RequireFromString("1.05"), today)
	if err != nil {
		t.Fatalf("Loan returned error: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	wantValues := []string{"0.00", "210.00", "420.00", "630.00", "840.00"}
	wantDates := []time.Time{
		time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, e := range entries {
		if e.Sequence != i {
			t.Fatalf("entry %d has sequence %d", i, e.Sequence)
		}
		if e.Value.String() != wantValues[i] {
			t.Fatalf("entry %d value = %s, want %s", i, e.Value, wantValues[i])
		}
		if !e.DueDate.Equal(wantDates[i]) {
			t.Fatalf("entry %d due = %s, want %s", i, e.DueDate, wantDates[i])
		}
		if i > 0 && e.Value.LessThan(entries[i-1].Value) {
			t.Fatalf("values must be non-decreasing: %s after %s", e.Value, entries[i-1].Value)
		}
	}
}

func TestLoanScheduleRoundsEachInstallment(t *testing.T) {
	entries, err := Loan(money.MustParse("100"), 3, decimal.RequireFromString("0.1"), time.Now())
	if err != nil {
		t.Fatalf("Loan returned error: %v", err)
	}
	// 100 / 3 * 0.1 = 3.333..., so 3.33 and 6.67
	if entries[1].Value.String() != "3.33" || entries[2].Value.String() != "6.67" {
		t.Fatalf("unexpected rounding: %s, %s", entries[1].Value, entries[2].Value)
	}
}

func TestCreditSchedule(t *testing.T) {
	now := time.Date(2024, time.November, 20, 9, 0, 0, 0, time.UTC)

	entries, err := Credit(money.MustParse("1000"), 4, now)
	if err != nil {
		t.Fatalf("Credit returned error: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}

	wantDates := []time.Time{
		time.Date(2024, time.November, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.December, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2025, time.February, 5, 0, 0, 0, 0, time.UTC),
	}
	for i, e := range entries {
		if e.Value.String() != "250.00" {
			t.Fatalf("entry %d value = %s, want 250.00", i, e.Value)
		}
		if !e.DueDate.Equal(wantDates[i]) {
			t.Fatalf("entry %d due = %s, want %s", i, e.DueDate, wantDates[i])
		}
	}
}

func TestScheduleRejectsTooFewInstallments(t *testing.T) {
	for _, count := range []int{-1, 0, 1} {
		if _, err := Loan(money.MustParse("500"), count, decimal.NewFromInt(1), time.Now()); !errors.Is(err, domain.ErrInvalidSchedule) {
			t.Fatalf("Loan count=%d: expected ErrInvalidSchedule, got %v", count, err)
		}
		if _, err := Credit(money.MustParse("500"), count, time.Now()); !errors.Is(err, domain.ErrInvalidSchedule) {
			t.Fatalf("Credit count=%d: expected ErrInvalidSchedule, got %v", count, err)
		}
	}
}

func TestScheduleRejectsTooManyInstallments(t *testing.T) {
	for _, count := range []int{MaxInstallments + 1, 3_000_000} {
		if _, err := Loan(money.MustParse("500"), count, decimal.NewFromInt(1), time.Now()); !errors.Is(err, domain.ErrInvalidSchedule) {
			t.Fatalf("Loan count=%d: expected ErrInvalidSchedule, got %v", count, err)
		}
		if _, err := Credit(money.MustParse("500"), count, time.Now()); !errors.Is(err, domain.ErrInvalidSchedule) {
			t.Fatalf("Credit count=%d: expected ErrInvalidSchedule, got %v", count, err)
		}
	}

	plan, err := Credit(money.MustParse("500"), MaxInstallments, time.Now())
	if err != nil || len(plan) != MaxInstallments {
		t.Fatalf("Credit at maximum = %d entries, %v", len(plan), err)
	}
}

func TestAddMonths(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		n    int
		want time.Time
	}{
		{
			name: "plain",
			in:   time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC),
			n:    1,
			want: time.Date(2024, time.April, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "clamps to month end",
			in:   time.Date(2023, time.January, 31, 0, 0, 0, 0, time.UTC),
			n:    1,
			want: time.Date(2023, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "crosses year",
			in:   time.Date(2024, time.December, 10, 0, 0, 0, 0, time.UTC),
			n:    2,
			want: time.Date(2025, time.February, 10, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddMonths(tt.in, tt.n); !got.Equal(tt.want) {
				t.Fatalf("AddMonths = %s, want %s", got, tt.want)
			}
		})
	}
}
