package domain

import (
	"time"

	"bank/internal/money"

	"github.com/shopspring/decimal"
)

type Loan struct {
	ID           string
	AccountID    string
	Value        money.Money
	Installments int
	FeeRate      decimal.Decimal
	CreatedAt    time.Time
}

type Credit struct {
	ID           string
	AccountID    string
	Value        money.Money
	Installments int
	CreatedAt    time.Time
}

// Installment is one scheduled payment of a loan or credit. PaidAt stays nil
// until settlement.
type Installment struct {
	ID       string
	ParentID string
	Sequence int
	Value    money.Money
	DueDate  time.Time
	PaidAt   *time.Time
}
