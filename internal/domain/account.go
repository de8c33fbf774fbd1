package domain

import (
	"time"

	"bank/internal/money"
)

const DefaultAgency = "0001"

type Account struct {
	ID        string
	Agency    string
	Number    string
	Nickname  string
	Balance   money.Money
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OwnedBy reports whether the account belongs to userID.
func (a *Account) OwnedBy(userID string) bool {
	return a.UserID == userID
}
