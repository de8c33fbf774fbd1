package domain

import (
	"errors"
	"fmt"

	"bank/internal/money"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")

	// ErrInvalidAmount is shared with the money package so that parse
	// failures at the boundary and service-level checks match the same error.
	ErrInvalidAmount    = money.ErrInvalidAmount
	ErrInvalidTransfer  = fmt.Errorf("%w: invalid transfer", ErrValidation)
	ErrNicknameRequired = fmt.Errorf("%w: nickname is required", ErrValidation)
	ErrEmailRequired    = fmt.Errorf("%w: email and password are required", ErrValidation)

	ErrAccountNotFound = fmt.Errorf("account %w", ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", ErrNotFound)
	ErrLoanNotFound    = fmt.Errorf("loan %w", ErrNotFound)
	ErrCreditNotFound  = fmt.Errorf("credit %w", ErrNotFound)

	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotOwner          = errors.New("account does not belong to the authenticated user")

	ErrBelowMinimum    = errors.New("below minimum")
	ErrAboveMaximum    = errors.New("above maximum")
	ErrInvalidSchedule = errors.New("invalid installment schedule")

	ErrUnderReview        = errors.New("account is under review")
	ErrLocked             = errors.New("account is locked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = fmt.Errorf("%w: too many failed attempts, account locked", ErrInvalidCredentials)

	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrRetryableCollision = errors.New("unique value collision, retry")
	ErrTransactionFailed  = errors.New("transaction failed")
)

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidAmount)
}

var businessErrors = []error{
	ErrValidation,
	ErrInvalidAmount,
	ErrNotFound,
	ErrInsufficientFunds,
	ErrNotOwner,
	ErrBelowMinimum,
	ErrAboveMaximum,
	ErrInvalidSchedule,
	ErrUnderReview,
	ErrLocked,
	ErrInvalidCredentials,
	ErrUserAlreadyExists,
	ErrRetryableCollision,
	ErrTransactionFailed,
}

// IsBusinessError reports whether err is one of the sentinels above, which
// are surfaced to callers as-is.
func IsBusinessError(err error) bool {
	for _, target := range businessErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// TransactionFailure wraps infrastructure errors raised inside a transaction
// with ErrTransactionFailed and passes business errors through.
func TransactionFailure(err error) error {
	if err == nil || IsBusinessError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransactionFailed, err)
}
