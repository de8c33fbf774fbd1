// Package loginguard throttles authentication per user: new users are held
// for a grace window, and repeated failures lock the user out for a while.
package loginguard

import (
	"context"
	"errors"
	"strings"
	"time"

	"bank/internal/domain"
	"bank/internal/repository"
	"bank/internal/util"

	"go.uber.org/zap"
)

const (
	GraceWindow   = 3 * time.Minute
	LockoutWindow = 15 * time.Minute
	MaxAttempts   = 3
)

type Status int

const (
	StatusAuthenticated Status = iota
	StatusFailed
	StatusLockedNow
	StatusUnderReview
	StatusLocked
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusFailed:
		return "failed"
	case StatusLockedNow:
		return "locked_now"
	case StatusUnderReview:
		return "under_review"
	case StatusLocked:
		return "locked"
	default:
		return "unknown"
	}
}

// Outcome is the result of one authentication attempt. User reflects the
// state after the attempt.
type Outcome struct {
	Status Status
	User   *domain.UserRecord
}

// Err maps a rejected outcome to its domain error.
func (o Outcome) Err() error {
	switch o.Status {
	case StatusAuthenticated:
		return nil
	case StatusUnderReview:
		return domain.ErrUnderReview
	case StatusLocked:
		return domain.ErrLocked
	case StatusLockedNow:
		return domain.ErrTooManyAttempts
	default:
		return domain.ErrInvalidCredentials
	}
}

type Guard interface {
	Register(ctx context.Context, email, password string) (*domain.UserRecord, error)
	// Authenticate evaluates one login attempt. The returned error is set only
	// for unknown users and storage failures; rejections are reported through
	// the Outcome.
	Authenticate(ctx context.Context, email, password string) (Outcome, error)
}

type guard struct {
	store       repository.Store
	credentials Credentials
	ids         util.IDGenerator
	clock       util.Clock
	logger      *zap.Logger
}

func NewGuard(store repository.Store, credentials Credentials, ids util.IDGenerator, clock util.Clock, logger *zap.Logger) Guard {
	return &guard{
		store:       store,
		credentials: credentials,
		ids:         ids,
		clock:       clock,
		logger:      logger.With(zap.String("component", "login_guard")),
	}
}

func (g *guard) Register(ctx context.Context, email, password string) (*domain.UserRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") || password == "" {
		return nil, domain.ErrEmailRequired
	}

	hash, err := g.credentials.Hash(password)
	if err != nil {
		return nil, domain.TransactionFailure(err)
	}
	user := &domain.UserRecord{
		ID:           g.ids.NewID(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    g.clock.Now(),
	}
	if err := g.store.Users().Create(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrUserAlreadyExists) {
			g.logger.Error("Failed to register user", zap.String("email", email), zap.Error(err))
		}
		return nil, domain.TransactionFailure(err)
	}

	g.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

func (g *guard) Authenticate(ctx context.Context, email, password string) (Outcome, error) {
	var outcome Outcome
	err := g.store.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		user, err := repos.Users().GetByEmailForUpdate(ctx, email)
		if err != nil {
			return err
		}
		outcome, err = g.evaluate(ctx, repos, user, password)
		return err
	})
	if err != nil {
		err = domain.TransactionFailure(err)
		if errors.Is(err, domain.ErrTransactionFailed) {
			g.logger.Error("Authentication failed", zap.Error(err))
		}
		return Outcome{}, err
	}

	logger := g.logger.With(zap.String("user_id", outcome.User.ID), zap.Stringer("status", outcome.Status))
	switch outcome.Status {
	case StatusAuthenticated:
		logger.Info("User authenticated")
	case StatusLockedNow:
		logger.Warn("User locked after repeated failures", zap.Timep("unlocked_at", outcome.User.UnlockedAt))
	default:
		logger.Warn("Authentication rejected", zap.Int("attempts", outcome.User.LoginAttempts))
	}
	return outcome, nil
}

// evaluate runs the state machine for a user row locked by the caller.
func (g *guard) evaluate(ctx context.Context, repos repository.Repositories, user *domain.UserRecord, password string) (Outcome, error) {
	now := g.clock.Now()

	if now.Before(user.CreatedAt.Add(GraceWindow)) {
		return Outcome{Status: StatusUnderReview, User: user}, nil
	}

	changed := false
	if user.IsLocked() {
		if now.Before(*user.UnlockedAt) {
			return Outcome{Status: StatusLocked, User: user}, nil
		}
		user.Unlock()
		changed = true
	}

	ok, err := g.credentials.Verify(user.PasswordHash, password)
	if err != nil {
		return Outcome{}, err
	}

	status := StatusAuthenticated
	if !ok {
		changed = true
		user.LoginAttempts++
		status = StatusFailed
		if user.LoginAttempts >= MaxAttempts {
			user.Lock(now, LockoutWindow)
			status = StatusLockedNow
		}
	}

	if changed {
		if err := repos.Users().Save(ctx, user); err != nil {
			return Outcome{}, err
		}
	}
	if status == StatusLockedNow {
		msg, err := domain.NewOutboxMessage(g.ids.NewID(), "user", user.ID, domain.EventUserLocked, domain.UserLockedEvent{
			UserID:     user.ID,
			Email:      user.Email,
			LockedAt:   *user.LockedAt,
			UnlockedAt: *user.UnlockedAt,
		}, now)
		if err != nil {
			return Outcome{}, err
		}
		if err := repos.Outbox().Create(ctx, msg); err != nil {
			return Outcome{}, err
		}
	}
	return Outcome{Status: status, User: user}, nil
}
