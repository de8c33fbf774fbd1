package users_repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank/internal/domain"

	"github.com/lib/pq"
)

const userColumns = `id, email, password_hash, created_at, login_attempts, locked_at, unlocked_at`

type userRepository struct {
	querier domain.Querier
}

func NewUserRepository(querier domain.Querier) *userRepository {
	return &userRepository{querier: querier}
}

func (r *userRepository) Create(ctx context.Context, user *domain.UserRecord) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.querier.ExecContext(ctx, query,
		user.ID,
		strings.ToLower(user.Email),
		user.PasswordHash,
		user.CreatedAt,
		user.LoginAttempts,
		nullTime(user.LockedAt),
		nullTime(user.UnlockedAt),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return domain.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user %s: %w", user.Email, err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.get(ctx, query, strings.ToLower(email))
}

func (r *userRepository) GetByEmailForUpdate(ctx context.Context, email string) (*domain.UserRecord, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1 FOR UPDATE`
	return r.get(ctx, query, strings.ToLower(email))
}

func (r *userRepository) get(ctx context.Context, query string, arg string) (*domain.UserRecord, error) {
	user := &domain.UserRecord{}
	var lockedAt, unlockedAt sql.NullTime
	err := r.querier.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.LoginAttempts,
		&lockedAt,
		&unlockedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if lockedAt.Valid {
		user.LockedAt = &lockedAt.Time
	}
	if unlockedAt.Valid {
		user.UnlockedAt = &unlockedAt.Time
	}
	return user, nil
}

func (r *userRepository) Save(ctx context.Context, user *domain.UserRecord) error {
	query := `
		UPDATE users
		SET login_attempts = $1, locked_at = $2, unlocked_at = $3
		WHERE id = $4
	`
	res, err := r.querier.ExecContext(ctx, query,
		user.LoginAttempts, nullTime(user.LockedAt), nullTime(user.UnlockedAt), user.ID)
	if err != nil {
		return fmt.Errorf("failed to save user %s: %w", user.ID, err)
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for user update (id %s): %w", user.ID, err)
	}
	if rowsAffected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
