package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bank/internal/domain"
)

type userRepo struct{ t *tx }

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneUser(u domain.UserRecord) domain.UserRecord {
	u.LockedAt = cloneTime(u.LockedAt)
	u.UnlockedAt = cloneTime(u.UnlockedAt)
	return u
}

func (t *tx) user(id string) (domain.UserRecord, bool) {
	if u, ok := t.users[id]; ok {
		return cloneUser(u), true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	u, ok := t.s.users[id]
	return cloneUser(u), ok
}

func (t *tx) userIDByEmail(email string) (string, bool) {
	email = normalizeEmail(email)
	for _, id := range t.newUsers {
		if normalizeEmail(t.users[id].Email) == email {
			return id, true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	id, ok := t.s.userEmails[email]
	return id, ok
}

func (r userRepo) Create(ctx context.Context, user *domain.UserRecord) error {
	t := r.t
	if err := t.check(); err != nil {
		return err
	}
	if _, taken := t.userIDByEmail(user.Email); taken {
		return domain.ErrUserAlreadyExists
	}
	if _, exists := t.user(user.ID); exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	if err := t.lockUser(ctx, user.ID); err != nil {
		return err
	}
	u := cloneUser(*user)
	u.Email = normalizeEmail(u.Email)
	t.users[user.ID] = u
	t.newUsers = append(t.newUsers, user.ID)
	return nil
}

func (r userRepo) GetByID(ctx context.Context, id string) (*domain.UserRecord, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	u, ok := r.t.user(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	if err := r.t.check(); err != nil {
		return nil, err
	}
	id, ok := r.t.userIDByEmail(email)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return r.GetByID(ctx, id)
}

func (r userRepo) GetByEmailForUpdate(ctx context.Context, email string) (*domain.UserRecord, error) {
	t := r.t
	if err := t.check(); err != nil {
		return nil, err
	}
	id, ok := t.userIDByEmail(email)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if err := t.lockUser(ctx, id); err != nil {
		return nil, err
	}
	// Re-read under the lock: a concurrent holder may have committed.
	u, ok := t.user(id)
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r userRepo) Save(ctx context.Context, user *domain.UserRecord) error {
	t := r.t
	if err := t.check(); err != nil {
		return err
	}
	current, ok := t.user(user.ID)
	if !ok {
		return domain.ErrUserNotFound
	}
	if err := t.lockUser(ctx, user.ID); err != nil {
		return err
	}
	current.LoginAttempts = user.LoginAttempts
	current.LockedAt = cloneTime(user.LockedAt)
	current.UnlockedAt = cloneTime(user.UnlockedAt)

	if _, buffered := t.users[user.ID]; !buffered {
		t.usersSave[user.ID] = true
	}
	t.users[user.ID] = current
	return nil
}

type autoUsers struct{ s *Store }

func (a autoUsers) Create(ctx context.Context, user *domain.UserRecord) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Users().Create(ctx, user)
	})
	return err
}

func (a autoUsers) GetByID(ctx context.Context, id string) (*domain.UserRecord, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (*domain.UserRecord, error) {
		return r.Users().GetByID(ctx, id)
	})
}

func (a autoUsers) GetByEmail(ctx context.Context, email string) (*domain.UserRecord, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (*domain.UserRecord, error) {
		return r.Users().GetByEmail(ctx, email)
	})
}

func (a autoUsers) GetByEmailForUpdate(ctx context.Context, email string) (*domain.UserRecord, error) {
	return autocommit(ctx, a.s, func(r repositoryTx) (*domain.UserRecord, error) {
		return r.Users().GetByEmailForUpdate(ctx, email)
	})
}

func (a autoUsers) Save(ctx context.Context, user *domain.UserRecord) error {
	_, err := autocommit(ctx, a.s, func(r repositoryTx) (struct{}, error) {
		return struct{}{}, r.Users().Save(ctx, user)
	})
	return err
}
