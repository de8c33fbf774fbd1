package domain

import "time"

type UserRecord struct {
	ID            string
	Email         string
	PasswordHash  string
	CreatedAt     time.Time
	LoginAttempts int
	LockedAt      *time.Time
	UnlockedAt    *time.Time
}

// IsLocked reports whether a lockout is recorded, expired or not.
func (u *UserRecord) IsLocked() bool {
	return u.LockedAt != nil && u.UnlockedAt != nil
}

func (u *UserRecord) Lock(at time.Time, window time.Duration) {
	until := at.Add(window)
	u.LockedAt = &at
	u.UnlockedAt = &until
}

// Unlock returns the user to an active state with a fresh attempt counter.
func (u *UserRecord) Unlock() {
	u.LoginAttempts = 0
	u.LockedAt = nil
	u.UnlockedAt = nil
}
