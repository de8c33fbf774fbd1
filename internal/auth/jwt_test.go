package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"bank/internal/util"
)

func TestIssueAndVerify(t *testing.T) {
	clock := util.NewManualClock(time.Now().UTC())
	m := NewTokenManager("test-secret", time.Hour, clock)

	token, expiresAt, err := m.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if !expiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Fatalf("expiresAt = %s", expiresAt)
	}

	subject, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if subject != "user-42" {
		t.Fatalf("subject = %q", subject)
	}
}

func TestVerifyRejects(t *testing.T) {
	clock := util.NewManualClock(time.Now().UTC())
	m := NewTokenManager("test-secret", time.Minute, clock)
	token, _, err := m.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	other := NewTokenManager("other-secret", time.Minute, clock)
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: expected ErrInvalidToken, got %v", err)
	}
	if _, err := m.Verify("garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("garbage: expected ErrInvalidToken, got %v", err)
	}

	clock.Advance(2 * time.Minute)
	if _, err := m.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expired: expected ErrInvalidToken, got %v", err)
	}
}

func TestPrincipal(t *testing.T) {
	if _, ok := Principal(context.Background()); ok {
		t.Fatal("empty context has a principal")
	}
	id, ok := Principal(WithPrincipal(context.Background(), "user-1"))
	if !ok || id != "user-1" {
		t.Fatalf("Principal = %q, %v", id, ok)
	}
}
