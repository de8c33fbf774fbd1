package transfers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bank/internal/domain"
	"bank/internal/money"
	"bank/internal/repository/memory"
	"bank/internal/util"

	"go.uber.org/zap"
)

type sequenceIDs struct{ n atomic.Int64 }

func (g *sequenceIDs) NewID() string {
	return fmt.Sprintf("id-%04d", g.n.Add(1))
}

type fixture struct {
	svc   TransferService
	store *memory.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := util.NewManualClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	return &fixture{
		svc:   NewTransferService(store, &sequenceIDs{}, clock, zap.NewNop()),
		store: store,
	}
}

func (f *fixture) account(t *testing.T, id, owner, balance string) {
	t.Helper()
	err := f.store.Accounts().Create(context.Background(), &domain.Account{
		ID:       id,
		Agency:   domain.DefaultAgency,
		Number:   fmt.Sprintf("%016d", len(id)*1000+int(id[len(id)-1])),
		Nickname: id,
		Balance:  money.MustParse(balance),
		UserID:   owner,
	})
	if err != nil {
		t.Fatalf("create account %s: %v", id, err)
	}
}

func (f *fixture) balance(t *testing.T, id string) string {
	t.Helper()
	acc, err := f.store.Accounts().GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get account %s: %v", id, err)
	}
	return acc.Balance.String()
}

func (f *fixture) entries(t *testing.T, id string) []*domain.Transfer {
	t.Helper()
	entries, err := f.store.Transfers().ListByAccount(context.Background(), id)
	if err != nil {
		t.Fatalf("list transfers: %v", err)
	}
	return entries
}

func TestTransfer(t *testing.T) {
	f := newFixture(t)
	f.account(t, "acc-a", "alice", "100")
	f.account(t, "acc-b", "bob", "5")

	entry, err := f.svc.Transfer(context.Background(), TransferRequest{
		CallerID:    "alice",
		SenderID:    "acc-a",
		ReceiverID:  "acc-b",
		Value:       money.MustParse("40.25"),
		Description: "rent",
	})
	if err != nil {
		t.Fatalf("Transfer returned error: %v", err)
	}
	if *entry.SenderID != "acc-a" || *entry.ReceiverID != "acc-b" || entry.Description != "rent" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if got := f.balance(t, "acc-a"); got != "59.75" {
		t.Fatalf("sender balance = %s", got)
	}
	if got := f.balance(t, "acc-b"); got != "45.25" {
		t.Fatalf("receiver balance = %s", got)
	}

	pending, err := f.store.Outbox().GetPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("outbox: %v", err)
	}
	if len(pending) != 1 || pending[0].MessageType != domain.EventTransferCompleted || pending[0].Key != "acc-a" {
		t.Fatalf("unexpected outbox %+v", pending)
	}
}

func TestTransferRejections(t *testing.T) {
	tests := []struct {
		name    string
		req     TransferRequest
		wantErr error
	}{
		{
			name:    "zero value",
			req:     TransferRequest{CallerID: "alice", SenderID: "acc-a", ReceiverID: "acc-b", Value: money.Zero},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "negative value",
			req:     TransferRequest{CallerID: "alice", SenderID: "acc-a", ReceiverID: "acc-b", Value: money.MustParse("-1")},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "same account",
			req:     TransferRequest{CallerID: "alice", SenderID: "acc-a", ReceiverID: "acc-a", Value: money.MustParse("1")},
			wantErr: domain.ErrInvalidTransfer,
		},
		{
			name:    "insufficient funds",
			req:     TransferRequest{CallerID: "alice", SenderID: "acc-a", ReceiverID: "acc-b", Value: money.MustParse("100.01")},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:    "not owner",
			req:     TransferRequest{CallerID: "bob", SenderID: "acc-a", ReceiverID: "acc-b", Value: money.MustParse("1")},
			wantErr: domain.ErrNotOwner,
		},
		{
			name:    "unknown receiver",
			req:     TransferRequest{CallerID: "alice", SenderID: "acc-a", ReceiverID: "acc-x", Value: money.MustParse("1")},
			wantErr: domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.account(t, "acc-a", "alice", "100")
			f.account(t, "acc-b", "bob", "0")

			_, err := f.svc.Transfer(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := f.balance(t, "acc-a"); got != "100.00" {
				t.Fatalf("sender balance changed to %s", got)
			}
			if got := f.balance(t, "acc-b"); got != "0.00" {
				t.Fatalf("receiver balance changed to %s", got)
			}
			if n := len(f.entries(t, "acc-a")); n != 0 {
				t.Fatalf("rejected transfer left %d ledger entries", n)
			}
		})
	}
}

func TestInsufficientFundsCheckedBeforeOwnership(t *testing.T) {
	f := newFixture(t)
	f.account(t, "acc-a", "alice", "1")
	f.account(t, "acc-b", "bob", "0")

	_, err := f.svc.Transfer(context.Background(), TransferRequest{
		CallerID: "bob", SenderID: "acc-a", ReceiverID: "acc-b", Value: money.MustParse("2"),
	})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestWithdraw(t *testing.T) {
	tests := []struct {
		name        string
		balance     string
		value       string
		caller      string
		wantErr     error
		wantBalance string
		wantEntries int
	}{
		{name: "partial", balance: "100", value: "30", caller: "alice", wantBalance: "70.00", wantEntries: 1},
		{name: "whole balance", balance: "100", value: "100", caller: "alice", wantBalance: "0.00", wantEntries: 1},
		{name: "over balance", balance: "100", value: "100.01", caller: "alice", wantErr: domain.ErrInsufficientFunds, wantBalance: "100.00"},
		{name: "not owner", balance: "100", value: "1", caller: "bob", wantErr: domain.ErrNotOwner, wantBalance: "100.00"},
		{name: "zero", balance: "100", value: "0", caller: "alice", wantErr: domain.ErrInvalidAmount, wantBalance: "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.account(t, "acc-a", "alice", tt.balance)

			entry, err := f.svc.Withdraw(context.Background(), tt.caller, "acc-a", money.MustParse(tt.value), "atm")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if err == nil && (entry.ReceiverID != nil || *entry.SenderID != "acc-a") {
				t.Fatalf("withdrawal entry has wrong shape %+v", entry)
			}
			if got := f.balance(t, "acc-a"); got != tt.wantBalance {
				t.Fatalf("balance = %s, want %s", got, tt.wantBalance)
			}
			if n := len(f.entries(t, "acc-a")); n != tt.wantEntries {
				t.Fatalf("ledger entries = %d, want %d", n, tt.wantEntries)
			}
		})
	}
}

func TestDepositThenWithdrawRoundTrip(t *testing.T) {
	f := newFixture(t)
	f.account(t, "acc-a", "alice", "12.34")
	ctx := context.Background()

	entry, err := f.svc.Deposit(ctx, "acc-a", money.MustParse("250.50"), "salary")
	if err != nil {
		t.Fatalf("Deposit returned error: %v", err)
	}
	if entry.SenderID != nil || *entry.ReceiverID != "acc-a" {
		t.Fatalf("deposit entry has wrong shape %+v", entry)
	}
	if got := f.balance(t, "acc-a"); got != "262.84" {
		t.Fatalf("balance after deposit = %s", got)
	}
	if _, err := f.svc.Withdraw(ctx, "alice", "acc-a", money.MustParse("250.50"), ""); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}
	if got := f.balance(t, "acc-a"); got != "12.34" {
		t.Fatalf("balance after round trip = %s", got)
	}
}

func TestDepositRejections(t *testing.T) {
	f := newFixture(t)
	f.account(t, "acc-a", "alice", "0")

	if _, err := f.svc.Deposit(context.Background(), "acc-a", money.MustParse("-5"), ""); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := f.svc.Deposit(context.Background(), "missing", money.MustParse("5"), ""); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestConcurrentOpposingTransfers(t *testing.T) {
	f := newFixture(t)
	f.account(t, "acc-a", "alice", "100")
	f.account(t, "acc-b", "bob", "100")

	const rounds = 25
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)
	for i := 0; i < rounds; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), TransferRequest{
				CallerID: "alice", SenderID: "acc-a", ReceiverID: "acc-b", Value: money.MustParse("50"),
			})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := f.svc.Transfer(context.Background(), TransferRequest{
				CallerID: "bob", SenderID: "acc-b", ReceiverID: "acc-a", Value: money.MustParse("50"),
			})
			errs <- err
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("opposing transfers deadlocked")
	}
	close(errs)

	completed := 0
	for err := range errs {
		switch {
		case err == nil:
			completed++
		case errors.Is(err, domain.ErrInsufficientFunds):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	a, b := money.MustParse(f.balance(t, "acc-a")), money.MustParse(f.balance(t, "acc-b"))
	if a.IsNegative() || b.IsNegative() {
		t.Fatalf("negative balance: a=%s b=%s", a, b)
	}
	if total := a.Add(b).String(); total != "200.00" {
		t.Fatalf("money created or destroyed: total %s", total)
	}
	if n := len(f.entries(t, "acc-a")); n != completed {
		t.Fatalf("ledger entries = %d, completed transfers = %d", n, completed)
	}
}

func TestSimultaneousPairLeavesBalancesUnchanged(t *testing.T) {
	f := newFixture(t)
	f.account(t, "acc-a", "alice", "100")
	f.account(t, "acc-b", "bob", "100")

	start := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(2)
	for _, req := range []TransferRequest{
		{CallerID: "alice", SenderID: "acc-a", ReceiverID: "acc-b", Value: money.MustParse("50")},
		{CallerID: "bob", SenderID: "acc-b", ReceiverID: "acc-a", Value: money.MustParse("50")},
	} {
		go func(req TransferRequest) {
			defer wg.Done()
			<-start
			if _, err := f.svc.Transfer(context.Background(), req); err != nil {
				t.Errorf("transfer %s->%s: %v", req.SenderID, req.ReceiverID, err)
			}
		}(req)
	}
	close(start)
	wg.Wait()

	if got := f.balance(t, "acc-a"); got != "100.00" {
		t.Fatalf("acc-a balance = %s", got)
	}
	if got := f.balance(t, "acc-b"); got != "100.00" {
		t.Fatalf("acc-b balance = %s", got)
	}
	if n := len(f.entries(t, "acc-a")); n != 2 {
		t.Fatalf("ledger entries = %d, want 2", n)
	}
}
