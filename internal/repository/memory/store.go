// Package memory is an in-process implementation of repository.Store. It
// keeps the locking and visibility rules of the postgres store: row locks are
// held until commit or rollback, writes are buffered per transaction and
// become visible to others only when the transaction commits.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bank/internal/domain"
	"bank/internal/repository"
	"bank/internal/repository/accounts_repo"
	"bank/internal/repository/lending_repo"
	"bank/internal/repository/outbox_repo"
	"bank/internal/repository/transfers_repo"
	"bank/internal/repository/users_repo"
	"bank/internal/util"
)

var errTxDone = errors.New("memory: transaction already finished")

// rowLock is a mutex that can be abandoned when ctx is cancelled.
type rowLock chan struct{}

func newRowLock() rowLock { return make(rowLock, 1) }

func (l rowLock) lock(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l rowLock) tryLock() bool {
	select {
	case l <- struct{}{}:
		return true
	default:
		return false
	}
}

func (l rowLock) unlock() { <-l }

type outboxRow struct {
	msg  domain.OutboxMessage
	lock rowLock
}

type lendingRecord struct {
	loan         *domain.Loan
	credit       *domain.Credit
	installments []domain.Installment
}

// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	clock util.Clock

	accounts       map[string]domain.Account
	accountNumbers map[string]string
	transfers      []storedTransfer
	nextSeq        int64
	loans          map[string]lendingRecord
	credits        map[string]lendingRecord
	users          map[string]domain.UserRecord
	userEmails     map[string]string
	outbox         []*outboxRow
	outboxByID     map[string]*outboxRow

	locksMu      sync.Mutex
	accountLocks map[string]rowLock
	userLocks    map[string]rowLock
}

var _ repository.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for UpdatedAt and SentAt stamps.
func WithClock(clock util.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:          util.SystemClock{},
		accounts:       make(map[string]domain.Account),
		accountNumbers: make(map[string]string),
		loans:          make(map[string]lendingRecord),
		credits:        make(map[string]lendingRecord),
		users:          make(map[string]domain.UserRecord),
		userEmails:     make(map[string]string),
		outboxByID:     make(map[string]*outboxRow),
		accountLocks:   make(map[string]rowLock),
		userLocks:      make(map[string]rowLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) accountLock(id string) rowLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.accountLocks[id]
	if !ok {
		l = newRowLock()
		s.accountLocks[id] = l
	}
	return l
}

func (s *Store) userLock(id string) rowLock {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.userLocks[id]
	if !ok {
		l = newRowLock()
		s.userLocks[id] = l
	}
	return l
}

// WithinTx runs fn in a transaction. A panic in fn rolls back and is re-raised.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	t := s.begin()
	defer func() {
		if r := recover(); r != nil {
			t.rollback()
			panic(r)
		}
	}()

	if err := fn(ctx, t); err != nil {
		t.rollback()
		return err
	}
	return t.commit()
}

// autocommit runs a single repository call in its own transaction, the way a
// statement outside BEGIN/COMMIT behaves.
type repositoryTx = repository.Repositories

func autocommit[T any](ctx context.Context, s *Store, fn func(r repositoryTx) (T, error)) (T, error) {
	var out T
	err := s.WithinTx(ctx, func(_ context.Context, r repository.Repositories) error {
		var err error
		out, err = fn(r)
		return err
	})
	return out, err
}

func (s *Store) Accounts() accounts_repo.AccountRepository    { return autoAccounts{s} }
func (s *Store) Transfers() transfers_repo.TransferRepository { return autoTransfers{s} }
func (s *Store) Lending() lending_repo.LendingRepository      { return autoLending{s} }
func (s *Store) Users() users_repo.UserRepository             { return autoUsers{s} }
func (s *Store) Outbox() outbox_repo.OutboxRepository         { return autoOutbox{s} }

// tx buffers writes until commit. It is used by a single goroutine.
type tx struct {
	s    *Store
	done bool

	heldAccounts map[string]rowLock
	heldUsers    map[string]rowLock
	heldOutbox   []*outboxRow

	accounts    map[string]domain.Account
	newAccounts []string
	dirty       map[string]bool

	users     map[string]domain.UserRecord
	newUsers  []string
	usersSave map[string]bool

	transfers []domain.Transfer
	loans     map[string]lendingRecord
	credits   map[string]lendingRecord

	outbox       []domain.OutboxMessage
	outboxStatus map[string]domain.OutboxMessageStatus
}

func (s *Store) begin() *tx {
	return &tx{
		s:            s,
		heldAccounts: make(map[string]rowLock),
		heldUsers:    make(map[string]rowLock),
		accounts:     make(map[string]domain.Account),
		dirty:        make(map[string]bool),
		users:        make(map[string]domain.UserRecord),
		usersSave:    make(map[string]bool),
		loans:        make(map[string]lendingRecord),
		credits:      make(map[string]lendingRecord),
		outboxStatus: make(map[string]domain.OutboxMessageStatus),
	}
}

func (t *tx) Accounts() accounts_repo.AccountRepository    { return accountRepo{t} }
func (t *tx) Transfers() transfers_repo.TransferRepository { return transferRepo{t} }
func (t *tx) Lending() lending_repo.LendingRepository      { return lendingRepo{t} }
func (t *tx) Users() users_repo.UserRepository             { return userRepo{t} }
func (t *tx) Outbox() outbox_repo.OutboxRepository         { return outboxRepo{t} }

func (t *tx) check() error {
	if t.done {
		return errTxDone
	}
	return nil
}

func (t *tx) lockAccount(ctx context.Context, id string) error {
	if _, ok := t.heldAccounts[id]; ok {
		return nil
	}
	l := t.s.accountLock(id)
	if err := l.lock(ctx); err != nil {
		return err
	}
	t.heldAccounts[id] = l
	return nil
}

func (t *tx) lockUser(ctx context.Context, id string) error {
	if _, ok := t.heldUsers[id]; ok {
		return nil
	}
	l := t.s.userLock(id)
	if err := l.lock(ctx); err != nil {
		return err
	}
	t.heldUsers[id] = l
	return nil
}

func (t *tx) release() {
	for _, l := range t.heldAccounts {
		l.unlock()
	}
	for _, l := range t.heldUsers {
		l.unlock()
	}
	for _, row := range t.heldOutbox {
		row.lock.unlock()
	}
	t.heldAccounts = nil
	t.heldUsers = nil
	t.heldOutbox = nil
}

func (t *tx) rollback() {
	if t.done {
		return
	}
	t.done = true
	t.release()
}

// commit validates unique keys against committed state, then applies every
// buffered write while holding the store lock. Row locks are released last.
func (t *tx) commit() error {
	if err := t.check(); err != nil {
		return err
	}
	t.done = true
	defer t.release()

	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range t.newAccounts {
		number := t.accounts[id].Number
		if owner, taken := s.accountNumbers[number]; taken && owner != id {
			return fmt.Errorf("account number %s: %w", number, domain.ErrRetryableCollision)
		}
	}
	for _, id := range t.newUsers {
		if owner, taken := s.userEmails[normalizeEmail(t.users[id].Email)]; taken && owner != id {
			return domain.ErrUserAlreadyExists
		}
	}
	for id, status := range t.outboxStatus {
		if _, ok := s.outboxByID[id]; !ok && !t.hasNewOutbox(id) {
			return fmt.Errorf("no outbox message found with id %s to update status (%s)", id, status)
		}
	}

	for _, id := range t.newAccounts {
		acc := t.accounts[id]
		s.accounts[id] = acc
		s.accountNumbers[acc.Number] = id
	}
	for id := range t.dirty {
		s.accounts[id] = t.accounts[id]
	}
	for _, id := range t.newUsers {
		u := t.users[id]
		s.users[id] = u
		s.userEmails[normalizeEmail(u.Email)] = id
	}
	for id := range t.usersSave {
		s.users[id] = t.users[id]
	}
	for _, tr := range t.transfers {
		s.nextSeq++
		s.transfers = append(s.transfers, storedTransfer{seq: s.nextSeq, transfer: tr})
	}
	for id, rec := range t.loans {
		s.loans[id] = rec
	}
	for id, rec := range t.credits {
		s.credits[id] = rec
	}
	for _, msg := range t.outbox {
		row := &outboxRow{msg: msg, lock: newRowLock()}
		s.outbox = append(s.outbox, row)
		s.outboxByID[msg.ID] = row
	}
	now := s.clock.Now()
	for id, status := range t.outboxStatus {
		applyOutboxStatus(&s.outboxByID[id].msg, status, now)
	}
	return nil
}

func (t *tx) hasNewOutbox(id string) bool {
	for _, msg := range t.outbox {
		if msg.ID == id {
			return true
		}
	}
	return false
}
