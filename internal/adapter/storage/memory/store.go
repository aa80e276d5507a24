// Package memory is a process-local implementation of the storage ports.
// It keeps the same locking contract as the PostgreSQL store so the ledger
// engine behaves identically on both.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrForeignTx is returned when a repository receives a transaction it did not create.
var ErrForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds all committed state. It implements ports.DBTransactor.
type Store struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*domain.Account
	byEmail  map[string]uuid.UUID
	entries  []domain.LedgerEntry
	cards    map[uuid.UUID]*domain.SavedCard
	audit    []domain.AuditLog

	idempotency map[string]domain.IdempotencyLog

	locks       *lockManager
	lockTimeout time.Duration
}

// NewStore creates an empty store. lockTimeout bounds every account lock wait.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		accounts:    make(map[uuid.UUID]*domain.Account),
		byEmail:     make(map[string]uuid.UUID),
		cards:       make(map[uuid.UUID]*domain.SavedCard),
		idempotency: make(map[string]domain.IdempotencyLog),
		locks:       newLockManager(),
		lockTimeout: lockTimeout,
	}
}

// Begin starts a transaction. Changes are staged and become visible on Commit.
func (s *Store) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &Tx{
		store:    s,
		held:     make(map[uuid.UUID]struct{}),
		accounts: make(map[uuid.UUID]*domain.Account),
		cards:    make(map[uuid.UUID]*domain.SavedCard),
	}, nil
}

// Ping implements ports.HealthChecker.
func (s *Store) Ping(context.Context) error { return nil }

// Name implements ports.HealthChecker.
func (s *Store) Name() string { return "memory" }

// Tx is a staged unit of work holding exclusive account locks until it ends.
// Only Commit and Rollback are implemented; the embedded pgx.Tx is nil.
type Tx struct {
	pgx.Tx

	store    *Store
	held     map[uuid.UUID]struct{}
	accounts map[uuid.UUID]*domain.Account
	entries  []domain.LedgerEntry
	cards    map[uuid.UUID]*domain.SavedCard // nil value marks a delete
	done     bool

	idempotency []domain.IdempotencyLog
}

// Commit publishes staged changes atomically and releases the locks.
func (t *Tx) Commit(_ context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.releaseAll()

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, staged := range t.accounts {
		base, ok := s.accounts[id]
		if !ok {
			return fmt.Errorf("commit: %w", domain.ErrAccountNotFound)
		}
		base.Balance = staged.Balance
		base.Version = staged.Version
		base.UpdatedAt = staged.UpdatedAt
	}
	s.entries = append(s.entries, t.entries...)
	for id, c := range t.cards {
		if c == nil {
			delete(s.cards, id)
			continue
		}
		s.cards[id] = c
	}
	for _, log := range t.idempotency {
		s.idempotency[log.Key] = log
	}
	return nil
}

// Rollback discards staged changes. It is a no-op after Commit.
func (t *Tx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.releaseAll()
	return nil
}

func (t *Tx) lock(ctx context.Context, id uuid.UUID) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	if _, ok := t.held[id]; ok {
		return nil
	}
	if err := t.store.locks.acquire(ctx, id, t.store.lockTimeout); err != nil {
		return err
	}
	t.held[id] = struct{}{}
	return nil
}

func (t *Tx) releaseAll() {
	for id := range t.held {
		t.store.locks.release(id)
	}
	t.held = nil
}

// account returns the tx view of an account, or nil when absent.
func (t *Tx) account(id uuid.UUID) *domain.Account {
	if a, ok := t.accounts[id]; ok {
		return cloneAccount(a)
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if a, ok := t.store.accounts[id]; ok {
		return cloneAccount(a)
	}
	return nil
}

// accountCards returns the tx view of one account's cards.
func (t *Tx) accountCards(accountID uuid.UUID) []domain.SavedCard {
	t.store.mu.RLock()
	merged := make(map[uuid.UUID]domain.SavedCard)
	for id, c := range t.store.cards {
		if c.AccountID == accountID {
			merged[id] = *c
		}
	}
	t.store.mu.RUnlock()

	for id, c := range t.cards {
		if c == nil {
			delete(merged, id)
			continue
		}
		if c.AccountID == accountID {
			merged[id] = *c
		}
	}

	out := make([]domain.SavedCard, 0, len(merged))
	for _, c := range merged {
		out = append(out, c)
	}
	return out
}

func (t *Tx) card(id uuid.UUID) *domain.SavedCard {
	if c, ok := t.cards[id]; ok {
		if c == nil {
			return nil
		}
		cp := *c
		return &cp
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if c, ok := t.store.cards[id]; ok {
		cp := *c
		return &cp
	}
	return nil
}

func txFrom(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok || t == nil {
		return nil, ErrForeignTx
	}
	if t.done {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

func cloneAccount(a *domain.Account) *domain.Account {
	cp := *a
	return &cp
}
