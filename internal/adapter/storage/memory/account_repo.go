package memory

import (
	"context"
	"fmt"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	s *Store
}

// NewAccountRepo creates an account repository over the store.
func NewAccountRepo(s *Store) *AccountRepo {
	return &AccountRepo{s: s}
}

// Create inserts a new account; the email must be unused.
func (r *AccountRepo) Create(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	email := domain.NormalizeEmail(a.Email)
	if _, taken := r.s.byEmail[email]; taken {
		return fmt.Errorf("insert account: %w", domain.ErrEmailTaken)
	}
	if a.Balance < 0 {
		return fmt.Errorf("insert account: %w", domain.ErrInsufficientFunds)
	}

	stored := cloneAccount(a)
	stored.Email = email
	r.s.accounts[a.ID] = stored
	r.s.byEmail[email] = a.ID
	return nil
}

// GetByID returns a committed snapshot of the account, or nil when absent.
func (r *AccountRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Account, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return cloneAccount(a), nil
}

// GetByEmail looks an account up by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.s.mu.RLock()
	id, ok := r.s.byEmail[domain.NormalizeEmail(email)]
	r.s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// UpdateProfile replaces the profile fields only.
func (r *AccountRepo) UpdateProfile(_ context.Context, a *domain.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.accounts[a.ID]
	if !ok {
		return fmt.Errorf("update account profile: %w", domain.ErrAccountNotFound)
	}
	stored.Profile = a.Profile
	stored.UpdatedAt = a.UpdatedAt
	return nil
}

// GetByIDForUpdate takes the account lock for the rest of tx.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	t, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, id); err != nil {
		return nil, fmt.Errorf("lock account: %w", err)
	}
	return t.account(id), nil
}

// ApplyDelta stages a balance change guarded by version and non-negativity.
func (r *AccountRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta domain.Money, expectedVersion int64) (*domain.Account, error) {
	t, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, id); err != nil {
		return nil, fmt.Errorf("apply delta: %w", err)
	}

	a := t.account(id)
	switch {
	case a == nil:
		return nil, fmt.Errorf("apply delta: %w", domain.ErrAccountNotFound)
	case a.Version != expectedVersion:
		return nil, fmt.Errorf("apply delta: %w", domain.ErrVersionConflict)
	case a.Balance+delta < 0:
		return nil, fmt.Errorf("apply delta: %w", domain.ErrInsufficientFunds)
	}

	a.Balance += delta
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	t.accounts[id] = a
	return cloneAccount(a), nil
}
