package postgres

import (
	"context"
	"errors"
	"fmt"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const accountColumns = `id, email, password_hash, first_name, last_name, phone_number, date_of_birth,
		address, city, postal_code, country, balance, version, status, is_verified, created_at, updated_at`

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

// NewAccountRepo creates a new AccountRepo.
func NewAccountRepo(pool Pool) *AccountRepo {
	return &AccountRepo{pool: pool}
}

// Create inserts a new account.
func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	p := a.Profile
	_, err := r.pool.Exec(ctx, query,
		a.ID, a.Email, a.PasswordHash, p.FirstName, p.LastName, p.PhoneNumber, p.DateOfBirth,
		p.Address, p.City, p.PostalCode, p.Country, a.Balance, a.Version, a.Status, a.IsVerified,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", classifyError(err))
	}
	return nil
}

// GetByID fetches an account by its UUID (without locking).
func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get account by id: %w", err)
	}
	return a, nil
}

// GetByEmail fetches an account by its normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	a, err := scanAccount(r.pool.QueryRow(ctx, query, domain.NormalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("get account by email: %w", err)
	}
	return a, nil
}

// UpdateProfile overwrites the profile columns. Balance and version are untouched.
func (r *AccountRepo) UpdateProfile(ctx context.Context, a *domain.Account) error {
	query := `UPDATE accounts SET first_name = $1, last_name = $2, phone_number = $3, date_of_birth = $4,
		address = $5, city = $6, postal_code = $7, country = $8, updated_at = $9
		WHERE id = $10`

	p := a.Profile
	tag, err := r.pool.Exec(ctx, query,
		p.FirstName, p.LastName, p.PhoneNumber, p.DateOfBirth,
		p.Address, p.City, p.PostalCode, p.Country, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return fmt.Errorf("update account profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update account profile %s: %w", a.ID, domain.ErrAccountNotFound)
	}
	return nil
}

// GetByIDForUpdate fetches an account with pessimistic locking.
// This MUST be called within a transaction.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 FOR UPDATE`

	a, err := scanAccount(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("get account for update: %w", classifyError(err))
	}
	return a, nil
}

// ApplyDelta adjusts the balance in one conditional statement.
// The version and non-negative checks are part of the UPDATE predicate.
func (r *AccountRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta domain.Money, expectedVersion int64) (*domain.Account, error) {
	query := `UPDATE accounts SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3 AND balance + $1 >= 0
		RETURNING ` + accountColumns

	a, err := scanAccount(tx.QueryRow(ctx, query, delta, id, expectedVersion))
	if err != nil {
		return nil, fmt.Errorf("apply balance delta: %w", classifyError(err))
	}
	if a != nil {
		return a, nil
	}

	// No row matched: find out which predicate failed.
	var balance domain.Money
	var version int64
	err = tx.QueryRow(ctx, `SELECT balance, version FROM accounts WHERE id = $1`, id).Scan(&balance, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("apply balance delta %s: %w", id, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("inspect account after failed delta: %w", classifyError(err))
	}
	if version != expectedVersion {
		return nil, fmt.Errorf("apply balance delta %s (have v%d, want v%d): %w", id, version, expectedVersion, domain.ErrVersionConflict)
	}
	return nil, fmt.Errorf("apply balance delta %s: %w", id, domain.ErrInsufficientFunds)
}

// scanAccount scans one account row; a missing row yields nil, nil.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	p := &a.Profile
	err := row.Scan(
		&a.ID, &a.Email, &a.PasswordHash, &p.FirstName, &p.LastName, &p.PhoneNumber, &p.DateOfBirth,
		&p.Address, &p.City, &p.PostalCode, &p.Country, &a.Balance, &a.Version, &a.Status, &a.IsVerified,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}
