package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func newTestAccount() *domain.Account {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Account{
		ID:           uuid.New(),
		Email:        "alice@example.com",
		PasswordHash: "$argon2id$hash",
		Profile: domain.Profile{
			FirstName:   "Alice",
			LastName:    "Bianchi",
			PhoneNumber: strPtr("+39 333 1234567"),
			City:        strPtr("Milano"),
			Country:     domain.DefaultCountry,
		},
		Balance:   domain.Money(100000),
		Version:   3,
		Status:    domain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func accountColumnNames() []string {
	return []string{"id", "email", "password_hash", "first_name", "last_name", "phone_number", "date_of_birth",
		"address", "city", "postal_code", "country", "balance", "version", "status", "is_verified", "created_at", "updated_at"}
}

func accountRow(a *domain.Account) *pgxmock.Rows {
	p := a.Profile
	return pgxmock.NewRows(accountColumnNames()).AddRow(
		a.ID, a.Email, a.PasswordHash, p.FirstName, p.LastName, p.PhoneNumber, p.DateOfBirth,
		p.Address, p.City, p.PostalCode, p.Country, a.Balance, a.Version, a.Status, a.IsVerified,
		a.CreatedAt, a.UpdatedAt,
	)
}

func TestAccountRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()
	p := a.Profile

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(a.ID, a.Email, a.PasswordHash, p.FirstName, p.LastName, p.PhoneNumber, p.DateOfBirth,
			p.Address, p.City, p.PostalCode, p.Country, a.Balance, a.Version, a.Status, a.IsVerified,
			a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = repo.Create(context.Background(), a)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_Create_DuplicateEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectExec("INSERT INTO accounts").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: codeUniqueViolation, ConstraintName: constraintEmailUnique})

	err = repo.Create(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmailTaken))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(a.ID).
		WillReturnRows(accountRow(a))

	result, err := repo.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.Equal(t, a.Balance, result.Balance)
	assert.Equal(t, "Milano", *result.Profile.City)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(accountColumnNames()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByEmail_Normalizes(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectQuery("SELECT .+ FROM accounts WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(accountRow(a))

	result, err := repo.GetByEmail(context.Background(), "  Alice@Example.com ")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_UpdateProfile_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectExec("UPDATE accounts SET first_name").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), a.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateProfile(context.Background(), a)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAccountNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(a.ID).
		WillReturnRows(accountRow(a))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, a.Version, result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_GetByIDForUpdate_LockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM accounts WHERE id .+ FOR UPDATE").
		WithArgs(pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: codeLockNotAvailable, Message: "canceling statement due to lock timeout"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetByIDForUpdate(context.Background(), tx, uuid.New())
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrLockTimeout))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_ApplyDelta(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	a := newTestAccount()
	updated := *a
	updated.Balance = 97000
	updated.Version = a.Version + 1

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts SET balance = balance \\+ \\$1, version = version \\+ 1").
		WithArgs(domain.Money(-3000), a.ID, a.Version).
		WillReturnRows(accountRow(&updated))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.ApplyDelta(context.Background(), tx, a.ID, -3000, a.Version)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(97000), result.Balance)
	assert.Equal(t, a.Version+1, result.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountRepo_ApplyDelta_Classification(t *testing.T) {
	tests := []struct {
		name      string
		probeRows *pgxmock.Rows
		wantErr   error
	}{
		{
			name:      "insufficient funds",
			probeRows: pgxmock.NewRows([]string{"balance", "version"}).AddRow(domain.Money(1000), int64(3)),
			wantErr:   domain.ErrInsufficientFunds,
		},
		{
			name:      "version conflict",
			probeRows: pgxmock.NewRows([]string{"balance", "version"}).AddRow(domain.Money(100000), int64(4)),
			wantErr:   domain.ErrVersionConflict,
		},
		{
			name:      "account missing",
			probeRows: pgxmock.NewRows([]string{"balance", "version"}),
			wantErr:   domain.ErrAccountNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewAccountRepo(mock)
			id := uuid.New()

			mock.ExpectBegin()
			mock.ExpectQuery("UPDATE accounts SET balance").
				WithArgs(domain.Money(-5000), id, int64(3)).
				WillReturnRows(pgxmock.NewRows(accountColumnNames()))
			mock.ExpectQuery("SELECT balance, version FROM accounts WHERE id").
				WithArgs(id).
				WillReturnRows(tt.probeRows)

			tx, err := mock.Begin(context.Background())
			require.NoError(t, err)

			result, err := repo.ApplyDelta(context.Background(), tx, id, -5000, 3)
			assert.Nil(t, result)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountRepo_ApplyDelta_CheckConstraint(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAccountRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE accounts SET balance").
		WithArgs(domain.Money(-1), id, int64(0)).
		WillReturnError(&pgconn.PgError{Code: codeCheckViolation, ConstraintName: constraintBalanceNonNegative})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	_, err = repo.ApplyDelta(context.Background(), tx, id, -1, 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientFunds))
	assert.NoError(t, mock.ExpectationsWereMet())
}
