package ports

//go:generate mockgen -source=repositories.go -destination=mocks/repositories_mock.go -package=mocks

import (
	"context"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for accounts.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, account *domain.Account) error
	// GetByIDForUpdate acquires an exclusive lock on the row until tx ends.
	// Returns domain.ErrLockTimeout when the lock cannot be taken in time.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Account, error)
	// ApplyDelta adds delta to the balance if the version matches and the result stays >= 0.
	// Fails with domain.ErrInsufficientFunds, domain.ErrVersionConflict or domain.ErrAccountNotFound.
	ApplyDelta(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta domain.Money, expectedVersion int64) (*domain.Account, error)
}

// LedgerRepository is the append-only log of committed entries.
type LedgerRepository interface {
	Append(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetByGatewayReference(ctx context.Context, reference string) (*domain.LedgerEntry, error)
	ListForAccount(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	GetStats(ctx context.Context, accountID uuid.UUID, periodStart *int64) (*LedgerStats, error)
}

// LedgerListParams holds filter + pagination for listing entries.
type LedgerListParams struct {
	AccountID uuid.UUID
	Kind      *domain.EntryKind
	From      *int64 // Unix timestamp
	To        *int64 // Unix timestamp
	Page      int
	PageSize  int
}

// LedgerStats holds aggregated totals for one account.
type LedgerStats struct {
	TotalEntries  int64
	TransfersOut  int64
	TransfersIn   int64
	Recharges     int64
	TotalSent     domain.Money
	TotalReceived domain.Money
	TotalRecharge domain.Money
}

// CardRepository defines persistence for saved cards.
// Mutating methods run inside a transaction that already holds the owner's account lock.
type CardRepository interface {
	Create(ctx context.Context, tx pgx.Tx, card *domain.SavedCard) error
	// GetByIDForUpdate reads the card inside tx; nil when it is gone or not owned by accountID.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID, cardID uuid.UUID) (*domain.SavedCard, error)
	GetByToken(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, token string) (*domain.SavedCard, error)
	CountByAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.SavedCard, error)
	ClearDefault(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) error
	SetDefault(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) error
	Delete(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) error
	// OldestRemaining returns the oldest card of the account, or nil when none is left.
	OldestRemaining(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.SavedCard, error)
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// IdempotencyRepository is the durable record of completed keyed recharges.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// PaymentRecordStore keeps gateway authorization records for a bounded lifetime.
type PaymentRecordStore interface {
	Save(ctx context.Context, record *domain.PaymentRecord, ttl time.Duration) error
	Get(ctx context.Context, reference string) (*domain.PaymentRecord, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
