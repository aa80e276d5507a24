package ports

//go:generate mockgen -source=services.go -destination=mocks/services_mock.go -package=mocks

import (
	"context"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// PaymentGateway authorizes card charges against an external processor.
type PaymentGateway interface {
	// Authorize returns *domain.PaymentDeclinedError for business declines.
	Authorize(ctx context.Context, amount domain.Money, cardToken string) (*domain.Authorization, error)
	DescribeCard(cardToken, cardNumber string) (*domain.CardInfo, error)
	Lookup(ctx context.Context, reference string) (*domain.PaymentRecord, error)
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(accountID uuid.UUID, email string) (*IssuedToken, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// IssuedToken is a signed token with its renewal schedule.
type IssuedToken struct {
	Token        string
	IssuedAt     time.Time
	ExpiresAt    time.Time
	RefreshAfter time.Time
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	AccountID uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// IdempotencyCache is the Redis-layer replay cache for recharges.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RechargeLocker serializes concurrent recharges sharing an idempotency key.
type RechargeLocker interface {
	// Acquire returns domain.ErrRechargeInProgress when another holder owns key.
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// EventPublisher emits committed ledger entries to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LedgerEvent) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the transaction engine: the only writer of balances.
type LedgerService interface {
	Transfer(ctx context.Context, req TransferRequest) (*domain.LedgerEntry, error)
	Recharge(ctx context.Context, req RechargeRequest) (*domain.LedgerEntry, error)
}

// TransferRequest holds validated input for a peer transfer.
type TransferRequest struct {
	CallerID       uuid.UUID
	RecipientEmail string
	Amount         domain.Money
	Description    *string
}

// RechargeRequest holds validated input for a card recharge.
type RechargeRequest struct {
	CallerID       uuid.UUID
	Amount         domain.Money
	CardToken      string
	SaveCard       bool
	Card           *domain.CardDetails
	IdempotencyKey string
}

// AuthService defines authentication business logic.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*AuthResult, error)
	Login(ctx context.Context, email, password string) (*AuthResult, error)
	Refresh(ctx context.Context, accountID uuid.UUID) (*AuthResult, error)
}

// RegisterRequest holds input for account registration.
type RegisterRequest struct {
	Email    string
	Password string
	Profile  domain.Profile
}

// AuthResult is returned by every operation that issues a session token.
type AuthResult struct {
	Account *domain.Account
	Token   *IssuedToken
}

// AccountService covers profile, balance and history reads.
type AccountService interface {
	GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	UpdateProfile(ctx context.Context, accountID uuid.UUID, req UpdateProfileRequest) (*domain.Account, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (domain.Money, string, error) // balance, currency, error
	ListEntries(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	GetStats(ctx context.Context, accountID uuid.UUID, period string) (*LedgerStats, error)
	GetRechargeReceipt(ctx context.Context, accountID uuid.UUID, reference string) (*RechargeReceipt, error)
}

// UpdateProfileRequest carries optional profile changes; nil fields are left untouched.
type UpdateProfileRequest struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	DateOfBirth *time.Time
	Address     *string
	City        *string
	PostalCode  *string
	Country     *string
}

// RechargeReceipt pairs a recharge entry with the gateway's record of it.
type RechargeReceipt struct {
	Entry   *domain.LedgerEntry
	Payment *domain.PaymentRecord // nil once the gateway record has expired
}

// CardService manages saved cards outside of a recharge.
type CardService interface {
	List(ctx context.Context, accountID uuid.UUID) ([]domain.SavedCard, error)
	SetDefault(ctx context.Context, accountID, cardID uuid.UUID) (*domain.SavedCard, error)
	Delete(ctx context.Context, accountID, cardID uuid.UUID) error
}

// AuditService records security-relevant actions without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
