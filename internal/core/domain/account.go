package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountStatus represents the state of an account. Accounts are never hard-deleted.
type AccountStatus string

const (
	AccountStatusActive    AccountStatus = "ACTIVE"
	AccountStatusSuspended AccountStatus = "SUSPENDED"
	AccountStatusClosed    AccountStatus = "CLOSED"
)

// DefaultCountry is assigned when a profile does not specify one.
const DefaultCountry = "Italia"

// Profile holds the personal details collected at registration.
type Profile struct {
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	PhoneNumber *string    `json:"phone_number,omitempty"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	Address     *string    `json:"address,omitempty"`
	City        *string    `json:"city,omitempty"`
	PostalCode  *string    `json:"postal_code,omitempty"`
	Country     string     `json:"country"`
}

// Account is a user's balance holder. Balance is mutated only by the ledger engine.
type Account struct {
	ID           uuid.UUID     `json:"id"`
	Email        string        `json:"email"`
	PasswordHash string        `json:"-"` // Never expose
	Profile      Profile       `json:"profile"`
	Balance      Money         `json:"balance"`
	Version      int64         `json:"-"`
	Status       AccountStatus `json:"status"`
	IsVerified   bool          `json:"is_verified"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsActive returns true if the account may send or receive funds.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// CanDebit reports whether the balance covers amount.
func (a *Account) CanDebit(amount Money) bool {
	return a.Balance >= amount
}

// FullName joins first and last name.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.Profile.FirstName + " " + a.Profile.LastName)
}

// NormalizeEmail lowercases and trims an email address used as account identity.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
