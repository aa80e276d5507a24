package domain

import (
	"time"

	"github.com/google/uuid"
)

// CardBrand is the card network inferred from the number prefix.
type CardBrand string

const (
	CardBrandVisa       CardBrand = "Visa"
	CardBrandMastercard CardBrand = "Mastercard"
	CardBrandAmex       CardBrand = "American Express"
	CardBrandDiscover   CardBrand = "Discover"
	CardBrandJCB        CardBrand = "JCB"
	CardBrandDiners     CardBrand = "Diners Club"
	CardBrandUnionPay   CardBrand = "UnionPay"
	CardBrandUnknown    CardBrand = "Unknown"
)

// SavedCard is a tokenized card on file. At most one card per account is default.
type SavedCard struct {
	ID        uuid.UUID  `json:"id"`
	AccountID uuid.UUID  `json:"account_id"`
	Token     string     `json:"-"`
	Last4     string     `json:"last4"`
	Brand     CardBrand  `json:"brand"`
	IsDefault bool       `json:"is_default"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// CardDetails is the raw card data submitted with a recharge.
// Only the brand and last four digits are ever stored.
type CardDetails struct {
	Number     string
	Expiry     string
	CVV        string
	HolderName string
}
