package domain

import "time"

// PaymentStatus is the gateway-side state of an authorization attempt.
type PaymentStatus string

const (
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusDeclined PaymentStatus = "declined"
)

// Authorization is an approved gateway charge.
type Authorization struct {
	Reference  string    `json:"reference"`
	Amount     Money     `json:"amount"`
	Currency   string    `json:"currency"`
	ApprovedAt time.Time `json:"approved_at"`
}

// PaymentRecord is what the gateway remembers about an authorization attempt.
type PaymentRecord struct {
	Reference     string        `json:"reference"`
	Amount        Money         `json:"amount"`
	Currency      string        `json:"currency"`
	Status        PaymentStatus `json:"status"`
	DeclineReason DeclineReason `json:"decline_reason,omitempty"`
	CardLast4     string        `json:"card_last4"`
	CreatedAt     time.Time     `json:"created_at"`
}

// CardInfo is the non-sensitive card metadata returned by the gateway.
type CardInfo struct {
	Token string    `json:"-"`
	Brand CardBrand `json:"brand"`
	Last4 string    `json:"last4"`
}
