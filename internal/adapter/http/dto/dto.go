package dto

import (
	"math"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Email       string  `json:"email" binding:"required,email,max=255"`
	Password    string  `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
	FirstName   string  `json:"first_name" binding:"required,min=1,max=100"`
	LastName    string  `json:"last_name" binding:"required,min=1,max=100"`
	PhoneNumber *string `json:"phone_number,omitempty" binding:"omitempty,max=30"`
	DateOfBirth *string `json:"date_of_birth,omitempty" binding:"omitempty,date_only"`
	Address     *string `json:"address,omitempty" binding:"omitempty,max=255"`
	City        *string `json:"city,omitempty" binding:"omitempty,max=100"`
	PostalCode  *string `json:"postal_code,omitempty" binding:"omitempty,max=20"`
	Country     *string `json:"country,omitempty" binding:"omitempty,max=100"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// AuthResponse is returned by register, login and refresh.
// Clients renew the session through /auth/refresh once refresh_after has passed.
type AuthResponse struct {
	AccountID    string `json:"account_id"`
	Email        string `json:"email"`
	Token        string `json:"token"`
	ExpiresAt    int64  `json:"expires_at"`    // Unix timestamp
	RefreshAfter int64  `json:"refresh_after"` // Unix timestamp
}

// UpdateProfileRequest is the request body for PUT /me. Omitted fields are unchanged.
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name,omitempty" binding:"omitempty,min=1,max=100"`
	LastName    *string `json:"last_name,omitempty" binding:"omitempty,min=1,max=100"`
	PhoneNumber *string `json:"phone_number,omitempty" binding:"omitempty,max=30"`
	DateOfBirth *string `json:"date_of_birth,omitempty" binding:"omitempty,date_only"`
	Address     *string `json:"address,omitempty" binding:"omitempty,max=255"`
	City        *string `json:"city,omitempty" binding:"omitempty,max=100"`
	PostalCode  *string `json:"postal_code,omitempty" binding:"omitempty,max=20"`
	Country     *string `json:"country,omitempty" binding:"omitempty,max=100"`
}

// AccountResponse is the caller's profile.
type AccountResponse struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	FirstName   string       `json:"first_name"`
	LastName    string       `json:"last_name"`
	PhoneNumber *string      `json:"phone_number,omitempty"`
	DateOfBirth *string      `json:"date_of_birth,omitempty"`
	Address     *string      `json:"address,omitempty"`
	City        *string      `json:"city,omitempty"`
	PostalCode  *string      `json:"postal_code,omitempty"`
	Country     string       `json:"country"`
	Balance     domain.Money `json:"balance"`
	Status      string       `json:"status"`
	IsVerified  bool         `json:"is_verified"`
	CreatedAt   string       `json:"created_at"`
}

// BalanceResponse is the response for balance query.
type BalanceResponse struct {
	Balance  domain.Money `json:"balance"`
	Currency string       `json:"currency"`
}

// TransferRequest is the request body for a peer transfer.
type TransferRequest struct {
	RecipientEmail string       `json:"recipient_email" binding:"required,email"`
	Amount         domain.Money `json:"amount" binding:"required"`
	Description    *string      `json:"description,omitempty" binding:"omitempty,max=255"`
}

// RechargeRequest is the request body for a card recharge.
type RechargeRequest struct {
	Amount    domain.Money        `json:"amount" binding:"required"`
	CardToken string              `json:"card_token" binding:"required,max=64,safe_id"`
	SaveCard  bool                `json:"save_card"`
	Card      *CardDetailsRequest `json:"card,omitempty"`
}

// CardDetailsRequest carries the card data needed to save a card. Only brand and last4 are kept.
type CardDetailsRequest struct {
	Number     string `json:"number" binding:"required,numeric,min=12,max=19"`
	Expiry     string `json:"expiry" binding:"required,card_expiry"`
	CVV        string `json:"cvv" binding:"required,numeric,min=3,max=4"`
	HolderName string `json:"holder_name" binding:"required,max=100"`
}

// EntryResponse is a ledger entry seen from the caller's account.
type EntryResponse struct {
	ID                   string       `json:"id"`
	Kind                 string       `json:"kind"`
	Direction            string       `json:"direction"`
	Amount               domain.Money `json:"amount"`
	Description          string       `json:"description"`
	SourceAccountID      *string      `json:"source_account_id,omitempty"`
	DestinationAccountID string       `json:"destination_account_id"`
	GatewayReference     *string      `json:"gateway_reference,omitempty"`
	CreatedAt            string       `json:"created_at"`
}

// EntryListResponse wraps a paginated entry list.
type EntryListResponse struct {
	Items      []EntryResponse `json:"items"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
	TotalPages int             `json:"total_pages"`
}

// StatsResponse is the response for ledger statistics.
type StatsResponse struct {
	TotalEntries   int64        `json:"total_entries"`
	TransfersOut   int64        `json:"transfers_out"`
	TransfersIn    int64        `json:"transfers_in"`
	Recharges      int64        `json:"recharges"`
	TotalSent      domain.Money `json:"total_sent"`
	TotalReceived  domain.Money `json:"total_received"`
	TotalRecharged domain.Money `json:"total_recharged"`
	Currency       string       `json:"currency"`
}

// PaymentResponse is the gateway's record of an authorization.
type PaymentResponse struct {
	Reference     string       `json:"reference"`
	Status        string       `json:"status"`
	DeclineReason string       `json:"decline_reason,omitempty"`
	Amount        domain.Money `json:"amount"`
	Currency      string       `json:"currency"`
	CardLast4     string       `json:"card_last4"`
	CreatedAt     string       `json:"created_at"`
}

// ReceiptResponse pairs a recharge with its gateway record. Payment is null once the record expired.
type ReceiptResponse struct {
	Entry   EntryResponse    `json:"entry"`
	Payment *PaymentResponse `json:"payment"`
}

// CardResponse is a saved card without its token.
type CardResponse struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
}

// NewAuthResponse maps an AuthResult.
func NewAuthResponse(res *ports.AuthResult) AuthResponse {
	return AuthResponse{
		AccountID:    res.Account.ID.String(),
		Email:        res.Account.Email,
		Token:        res.Token.Token,
		ExpiresAt:    res.Token.ExpiresAt.Unix(),
		RefreshAfter: res.Token.RefreshAfter.Unix(),
	}
}

// NewAccountResponse maps a domain account.
func NewAccountResponse(a *domain.Account) AccountResponse {
	p := a.Profile
	resp := AccountResponse{
		ID:          a.ID.String(),
		Email:       a.Email,
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		PhoneNumber: p.PhoneNumber,
		Address:     p.Address,
		City:        p.City,
		PostalCode:  p.PostalCode,
		Country:     p.Country,
		Balance:     a.Balance,
		Status:      string(a.Status),
		IsVerified:  a.IsVerified,
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
	if p.DateOfBirth != nil {
		dob := p.DateOfBirth.Format(DateLayout)
		resp.DateOfBirth = &dob
	}
	return resp
}

// EntryFor maps an entry as seen by the account accountID.
func EntryFor(e *domain.LedgerEntry, accountID uuid.UUID) EntryResponse {
	return newEntryResponse(e, e.DirectionFor(accountID))
}

func newEntryResponse(e *domain.LedgerEntry, dir domain.EntryDirection) EntryResponse {
	resp := EntryResponse{
		ID:                   e.ID.String(),
		Kind:                 string(e.Kind),
		Direction:            string(dir),
		Amount:               e.Amount,
		Description:          e.Description,
		DestinationAccountID: e.DestinationAccountID.String(),
		GatewayReference:     e.GatewayReference,
		CreatedAt:            e.CreatedAt.Format(time.RFC3339),
	}
	if e.SourceAccountID != nil {
		s := e.SourceAccountID.String()
		resp.SourceAccountID = &s
	}
	return resp
}

// NewEntryListResponse maps a page of entries for accountID.
func NewEntryListResponse(entries []domain.LedgerEntry, accountID uuid.UUID, total int64, page, pageSize int) EntryListResponse {
	items := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		items = append(items, EntryFor(&entries[i], accountID))
	}
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return EntryListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}

// NewStatsResponse maps ledger statistics.
func NewStatsResponse(s *ports.LedgerStats, currency string) StatsResponse {
	return StatsResponse{
		TotalEntries:   s.TotalEntries,
		TransfersOut:   s.TransfersOut,
		TransfersIn:    s.TransfersIn,
		Recharges:      s.Recharges,
		TotalSent:      s.TotalSent,
		TotalReceived:  s.TotalReceived,
		TotalRecharged: s.TotalRecharge,
		Currency:       currency,
	}
}

// NewReceiptResponse maps a recharge receipt for accountID.
func NewReceiptResponse(r *ports.RechargeReceipt, accountID uuid.UUID) ReceiptResponse {
	resp := ReceiptResponse{Entry: EntryFor(r.Entry, accountID)}
	if p := r.Payment; p != nil {
		resp.Payment = &PaymentResponse{
			Reference:     p.Reference,
			Status:        string(p.Status),
			DeclineReason: string(p.DeclineReason),
			Amount:        p.Amount,
			Currency:      p.Currency,
			CardLast4:     p.CardLast4,
			CreatedAt:     p.CreatedAt.Format(time.RFC3339),
		}
	}
	return resp
}

// NewCardResponse maps a saved card.
func NewCardResponse(c *domain.SavedCard) CardResponse {
	return CardResponse{
		ID:        c.ID.String(),
		Brand:     string(c.Brand),
		Last4:     c.Last4,
		IsDefault: c.IsDefault,
		CreatedAt: c.CreatedAt.Format(time.RFC3339),
	}
}
