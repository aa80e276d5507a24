package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"
	"personal-ledger/pkg/apperror"

	"github.com/google/uuid"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// accountService implements ports.AccountService.
type accountService struct {
	accountRepo ports.AccountRepository
	ledgerRepo  ports.LedgerRepository
	gateway     ports.PaymentGateway
	currency    string
	now         func() time.Time
}

// NewAccountService creates a new account service.
func NewAccountService(
	accountRepo ports.AccountRepository,
	ledgerRepo ports.LedgerRepository,
	gateway ports.PaymentGateway,
	currency string,
) ports.AccountService {
	return &accountService{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		gateway:     gateway,
		currency:    currency,
		now:         time.Now,
	}
}

// GetProfile returns the caller's account.
func (s *accountService) GetProfile(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if account == nil {
		return nil, apperror.ErrNotFound("account")
	}
	return account, nil
}

// UpdateProfile applies the non-nil fields of req. Balance and email are never touched here.
func (s *accountService) UpdateProfile(ctx context.Context, accountID uuid.UUID, req ports.UpdateProfileRequest) (*domain.Account, error) {
	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return nil, err
	}

	p := &account.Profile
	if req.FirstName != nil {
		p.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		p.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.PhoneNumber != nil {
		p.PhoneNumber = optionalString(*req.PhoneNumber)
	}
	if req.DateOfBirth != nil {
		dob := req.DateOfBirth.UTC()
		p.DateOfBirth = &dob
	}
	if req.Address != nil {
		p.Address = optionalString(*req.Address)
	}
	if req.City != nil {
		p.City = optionalString(*req.City)
	}
	if req.PostalCode != nil {
		p.PostalCode = optionalString(*req.PostalCode)
	}
	if req.Country != nil {
		p.Country = strings.TrimSpace(*req.Country)
		if p.Country == "" {
			p.Country = domain.DefaultCountry
		}
	}
	account.UpdatedAt = s.now().UTC()

	if err := s.accountRepo.UpdateProfile(ctx, account); err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, apperror.ErrNotFound("account")
		}
		return nil, apperror.InternalError(fmt.Errorf("update profile: %w", err))
	}
	return account, nil
}

// GetBalance returns the committed balance and the ledger currency.
func (s *accountService) GetBalance(ctx context.Context, accountID uuid.UUID) (domain.Money, string, error) {
	account, err := s.GetProfile(ctx, accountID)
	if err != nil {
		return 0, "", err
	}
	return account.Balance, s.currency, nil
}

// ListEntries returns a paginated list of entries touching the account, newest first.
func (s *accountService) ListEntries(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	if params.Kind != nil && !params.Kind.IsValid() {
		return nil, 0, apperror.Validation("invalid kind: must be transfer or recharge")
	}
	if params.From != nil && params.To != nil && *params.From > *params.To {
		return nil, 0, apperror.Validation("from must not be after to")
	}
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultPageSize
	}
	if params.PageSize > maxPageSize {
		params.PageSize = maxPageSize
	}

	entries, total, err := s.ledgerRepo.ListForAccount(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return entries, total, nil
}

// GetStats returns aggregated totals for the account over period.
func (s *accountService) GetStats(ctx context.Context, accountID uuid.UUID, period string) (*ports.LedgerStats, error) {
	var periodStart *int64

	now := s.now()
	switch period {
	case "day":
		t := now.AddDate(0, 0, -1).Unix()
		periodStart = &t
	case "week":
		t := now.AddDate(0, 0, -7).Unix()
		periodStart = &t
	case "month":
		t := now.AddDate(0, -1, 0).Unix()
		periodStart = &t
	case "all", "":
		// No time filter
	default:
		return nil, apperror.Validation("invalid period: must be day, week, month, or all")
	}

	stats, err := s.ledgerRepo.GetStats(ctx, accountID, periodStart)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

// GetRechargeReceipt returns a recharge of the caller together with the gateway's record.
// Other accounts' references are reported as not found.
func (s *accountService) GetRechargeReceipt(ctx context.Context, accountID uuid.UUID, reference string) (*ports.RechargeReceipt, error) {
	entry, err := s.ledgerRepo.GetByGatewayReference(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if entry == nil || entry.Kind != domain.EntryKindRecharge || entry.DestinationAccountID != accountID {
		return nil, apperror.ErrNotFound("recharge")
	}

	receipt := &ports.RechargeReceipt{Entry: entry}
	record, err := s.gateway.Lookup(ctx, reference)
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		// Gateway records expire; the ledger entry is still authoritative.
	case err != nil:
		return nil, apperror.ErrGatewayUnavailable(err)
	default:
		receipt.Payment = record
	}
	return receipt, nil
}

func optionalString(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
