package handler

import (
	"strconv"
	"time"

	"personal-ledger/internal/adapter/http/dto"
	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"
	"personal-ledger/pkg/apperror"
	"personal-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler handles profile, balance and history endpoints.
type AccountHandler struct {
	accountSvc ports.AccountService
	currency   string
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService, currency string) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc, currency: currency}
}

// GetProfile handles GET /api/v1/me.
func (h *AccountHandler) GetProfile(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	account, err := h.accountSvc.GetProfile(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAccountResponse(account))
}

// UpdateProfile handles PUT /api/v1/me.
func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	upd := ports.UpdateProfileRequest{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		City:        req.City,
		PostalCode:  req.PostalCode,
		Country:     req.Country,
	}
	if req.DateOfBirth != nil {
		dob, err := dto.ParseDate(*req.DateOfBirth)
		if err != nil {
			response.Error(c, apperror.Validation("date_of_birth must be YYYY-MM-DD"))
			return
		}
		upd.DateOfBirth = &dob
	}

	account, err := h.accountSvc.UpdateProfile(c.Request.Context(), accountID, upd)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewAccountResponse(account))
}

// GetBalance handles GET /api/v1/balance.
func (h *AccountHandler) GetBalance(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	balance, currency, err := h.accountSvc.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BalanceResponse{Balance: balance, Currency: currency})
}

// ListTransactions handles GET /api/v1/transactions.
// from and to accept a unix timestamp or a YYYY-MM-DD date.
func (h *AccountHandler) ListTransactions(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	page, err := intQuery(c, "page", 1)
	if err != nil {
		response.Error(c, err)
		return
	}
	pageSize, err := intQuery(c, "page_size", 20)
	if err != nil {
		response.Error(c, err)
		return
	}

	params := ports.LedgerListParams{
		AccountID: accountID,
		Page:      page,
		PageSize:  pageSize,
	}

	if k := c.Query("kind"); k != "" {
		kind := domain.EntryKind(k)
		params.Kind = &kind
	}
	if params.From, err = timeQuery(c, "from", false); err != nil {
		response.Error(c, err)
		return
	}
	if params.To, err = timeQuery(c, "to", true); err != nil {
		response.Error(c, err)
		return
	}

	entries, total, err := h.accountSvc.ListEntries(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	// The service clamps paging; echo what it applied.
	switch {
	case params.PageSize < 1:
		params.PageSize = 20
	case params.PageSize > 100:
		params.PageSize = 100
	}
	params.Page = max(params.Page, 1)

	response.OK(c, dto.NewEntryListResponse(entries, accountID, total, params.Page, params.PageSize))
}

// GetStats handles GET /api/v1/transactions/stats.
func (h *AccountHandler) GetStats(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	stats, err := h.accountSvc.GetStats(c.Request.Context(), accountID, c.DefaultQuery("period", "all"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewStatsResponse(stats, h.currency))
}

// GetRechargeReceipt handles GET /api/v1/recharges/:reference.
func (h *AccountHandler) GetRechargeReceipt(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	reference := c.Param("reference")
	if len(reference) > 64 || !dto.IsSafeID(reference) {
		response.Error(c, apperror.ErrNotFound("recharge"))
		return
	}

	receipt, err := h.accountSvc.GetRechargeReceipt(c.Request.Context(), accountID, reference)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewReceiptResponse(receipt, accountID))
}

func intQuery(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(name + " must be an integer")
	}
	return v, nil
}

// timeQuery parses a bound as a unix timestamp. A bare date is the start of
// that day in UTC, or its last second when endOfDay is set.
func timeQuery(c *gin.Context, name string, endOfDay bool) (*int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	if ts, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return &ts, nil
	}
	d, err := dto.ParseDate(raw)
	if err != nil {
		return nil, apperror.Validation(name + " must be a unix timestamp or YYYY-MM-DD")
	}
	if endOfDay {
		d = d.Add(24*time.Hour - time.Second)
	}
	ts := d.Unix()
	return &ts, nil
}
