package handler

import (
	"personal-ledger/internal/adapter/http/dto"
	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"
	"personal-ledger/pkg/apperror"
	"personal-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets clients retry a recharge without charging twice.
const HeaderIdempotencyKey = "Idempotency-Key"

// LedgerHandler handles the balance-changing endpoints.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Transfer handles POST /api/v1/transfers.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	entry, err := h.ledgerSvc.Transfer(c.Request.Context(), ports.TransferRequest{
		CallerID:       accountID,
		RecipientEmail: req.RecipientEmail,
		Amount:         req.Amount,
		Description:    req.Description,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.EntryFor(entry, accountID))
}

// Recharge handles POST /api/v1/recharges.
func (h *LedgerHandler) Recharge(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	idemKey := c.GetHeader(HeaderIdempotencyKey)
	if idemKey != "" && (len(idemKey) > 64 || !dto.IsSafeID(idemKey)) {
		response.Error(c, apperror.Validation("Idempotency-Key must be at most 64 characters of [A-Za-z0-9._-]"))
		return
	}

	var req dto.RechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	if req.SaveCard && req.Card == nil {
		response.Error(c, apperror.Validation("card details are required to save a card"))
		return
	}

	svcReq := ports.RechargeRequest{
		CallerID:       accountID,
		Amount:         req.Amount,
		CardToken:      req.CardToken,
		SaveCard:       req.SaveCard,
		IdempotencyKey: idemKey,
	}
	if req.Card != nil {
		svcReq.Card = &domain.CardDetails{
			Number:     req.Card.Number,
			Expiry:     req.Card.Expiry,
			CVV:        req.Card.CVV,
			HolderName: req.Card.HolderName,
		}
	}

	entry, err := h.ledgerSvc.Recharge(c.Request.Context(), svcReq)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.EntryFor(entry, accountID))
}
