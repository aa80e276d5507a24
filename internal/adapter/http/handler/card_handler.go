package handler

import (
	"personal-ledger/internal/adapter/http/dto"
	"personal-ledger/internal/core/ports"
	"personal-ledger/pkg/apperror"
	"personal-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CardHandler handles saved card endpoints.
type CardHandler struct {
	cardSvc ports.CardService
}

// NewCardHandler creates a new CardHandler.
func NewCardHandler(cardSvc ports.CardService) *CardHandler {
	return &CardHandler{cardSvc: cardSvc}
}

// List handles GET /api/v1/cards.
func (h *CardHandler) List(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}

	cards, err := h.cardSvc.List(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.CardResponse, 0, len(cards))
	for i := range cards {
		items = append(items, dto.NewCardResponse(&cards[i]))
	}
	response.OK(c, items)
}

// SetDefault handles PUT /api/v1/cards/:id/default.
func (h *CardHandler) SetDefault(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}
	cardID, ok := cardParam(c)
	if !ok {
		return
	}

	card, err := h.cardSvc.SetDefault(c.Request.Context(), accountID, cardID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewCardResponse(card))
}

// Delete handles DELETE /api/v1/cards/:id.
func (h *CardHandler) Delete(c *gin.Context) {
	accountID, ok := callerID(c)
	if !ok {
		return
	}
	cardID, ok := cardParam(c)
	if !ok {
		return
	}

	if err := h.cardSvc.Delete(c.Request.Context(), accountID, cardID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func cardParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrNotFound("card"))
		return uuid.Nil, false
	}
	return id, true
}
