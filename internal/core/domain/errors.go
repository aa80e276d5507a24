package domain

import (
	"errors"
	"fmt"
)

// Store-level conditions. Repositories wrap these so services can classify failures.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrVersionConflict   = errors.New("account version conflict")
	ErrLockTimeout       = errors.New("lock acquisition timed out")
	ErrEmailTaken        = errors.New("email already registered")
	ErrCardNotFound      = errors.New("saved card not found")
)

// Gateway-level conditions.
var (
	ErrInvalidCardToken   = errors.New("invalid card token")
	ErrInvalidCardNumber  = errors.New("invalid card number")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentNotFound    = errors.New("payment not found")
	ErrRechargeInProgress = errors.New("recharge already in progress")
)

// DeclineReason classifies why the gateway refused an authorization.
type DeclineReason string

const (
	DeclineInvalidToken       DeclineReason = "invalid_token"
	DeclineInvalidAmount      DeclineReason = "invalid_amount"
	DeclineAmountAboveCeiling DeclineReason = "amount_above_ceiling"
	DeclineRejected           DeclineReason = "declined"
)

// PaymentDeclinedError is a business decline, not an infrastructure failure.
type PaymentDeclinedError struct {
	Reason    DeclineReason
	Message   string
	Reference string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined (%s): %s", e.Reason, e.Message)
}
