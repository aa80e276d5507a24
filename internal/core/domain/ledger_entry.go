package domain

import (
	"time"

	"github.com/google/uuid"
)

// EntryKind represents the kind of money movement.
type EntryKind string

const (
	EntryKindTransfer EntryKind = "transfer"
	EntryKindRecharge EntryKind = "recharge"
)

// IsValid reports whether k is a known entry kind.
func (k EntryKind) IsValid() bool {
	return k == EntryKindTransfer || k == EntryKindRecharge
}

// EntryDirection describes an entry relative to one account.
type EntryDirection string

const (
	DirectionIncoming EntryDirection = "incoming"
	DirectionOutgoing EntryDirection = "outgoing"
)

// LedgerEntry is an immutable record of a committed money movement.
// A nil SourceAccountID means the funds came from outside the system.
type LedgerEntry struct {
	ID                   uuid.UUID  `json:"id"`
	SourceAccountID      *uuid.UUID `json:"source_account_id,omitempty"`
	DestinationAccountID uuid.UUID  `json:"destination_account_id"`
	Amount               Money      `json:"amount"`
	Kind                 EntryKind  `json:"kind"`
	Description          string     `json:"description"`
	GatewayReference     *string    `json:"gateway_reference,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
}

// IsExternal returns true if the entry brought funds in from the gateway.
func (e *LedgerEntry) IsExternal() bool {
	return e.SourceAccountID == nil
}

// DirectionFor returns whether the entry credited or debited accountID.
func (e *LedgerEntry) DirectionFor(accountID uuid.UUID) EntryDirection {
	if e.SourceAccountID != nil && *e.SourceAccountID == accountID {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

// TransferDescription is the default description for a transfer.
func TransferDescription(recipientEmail string) string {
	return "Transfer to " + recipientEmail
}

// RechargeDescription references the gateway authorization.
func RechargeDescription(reference string) string {
	return "Recharge via card (ref: " + reference + ")"
}
