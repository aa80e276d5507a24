package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEvent is published after an entry commits. Consumers must tolerate duplicates.
type LedgerEvent struct {
	EventID              uuid.UUID  `json:"event_id"`
	EntryID              uuid.UUID  `json:"entry_id"`
	Kind                 EntryKind  `json:"kind"`
	SourceAccountID      *uuid.UUID `json:"source_account_id,omitempty"`
	DestinationAccountID uuid.UUID  `json:"destination_account_id"`
	Amount               Money      `json:"amount"`
	Currency             string     `json:"currency"`
	OccurredAt           time.Time  `json:"occurred_at"`
}

// NewLedgerEvent builds the event for a committed entry.
func NewLedgerEvent(entry *LedgerEntry, currency string) *LedgerEvent {
	return &LedgerEvent{
		EventID:              uuid.New(),
		EntryID:              entry.ID,
		Kind:                 entry.Kind,
		SourceAccountID:      entry.SourceAccountID,
		DestinationAccountID: entry.DestinationAccountID,
		Amount:               entry.Amount,
		Currency:             currency,
		OccurredAt:           entry.CreatedAt,
	}
}
