package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyLog is the durable result of a completed keyed recharge.
type IdempotencyLog struct {
	Key          string    `json:"key"`
	EntryID      uuid.UUID `json:"entry_id"`
	ResponseJSON []byte    `json:"response_json"`
	CreatedAt    time.Time `json:"created_at"`
}

// BuildRechargeIdempotencyKey scopes a client-supplied Idempotency-Key to one account.
func BuildRechargeIdempotencyKey(accountID uuid.UUID, clientKey string) string {
	return accountID.String() + ":recharge:" + clientKey
}
