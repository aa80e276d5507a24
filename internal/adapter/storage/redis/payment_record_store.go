package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"personal-ledger/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// PaymentRecordStore implements ports.PaymentRecordStore. Records expire after their TTL.
type PaymentRecordStore struct {
	client *goredis.Client
	prefix string
}

// NewPaymentRecordStore creates a Redis-backed payment record store.
func NewPaymentRecordStore(client *goredis.Client) *PaymentRecordStore {
	return &PaymentRecordStore{
		client: client,
		prefix: "payment:",
	}
}

// Save writes the record under its reference.
func (s *PaymentRecordStore) Save(ctx context.Context, record *domain.PaymentRecord, ttl time.Duration) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal payment record: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+record.Reference, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis payment record set: %w", err)
	}
	return nil
}

// Get returns the record for reference, or domain.ErrPaymentNotFound once expired.
func (s *PaymentRecordStore) Get(ctx context.Context, reference string) (*domain.PaymentRecord, error) {
	data, err := s.client.Get(ctx, s.prefix+reference).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, domain.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("redis payment record get: %w", err)
	}

	var record domain.PaymentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("unmarshal payment record: %w", err)
	}
	return &record, nil
}
