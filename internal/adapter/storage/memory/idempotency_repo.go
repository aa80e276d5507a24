package memory

import (
	"context"
	"fmt"

	"personal-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	s *Store
}

// NewIdempotencyRepo creates an idempotency repository over the store.
func NewIdempotencyRepo(s *Store) *IdempotencyRepo {
	return &IdempotencyRepo{s: s}
}

// Create stages the log; it becomes visible when tx commits.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	t, err := txFrom(tx)
	if err != nil {
		return err
	}
	if existing, _ := r.Get(ctx, log.Key); existing != nil {
		return fmt.Errorf("insert idempotency log: key %q already recorded", log.Key)
	}
	cp := *log
	t.idempotency = append(t.idempotency, cp)
	return nil
}

// Get returns the committed log for key, or nil.
func (r *IdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	log, ok := r.s.idempotency[key]
	if !ok {
		return nil, nil
	}
	return &log, nil
}
