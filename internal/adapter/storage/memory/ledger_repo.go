package memory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateReference mirrors the unique index on gateway_reference.
var ErrDuplicateReference = errors.New("memory: gateway reference already recorded")

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	s *Store
}

// NewLedgerRepo creates a ledger repository over the store.
func NewLedgerRepo(s *Store) *LedgerRepo {
	return &LedgerRepo{s: s}
}

// Append stages an entry; it becomes visible when tx commits.
func (r *LedgerRepo) Append(_ context.Context, tx pgx.Tx, e *domain.LedgerEntry) (uuid.UUID, error) {
	t, err := txFrom(tx)
	if err != nil {
		return uuid.Nil, err
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.GatewayReference != nil {
		if existing, _ := r.GetByGatewayReference(context.Background(), *e.GatewayReference); existing != nil {
			return uuid.Nil, fmt.Errorf("insert ledger entry: %w", ErrDuplicateReference)
		}
	}

	t.entries = append(t.entries, *e)
	return e.ID, nil
}

// GetByID returns a committed entry or nil.
func (r *LedgerRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	return r.find(func(e *domain.LedgerEntry) bool { return e.ID == id }), nil
}

// GetByGatewayReference returns the recharge recorded for a gateway authorization.
func (r *LedgerRepo) GetByGatewayReference(_ context.Context, reference string) (*domain.LedgerEntry, error) {
	return r.find(func(e *domain.LedgerEntry) bool {
		return e.GatewayReference != nil && *e.GatewayReference == reference
	}), nil
}

func (r *LedgerRepo) find(match func(*domain.LedgerEntry) bool) *domain.LedgerEntry {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for i := range r.s.entries {
		if match(&r.s.entries[i]) {
			e := r.s.entries[i]
			return &e
		}
	}
	return nil
}

// ListForAccount returns entries touching the account, newest first.
func (r *LedgerRepo) ListForAccount(_ context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	matched := r.forAccount(params.AccountID, func(e *domain.LedgerEntry) bool {
		if params.Kind != nil && e.Kind != *params.Kind {
			return false
		}
		if params.From != nil && e.CreatedAt.Before(time.Unix(*params.From, 0)) {
			return false
		}
		if params.To != nil && e.CreatedAt.After(time.Unix(*params.To, 0)) {
			return false
		}
		return true
	})

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return bytes.Compare(matched[i].ID[:], matched[j].ID[:]) > 0
	})

	total := int64(len(matched))
	start := (params.Page - 1) * params.PageSize
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := start + params.PageSize
	if params.PageSize <= 0 || end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// GetStats aggregates totals for the account since periodStart (all time when nil).
func (r *LedgerRepo) GetStats(_ context.Context, accountID uuid.UUID, periodStart *int64) (*ports.LedgerStats, error) {
	entries := r.forAccount(accountID, func(e *domain.LedgerEntry) bool {
		return periodStart == nil || !e.CreatedAt.Before(time.Unix(*periodStart, 0))
	})

	stats := &ports.LedgerStats{TotalEntries: int64(len(entries))}
	for i := range entries {
		e := &entries[i]
		switch {
		case e.Kind == domain.EntryKindRecharge:
			stats.Recharges++
			stats.TotalRecharge += e.Amount
		case e.DirectionFor(accountID) == domain.DirectionOutgoing:
			stats.TransfersOut++
			stats.TotalSent += e.Amount
		default:
			stats.TransfersIn++
			stats.TotalReceived += e.Amount
		}
	}
	return stats, nil
}

func (r *LedgerRepo) forAccount(accountID uuid.UUID, keep func(*domain.LedgerEntry) bool) []domain.LedgerEntry {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []domain.LedgerEntry
	for i := range r.s.entries {
		e := &r.s.entries[i]
		touches := e.DestinationAccountID == accountID ||
			(e.SourceAccountID != nil && *e.SourceAccountID == accountID)
		if touches && keep(e) {
			out = append(out, *e)
		}
	}
	return out
}
