package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CardRepo implements ports.CardRepository. Mutations assume the caller holds
// the owning account's lock in tx.
type CardRepo struct {
	s *Store
}

// NewCardRepo creates a saved-card repository over the store.
func NewCardRepo(s *Store) *CardRepo {
	return &CardRepo{s: s}
}

// Create stages a new card.
func (r *CardRepo) Create(_ context.Context, tx pgx.Tx, c *domain.SavedCard) error {
	t, err := txFrom(tx)
	if err != nil {
		return err
	}
	for _, existing := range t.accountCards(c.AccountID) {
		if existing.Token == c.Token {
			return fmt.Errorf("insert saved card: duplicate token for account %s", c.AccountID)
		}
		if c.IsDefault && existing.IsDefault {
			return fmt.Errorf("insert saved card: account %s already has a default card", c.AccountID)
		}
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	cp := *c
	t.cards[c.ID] = &cp
	return nil
}

// GetByIDForUpdate returns the card as visible in tx, or nil when it is gone
// or owned by another account. The owner's account lock serializes card writers.
func (r *CardRepo) GetByIDForUpdate(_ context.Context, tx pgx.Tx, accountID, cardID uuid.UUID) (*domain.SavedCard, error) {
	t, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	c := t.card(cardID)
	if c == nil || c.AccountID != accountID {
		return nil, nil
	}
	return c, nil
}

// GetByToken finds the account's card with the given token, or nil.
func (r *CardRepo) GetByToken(_ context.Context, tx pgx.Tx, accountID uuid.UUID, token string) (*domain.SavedCard, error) {
	t, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	for _, c := range t.accountCards(accountID) {
		if c.Token == token {
			return &c, nil
		}
	}
	return nil, nil
}

// CountByAccount returns the number of cards visible in tx.
func (r *CardRepo) CountByAccount(_ context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	t, err := txFrom(tx)
	if err != nil {
		return 0, err
	}
	return int64(len(t.accountCards(accountID))), nil
}

// ListByAccount returns committed cards, default first, then newest first.
func (r *CardRepo) ListByAccount(_ context.Context, accountID uuid.UUID) ([]domain.SavedCard, error) {
	r.s.mu.RLock()
	var cards []domain.SavedCard
	for _, c := range r.s.cards {
		if c.AccountID == accountID {
			cards = append(cards, *c)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(cards, func(i, j int) bool {
		if cards[i].IsDefault != cards[j].IsDefault {
			return cards[i].IsDefault
		}
		return cards[i].CreatedAt.After(cards[j].CreatedAt)
	})
	return cards, nil
}

// ClearDefault unsets the default flag on every card of the account.
func (r *CardRepo) ClearDefault(_ context.Context, tx pgx.Tx, accountID uuid.UUID) error {
	t, err := txFrom(tx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, c := range t.accountCards(accountID) {
		if !c.IsDefault {
			continue
		}
		c.IsDefault = false
		c.UpdatedAt = &now
		t.cards[c.ID] = &c
	}
	return nil
}

// SetDefault marks one card as default.
func (r *CardRepo) SetDefault(_ context.Context, tx pgx.Tx, cardID uuid.UUID) error {
	t, err := txFrom(tx)
	if err != nil {
		return err
	}
	c := t.card(cardID)
	if c == nil {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, cardID)
	}
	now := time.Now().UTC()
	c.IsDefault = true
	c.UpdatedAt = &now
	t.cards[cardID] = c
	return nil
}

// Delete stages removal of a card.
func (r *CardRepo) Delete(_ context.Context, tx pgx.Tx, cardID uuid.UUID) error {
	t, err := txFrom(tx)
	if err != nil {
		return err
	}
	if t.card(cardID) == nil {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, cardID)
	}
	t.cards[cardID] = nil
	return nil
}

// OldestRemaining returns the account's earliest card visible in tx, or nil.
func (r *CardRepo) OldestRemaining(_ context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.SavedCard, error) {
	t, err := txFrom(tx)
	if err != nil {
		return nil, err
	}
	cards := t.accountCards(accountID)
	if len(cards) == 0 {
		return nil, nil
	}
	sort.Slice(cards, func(i, j int) bool {
		if !cards[i].CreatedAt.Equal(cards[j].CreatedAt) {
			return cards[i].CreatedAt.Before(cards[j].CreatedAt)
		}
		return bytes.Compare(cards[i].ID[:], cards[j].ID[:]) < 0
	})
	return &cards[0], nil
}
