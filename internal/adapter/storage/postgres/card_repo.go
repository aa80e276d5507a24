package postgres

import (
	"context"
	"errors"
	"fmt"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cardColumns = `id, account_id, token, last4, brand, is_default, created_at, updated_at`

// CardRepo implements ports.CardRepository.
type CardRepo struct {
	pool Pool
}

// NewCardRepo creates a new CardRepo.
func NewCardRepo(pool Pool) *CardRepo {
	return &CardRepo{pool: pool}
}

// Create inserts a saved card within a database transaction.
func (r *CardRepo) Create(ctx context.Context, tx pgx.Tx, c *domain.SavedCard) error {
	query := `INSERT INTO saved_cards (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		c.ID, c.AccountID, c.Token, c.Last4, c.Brand, c.IsDefault, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert saved card: %w", err)
	}
	return nil
}

// GetByIDForUpdate fetches a card owned by accountID and locks its row.
// This MUST be called within a transaction.
func (r *CardRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, accountID, cardID uuid.UUID) (*domain.SavedCard, error) {
	query := `SELECT ` + cardColumns + ` FROM saved_cards WHERE id = $1 AND account_id = $2 FOR UPDATE`

	c, err := scanCard(tx.QueryRow(ctx, query, cardID, accountID))
	if err != nil {
		return nil, classifyError(err)
	}
	return c, nil
}

// GetByToken finds an existing card with the same token for the account.
func (r *CardRepo) GetByToken(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, token string) (*domain.SavedCard, error) {
	query := `SELECT ` + cardColumns + ` FROM saved_cards WHERE account_id = $1 AND token = $2`

	return scanCard(tx.QueryRow(ctx, query, accountID, token))
}

// CountByAccount returns the number of saved cards.
func (r *CardRepo) CountByAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	var n int64
	err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM saved_cards WHERE account_id = $1`, accountID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count saved cards: %w", err)
	}
	return n, nil
}

// ListByAccount returns cards with the default first, then newest first.
func (r *CardRepo) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]domain.SavedCard, error) {
	query := `SELECT ` + cardColumns + ` FROM saved_cards WHERE account_id = $1
		ORDER BY is_default DESC, created_at DESC`

	rows, err := r.pool.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("list saved cards: %w", err)
	}
	defer rows.Close()

	var cards []domain.SavedCard
	for rows.Next() {
		c := domain.SavedCard{}
		if err := rows.Scan(&c.ID, &c.AccountID, &c.Token, &c.Last4, &c.Brand, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan saved card row: %w", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate saved card rows: %w", err)
	}
	return cards, nil
}

// ClearDefault unsets the default flag on every card of the account.
func (r *CardRepo) ClearDefault(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) error {
	query := `UPDATE saved_cards SET is_default = FALSE, updated_at = NOW() WHERE account_id = $1 AND is_default`

	if _, err := tx.Exec(ctx, query, accountID); err != nil {
		return fmt.Errorf("clear default card: %w", err)
	}
	return nil
}

// SetDefault marks one card as default. Callers clear the previous default first.
func (r *CardRepo) SetDefault(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) error {
	query := `UPDATE saved_cards SET is_default = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, query, cardID)
	if err != nil {
		return fmt.Errorf("set default card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, cardID)
	}
	return nil
}

// Delete removes a saved card.
func (r *CardRepo) Delete(ctx context.Context, tx pgx.Tx, cardID uuid.UUID) error {
	tag, err := tx.Exec(ctx, `DELETE FROM saved_cards WHERE id = $1`, cardID)
	if err != nil {
		return fmt.Errorf("delete saved card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", domain.ErrCardNotFound, cardID)
	}
	return nil
}

// OldestRemaining returns the earliest saved card of the account.
func (r *CardRepo) OldestRemaining(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (*domain.SavedCard, error) {
	query := `SELECT ` + cardColumns + ` FROM saved_cards WHERE account_id = $1
		ORDER BY created_at ASC, id ASC LIMIT 1`

	return scanCard(tx.QueryRow(ctx, query, accountID))
}

func scanCard(row pgx.Row) (*domain.SavedCard, error) {
	c := &domain.SavedCard{}
	err := row.Scan(&c.ID, &c.AccountID, &c.Token, &c.Last4, &c.Brand, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan saved card: %w", err)
	}
	return c, nil
}
