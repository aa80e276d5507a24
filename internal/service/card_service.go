package service

import (
	"context"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"
	"personal-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// cardService implements ports.CardService.
// Mutations hold the owner's account lock so they serialize with recharges saving cards.
type cardService struct {
	cardRepo    ports.CardRepository
	accountRepo ports.AccountRepository
	transactor  ports.DBTransactor
	log         zerolog.Logger
}

// NewCardService creates a new card service.
func NewCardService(
	cardRepo ports.CardRepository,
	accountRepo ports.AccountRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) ports.CardService {
	return &cardService{
		cardRepo:    cardRepo,
		accountRepo: accountRepo,
		transactor:  transactor,
		log:         log,
	}
}

// List returns the account's cards, default first, then newest.
func (s *cardService) List(ctx context.Context, accountID uuid.UUID) ([]domain.SavedCard, error) {
	cards, err := s.cardRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if cards == nil {
		cards = []domain.SavedCard{}
	}
	return cards, nil
}

// SetDefault makes cardID the only default card of the account.
func (s *cardService) SetDefault(ctx context.Context, accountID, cardID uuid.UUID) (*domain.SavedCard, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	card, err := s.lockedCard(ctx, dbTx, accountID, cardID)
	if err != nil {
		return nil, err
	}
	if card.IsDefault {
		return card, nil
	}

	if err := s.cardRepo.ClearDefault(ctx, dbTx, accountID); err != nil {
		return nil, storeError("clear default card", err)
	}
	if err := s.cardRepo.SetDefault(ctx, dbTx, card.ID); err != nil {
		return nil, storeError("set default card", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	card.IsDefault = true
	return card, nil
}

// Delete removes a card. When it was the default, the oldest remaining card is promoted.
func (s *cardService) Delete(ctx context.Context, accountID, cardID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	card, err := s.lockedCard(ctx, dbTx, accountID, cardID)
	if err != nil {
		return err
	}
	if err := s.cardRepo.Delete(ctx, dbTx, card.ID); err != nil {
		return storeError("delete card", err)
	}

	var promoted *domain.SavedCard
	if card.IsDefault {
		promoted, err = s.cardRepo.OldestRemaining(ctx, dbTx, accountID)
		if err != nil {
			return storeError("find oldest card", err)
		}
		if promoted != nil {
			if err := s.cardRepo.SetDefault(ctx, dbTx, promoted.ID); err != nil {
				return storeError("promote card", err)
			}
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return storeError("commit tx", err)
	}

	evt := s.log.Info().Str("account_id", accountID.String()).Str("card_id", cardID.String())
	if promoted != nil {
		evt = evt.Str("promoted_card_id", promoted.ID.String())
	}
	evt.Msg("saved card deleted")
	return nil
}

// lockedCard takes the owner's account lock, then reads the card as seen under it.
func (s *cardService) lockedCard(ctx context.Context, dbTx pgx.Tx, accountID, cardID uuid.UUID) (*domain.SavedCard, error) {
	if _, err := s.accountRepo.GetByIDForUpdate(ctx, dbTx, accountID); err != nil {
		return nil, storeError("lock account", err)
	}
	card, err := s.cardRepo.GetByIDForUpdate(ctx, dbTx, accountID, cardID)
	if err != nil {
		return nil, storeError("get card", err)
	}
	if card == nil {
		return nil, apperror.ErrNotFound("card")
	}
	return card, nil
}
