package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"
	"personal-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	defaultBookTimeout    = 10 * time.Second
)

// LedgerDeps groups the collaborators of the transaction engine.
// IdempCache, Locker and Events may be nil.
type LedgerDeps struct {
	Accounts   ports.AccountRepository
	Ledger     ports.LedgerRepository
	Cards      ports.CardRepository
	IdempRepo  ports.IdempotencyRepository
	IdempCache ports.IdempotencyCache
	Locker     ports.RechargeLocker
	Gateway    ports.PaymentGateway
	Events     ports.EventPublisher
	Transactor ports.DBTransactor
}

// LedgerOptions tunes the engine.
type LedgerOptions struct {
	Currency       string
	IdempotencyTTL time.Duration
	// BookTimeout bounds the work after a gateway approval, which no longer
	// follows the request context.
	BookTimeout time.Duration
}

// LedgerServiceImpl implements ports.LedgerService. It is the only writer of balances.
type LedgerServiceImpl struct {
	accounts   ports.AccountRepository
	ledger     ports.LedgerRepository
	cards      ports.CardRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	locker     ports.RechargeLocker
	gateway    ports.PaymentGateway
	events     ports.EventPublisher
	transactor ports.DBTransactor
	opts       LedgerOptions
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(deps LedgerDeps, opts LedgerOptions, log zerolog.Logger) *LedgerServiceImpl {
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = defaultIdempotencyTTL
	}
	if opts.BookTimeout <= 0 {
		opts.BookTimeout = defaultBookTimeout
	}
	return &LedgerServiceImpl{
		accounts:   deps.Accounts,
		ledger:     deps.Ledger,
		cards:      deps.Cards,
		idempRepo:  deps.IdempRepo,
		idempCache: deps.IdempCache,
		locker:     deps.Locker,
		gateway:    deps.Gateway,
		events:     deps.Events,
		transactor: deps.Transactor,
		opts:       opts,
		log:        log,
	}
}

// Transfer moves funds between two accounts inside one database transaction.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.LedgerEntry, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	caller, err := s.accounts.GetByID(ctx, req.CallerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get caller: %w", err))
	}
	if caller == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if !caller.IsActive() {
		return nil, apperror.ErrAccountInactive()
	}

	recipientEmail := domain.NormalizeEmail(req.RecipientEmail)
	if recipientEmail == caller.Email {
		return nil, apperror.ErrSelfTransfer()
	}
	recipient, err := s.accounts.GetByEmail(ctx, recipientEmail)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get recipient: %w", err))
	}
	if recipient == nil {
		return nil, apperror.ErrRecipientNotFound()
	}
	if recipient.ID == caller.ID {
		return nil, apperror.ErrSelfTransfer()
	}
	if !recipient.IsActive() {
		return nil, apperror.ErrAccountInactive()
	}

	// Advisory only; the authoritative check happens under the lock.
	if !caller.CanDebit(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.lockInOrder(ctx, dbTx, caller.ID, recipient.ID)
	if err != nil {
		return nil, storeError("lock accounts", err)
	}
	src, dst := locked[caller.ID], locked[recipient.ID]
	if src == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if dst == nil {
		return nil, apperror.ErrRecipientNotFound()
	}
	if !src.CanDebit(req.Amount) {
		return nil, apperror.ErrInsufficientFunds()
	}

	if _, err := s.accounts.ApplyDelta(ctx, dbTx, src.ID, -req.Amount, src.Version); err != nil {
		return nil, storeError("debit source", err)
	}
	if _, err := s.accounts.ApplyDelta(ctx, dbTx, dst.ID, req.Amount, dst.Version); err != nil {
		return nil, storeError("credit destination", err)
	}

	description := domain.TransferDescription(recipient.Email)
	if req.Description != nil && strings.TrimSpace(*req.Description) != "" {
		description = strings.TrimSpace(*req.Description)
	}

	sourceID := src.ID
	entry := &domain.LedgerEntry{
		ID:                   uuid.New(),
		SourceAccountID:      &sourceID,
		DestinationAccountID: dst.ID,
		Amount:               req.Amount,
		Kind:                 domain.EntryKindTransfer,
		Description:          description,
		CreatedAt:            time.Now().UTC(),
	}
	if _, err := s.ledger.Append(ctx, dbTx, entry); err != nil {
		return nil, storeError("append entry", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.publish(ctx, entry)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("source_account_id", src.ID.String()).
		Str("destination_account_id", dst.ID.String()).
		Int64("amount", int64(req.Amount)).
		Msg("transfer committed")

	return entry, nil
}

// Recharge authorizes a card charge, then credits the caller.
// Once the gateway has approved, any failure is a reconciliation failure.
func (s *LedgerServiceImpl) Recharge(ctx context.Context, req ports.RechargeRequest) (*domain.LedgerEntry, error) {
	if !req.Amount.IsPositive() {
		return nil, apperror.ErrInvalidAmount()
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildRechargeIdempotencyKey(req.CallerID, req.IdempotencyKey)

		if entry := s.cachedResult(ctx, idempKey); entry != nil {
			return entry, nil
		}

		if s.locker != nil {
			release, err := s.locker.Acquire(ctx, idempKey)
			if errors.Is(err, domain.ErrRechargeInProgress) {
				return nil, apperror.ErrDuplicateTransaction()
			}
			if err != nil {
				return nil, apperror.InternalError(fmt.Errorf("acquire recharge lock: %w", err))
			}
			defer release()
		}

		entry, err := s.durableResult(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return entry, nil
		}
	}

	caller, err := s.accounts.GetByID(ctx, req.CallerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get caller: %w", err))
	}
	if caller == nil {
		return nil, apperror.ErrNotFound("account")
	}
	if !caller.IsActive() {
		return nil, apperror.ErrAccountInactive()
	}

	// Validate card details before charging.
	var card *domain.CardInfo
	if req.SaveCard && req.Card != nil {
		card, err = s.gateway.DescribeCard(req.CardToken, req.Card.Number)
		if err != nil {
			return nil, apperror.Validation(err.Error())
		}
	}

	auth, err := s.gateway.Authorize(ctx, req.Amount, req.CardToken)
	if err != nil {
		var declined *domain.PaymentDeclinedError
		if errors.As(err, &declined) {
			s.log.Info().
				Str("account_id", req.CallerID.String()).
				Str("reason", string(declined.Reason)).
				Str("gateway_reference", declined.Reference).
				Msg("recharge declined")
			return nil, apperror.ErrPaymentDeclined(declined.Message)
		}
		return nil, apperror.ErrGatewayUnavailable(err)
	}

	// The card is charged; a client disconnect must not abort the booking.
	bookCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.BookTimeout)
	defer cancel()

	entry, respJSON, err := s.bookRecharge(bookCtx, req, auth, card, idempKey)
	if err != nil {
		s.log.Error().
			Err(err).
			Bool("reconciliation", true).
			Str("gateway_reference", auth.Reference).
			Str("account_id", req.CallerID.String()).
			Int64("amount", int64(req.Amount)).
			Msg("recharge authorized by gateway but not booked")
		return nil, apperror.ErrReconciliation(err)
	}

	if idempKey != "" && s.idempCache != nil {
		if err := s.idempCache.Set(bookCtx, idempKey, respJSON, s.opts.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache recharge result in redis")
		}
	}
	s.publish(bookCtx, entry)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("account_id", req.CallerID.String()).
		Str("gateway_reference", auth.Reference).
		Int64("amount", int64(req.Amount)).
		Msg("recharge committed")

	return entry, nil
}

// bookRecharge runs the post-authorization transaction. Errors are returned raw.
func (s *LedgerServiceImpl) bookRecharge(
	ctx context.Context,
	req ports.RechargeRequest,
	auth *domain.Authorization,
	card *domain.CardInfo,
	idempKey string,
) (*domain.LedgerEntry, []byte, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	account, err := s.accounts.GetByIDForUpdate(ctx, dbTx, req.CallerID)
	if err != nil {
		return nil, nil, fmt.Errorf("lock account: %w", err)
	}
	if account == nil {
		return nil, nil, fmt.Errorf("lock account: %w", domain.ErrAccountNotFound)
	}

	if card != nil {
		if err := s.saveCard(ctx, dbTx, account.ID, card); err != nil {
			return nil, nil, err
		}
	}

	if _, err := s.accounts.ApplyDelta(ctx, dbTx, account.ID, req.Amount, account.Version); err != nil {
		return nil, nil, fmt.Errorf("credit account: %w", err)
	}

	reference := auth.Reference
	entry := &domain.LedgerEntry{
		ID:                   uuid.New(),
		DestinationAccountID: account.ID,
		Amount:               req.Amount,
		Kind:                 domain.EntryKindRecharge,
		Description:          domain.RechargeDescription(reference),
		GatewayReference:     &reference,
		CreatedAt:            time.Now().UTC(),
	}
	if _, err := s.ledger.Append(ctx, dbTx, entry); err != nil {
		return nil, nil, fmt.Errorf("append entry: %w", err)
	}

	respJSON, err := json.Marshal(entry)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal entry: %w", err)
	}
	if idempKey != "" {
		log := &domain.IdempotencyLog{
			Key:          idempKey,
			EntryID:      entry.ID,
			ResponseJSON: respJSON,
			CreatedAt:    entry.CreatedAt,
		}
		if err := s.idempRepo.Create(ctx, dbTx, log); err != nil {
			return nil, nil, fmt.Errorf("save idempotency log: %w", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit tx: %w", err)
	}
	return entry, respJSON, nil
}

// saveCard stores the card unless the token is already on file. The first card becomes default.
func (s *LedgerServiceImpl) saveCard(ctx context.Context, dbTx pgx.Tx, accountID uuid.UUID, info *domain.CardInfo) error {
	existing, err := s.cards.GetByToken(ctx, dbTx, accountID, info.Token)
	if err != nil {
		return fmt.Errorf("find saved card: %w", err)
	}
	if existing != nil {
		return nil
	}

	count, err := s.cards.CountByAccount(ctx, dbTx, accountID)
	if err != nil {
		return fmt.Errorf("count saved cards: %w", err)
	}

	card := &domain.SavedCard{
		ID:        uuid.New(),
		AccountID: accountID,
		Token:     info.Token,
		Last4:     info.Last4,
		Brand:     info.Brand,
		IsDefault: count == 0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.cards.Create(ctx, dbTx, card); err != nil {
		return fmt.Errorf("save card: %w", err)
	}
	return nil
}

// lockInOrder locks every account in ascending id byte order so concurrent
// transfers between the same pair cannot deadlock.
func (s *LedgerServiceImpl) lockInOrder(ctx context.Context, dbTx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Account, error) {
	ordered := append([]uuid.UUID(nil), ids...)
	sort.Slice(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i][:], ordered[j][:]) < 0
	})

	locked := make(map[uuid.UUID]*domain.Account, len(ordered))
	for _, id := range ordered {
		a, err := s.accounts.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = a
	}
	return locked, nil
}

func (s *LedgerServiceImpl) cachedResult(ctx context.Context, key string) *domain.LedgerEntry {
	if s.idempCache == nil {
		return nil
	}
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
		return nil
	}
	if cached == nil {
		return nil
	}
	entry, err := decodeEntry(cached)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cached recharge result")
		return nil
	}
	return entry
}

func (s *LedgerServiceImpl) durableResult(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	log, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if log == nil {
		return nil, nil
	}
	entry, err := decodeEntry(log.ResponseJSON)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if s.idempCache != nil {
		if err := s.idempCache.Set(ctx, key, log.ResponseJSON, s.opts.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("failed to re-cache recharge result")
		}
	}
	return entry, nil
}

func decodeEntry(data []byte) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal cached entry: %w", err)
	}
	return &entry, nil
}

// publish emits the committed entry. Failures are logged and never surface to the caller.
func (s *LedgerServiceImpl) publish(ctx context.Context, entry *domain.LedgerEntry) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, domain.NewLedgerEvent(entry, s.opts.Currency)); err != nil {
		s.log.Warn().Err(err).Str("entry_id", entry.ID.String()).Msg("failed to publish ledger event")
	}
}

// storeError maps repository failures to API errors.
func storeError(op string, err error) *apperror.AppError {
	switch {
	case errors.Is(err, domain.ErrLockTimeout):
		return apperror.ErrLockTimeout(err)
	case errors.Is(err, domain.ErrInsufficientFunds):
		return apperror.ErrInsufficientFunds()
	case errors.Is(err, domain.ErrVersionConflict):
		return apperror.ErrConcurrentUpdate(err)
	case errors.Is(err, domain.ErrAccountNotFound):
		return apperror.ErrNotFound("account")
	case errors.Is(err, domain.ErrCardNotFound):
		return apperror.ErrNotFound("card")
	default:
		return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
	}
}
