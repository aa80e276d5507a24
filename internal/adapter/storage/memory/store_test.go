package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *Store, email string, balance domain.Money) *domain.Account {
	t.Helper()
	a := &domain.Account{
		ID:        uuid.New(),
		Email:     email,
		Balance:   balance,
		Status:    domain.AccountStatusActive,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, NewAccountRepo(s).Create(context.Background(), a))
	return a
}

func TestAccountRepo_CreateAndLookup(t *testing.T) {
	s := NewStore(time.Second)
	repo := NewAccountRepo(s)
	a := seedAccount(t, s, "Alice@Example.com", 10000)

	got, err := repo.GetByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, a.ID, got.ID)

	missing, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.Create(context.Background(), &domain.Account{ID: uuid.New(), Email: "ALICE@example.com"})
	assert.True(t, errors.Is(err, domain.ErrEmailTaken))
}

func TestTx_CommitPublishesRollbackDiscards(t *testing.T) {
	s := NewStore(time.Second)
	repo := NewAccountRepo(s)
	ledger := NewLedgerRepo(s)
	a := seedAccount(t, s, "alice@example.com", 10000)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	locked, err := repo.GetByIDForUpdate(ctx, tx, a.ID)
	require.NoError(t, err)
	_, err = repo.ApplyDelta(ctx, tx, a.ID, 2000, locked.Version)
	require.NoError(t, err)
	_, err = ledger.Append(ctx, tx, &domain.LedgerEntry{DestinationAccountID: a.ID, Amount: 2000, Kind: domain.EntryKindRecharge})
	require.NoError(t, err)

	// Staged changes are invisible outside the transaction.
	before, _ := repo.GetByID(ctx, a.ID)
	assert.Equal(t, domain.Money(10000), before.Balance)

	require.NoError(t, tx.Rollback(ctx))
	after, _ := repo.GetByID(ctx, a.ID)
	assert.Equal(t, domain.Money(10000), after.Balance)
	_, total, _ := ledger.ListForAccount(ctx, ports.LedgerListParams{AccountID: a.ID, Page: 1, PageSize: 10})
	assert.Zero(t, total)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	locked, err = repo.GetByIDForUpdate(ctx, tx, a.ID)
	require.NoError(t, err)
	updated, err := repo.ApplyDelta(ctx, tx, a.ID, 2000, locked.Version)
	require.NoError(t, err)
	assert.Equal(t, locked.Version+1, updated.Version)
	_, err = ledger.Append(ctx, tx, &domain.LedgerEntry{DestinationAccountID: a.ID, Amount: 2000, Kind: domain.EntryKindRecharge})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))
	assert.NoError(t, tx.Rollback(ctx))
	assert.ErrorIs(t, tx.Commit(ctx), pgx.ErrTxClosed)

	after, _ = repo.GetByID(ctx, a.ID)
	assert.Equal(t, domain.Money(12000), after.Balance)
	_, total, _ = ledger.ListForAccount(ctx, ports.LedgerListParams{AccountID: a.ID, Page: 1, PageSize: 10})
	assert.Equal(t, int64(1), total)
}

func TestAccountRepo_ApplyDelta_Classification(t *testing.T) {
	s := NewStore(time.Second)
	repo := NewAccountRepo(s)
	a := seedAccount(t, s, "alice@example.com", 10000)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx) //nolint:errcheck

	_, err = repo.ApplyDelta(ctx, tx, a.ID, -15000, a.Version)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)

	_, err = repo.ApplyDelta(ctx, tx, a.ID, -100, a.Version+7)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = repo.ApplyDelta(ctx, tx, uuid.New(), 100, 0)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	updated, err := repo.ApplyDelta(ctx, tx, a.ID, -10000, a.Version)
	require.NoError(t, err)
	assert.Equal(t, domain.Money(0), updated.Balance)
}

func TestAccountRepo_LockTimeout(t *testing.T) {
	s := NewStore(50 * time.Millisecond)
	repo := NewAccountRepo(s)
	a := seedAccount(t, s, "alice@example.com", 10000)
	ctx := context.Background()

	holder, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, holder, a.ID)
	require.NoError(t, err)

	waiter, err := s.Begin(ctx)
	require.NoError(t, err)
	start := time.Now()
	_, err = repo.GetByIDForUpdate(ctx, waiter, a.ID)
	assert.ErrorIs(t, err, domain.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.NoError(t, waiter.Rollback(ctx))

	require.NoError(t, holder.Rollback(ctx))

	again, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, again, a.ID)
	assert.NoError(t, err)
	require.NoError(t, again.Rollback(ctx))
}

func TestAccountRepo_LockHonoursContext(t *testing.T) {
	s := NewStore(0)
	repo := NewAccountRepo(s)
	a := seedAccount(t, s, "alice@example.com", 10000)

	holder, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(context.Background(), holder, a.ID)
	require.NoError(t, err)
	defer holder.Rollback(context.Background()) //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	waiter, err := s.Begin(context.Background())
	require.NoError(t, err)
	_, err = repo.GetByIDForUpdate(ctx, waiter, a.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAccountRepo_SerializedIncrements(t *testing.T) {
	s := NewStore(5 * time.Second)
	repo := NewAccountRepo(s)
	a := seedAccount(t, s, "alice@example.com", 0)
	ctx := context.Background()

	const workers = 50
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tx, err := s.Begin(ctx)
			if !assert.NoError(t, err) {
				return
			}
			defer tx.Rollback(ctx) //nolint:errcheck
			locked, err := repo.GetByIDForUpdate(ctx, tx, a.ID)
			if !assert.NoError(t, err) {
				return
			}
			_, err = repo.ApplyDelta(ctx, tx, a.ID, 100, locked.Version)
			if !assert.NoError(t, err) {
				return
			}
			assert.NoError(t, tx.Commit(ctx))
		}()
	}
	wg.Wait()

	final, _ := repo.GetByID(ctx, a.ID)
	assert.Equal(t, domain.Money(workers*100), final.Balance)
	assert.Equal(t, int64(workers), final.Version)
}

func TestForeignTxRejected(t *testing.T) {
	s := NewStore(time.Second)
	_, err := NewAccountRepo(s).GetByIDForUpdate(context.Background(), nil, uuid.New())
	assert.ErrorIs(t, err, ErrForeignTx)
}

func TestLedgerRepo_ListAndStats(t *testing.T) {
	s := NewStore(time.Second)
	ledger := NewLedgerRepo(s)
	alice := seedAccount(t, s, "alice@example.com", 10000)
	bob := seedAccount(t, s, "bob@example.com", 5000)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	ref := "pay_1700000000_ab12"
	entries := []*domain.LedgerEntry{
		{SourceAccountID: &alice.ID, DestinationAccountID: bob.ID, Amount: 3000, Kind: domain.EntryKindTransfer, CreatedAt: base},
		{SourceAccountID: &bob.ID, DestinationAccountID: alice.ID, Amount: 1000, Kind: domain.EntryKindTransfer, CreatedAt: base.Add(time.Minute)},
		{DestinationAccountID: alice.ID, Amount: 2000, Kind: domain.EntryKindRecharge, GatewayReference: &ref, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		_, err := ledger.Append(ctx, tx, e)
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit(ctx))

	list, total, err := ledger.ListForAccount(ctx, ports.LedgerListParams{AccountID: alice.ID, Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, list, 2)
	assert.Equal(t, domain.EntryKindRecharge, list[0].Kind)
	assert.Equal(t, domain.DirectionIncoming, list[1].DirectionFor(alice.ID))

	kind := domain.EntryKindTransfer
	list, total, err = ledger.ListForAccount(ctx, ports.LedgerListParams{AccountID: bob.ID, Kind: &kind, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	stats, err := ledger.GetStats(ctx, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalEntries)
	assert.Equal(t, domain.Money(3000), stats.TotalSent)
	assert.Equal(t, domain.Money(1000), stats.TotalReceived)
	assert.Equal(t, domain.Money(2000), stats.TotalRecharge)

	found, err := ledger.GetByGatewayReference(ctx, ref)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.IsExternal())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	_, err = ledger.Append(ctx, tx, &domain.LedgerEntry{DestinationAccountID: alice.ID, Amount: 1, Kind: domain.EntryKindRecharge, GatewayReference: &ref})
	assert.ErrorIs(t, err, ErrDuplicateReference)
	require.NoError(t, tx.Rollback(ctx))
}

func TestCardRepo_DefaultPromotion(t *testing.T) {
	s := NewStore(time.Second)
	cards := NewCardRepo(s)
	alice := seedAccount(t, s, "alice@example.com", 0)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	first := &domain.SavedCard{AccountID: alice.ID, Token: "tok_first_card", Last4: "1111", Brand: domain.CardBrandVisa, IsDefault: true, CreatedAt: base}
	second := &domain.SavedCard{AccountID: alice.ID, Token: "tok_second_card", Last4: "2222", Brand: domain.CardBrandMastercard, CreatedAt: base.Add(time.Minute)}
	third := &domain.SavedCard{AccountID: alice.ID, Token: "tok_third_card", Last4: "3333", Brand: domain.CardBrandAmex, CreatedAt: base.Add(2 * time.Minute)}

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	for _, c := range []*domain.SavedCard{first, second, third} {
		require.NoError(t, cards.Create(ctx, tx, c))
	}
	n, err := cards.CountByAccount(ctx, tx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Error(t, cards.Create(ctx, tx, &domain.SavedCard{AccountID: alice.ID, Token: "tok_first_card"}))
	require.NoError(t, tx.Commit(ctx))

	// Delete the default; the oldest remaining card takes over.
	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, cards.Delete(ctx, tx, first.ID))
	oldest, err := cards.OldestRemaining(ctx, tx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, oldest)
	assert.Equal(t, second.ID, oldest.ID)
	require.NoError(t, cards.SetDefault(ctx, tx, oldest.ID))
	require.NoError(t, tx.Commit(ctx))

	list, err := cards.ListByAccount(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.True(t, list[0].IsDefault)
	assert.Equal(t, third.ID, list[1].ID)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	owned, err := cards.GetByIDForUpdate(ctx, tx, alice.ID, third.ID)
	require.NoError(t, err)
	assert.NotNil(t, owned)
	notOwned, err := cards.GetByIDForUpdate(ctx, tx, uuid.New(), third.ID)
	require.NoError(t, err)
	assert.Nil(t, notOwned)

	// A card deleted twice reports the domain sentinel.
	assert.ErrorIs(t, cards.Delete(ctx, tx, first.ID), domain.ErrCardNotFound)
	assert.ErrorIs(t, cards.SetDefault(ctx, tx, first.ID), domain.ErrCardNotFound)
	require.NoError(t, tx.Rollback(ctx))
}
