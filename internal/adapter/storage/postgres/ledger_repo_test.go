package postgres

import (
	"context"
	"testing"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEntry(src *uuid.UUID, dst uuid.UUID) *domain.LedgerEntry {
	kind := domain.EntryKindTransfer
	if src == nil {
		kind = domain.EntryKindRecharge
	}
	return &domain.LedgerEntry{
		ID:                   uuid.New(),
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Amount:               domain.Money(3000),
		Kind:                 kind,
		Description:          "Transfer to bob@example.com",
		CreatedAt:            time.Now().UTC().Truncate(time.Microsecond),
	}
}

func entryColumnNames() []string {
	return []string{"id", "source_account_id", "destination_account_id", "amount", "kind", "description", "gateway_reference", "created_at"}
}

func entryRow(rows *pgxmock.Rows, e *domain.LedgerEntry) *pgxmock.Rows {
	return rows.AddRow(
		e.ID, e.SourceAccountID, e.DestinationAccountID, e.Amount,
		e.Kind, e.Description, e.GatewayReference, e.CreatedAt,
	)
}

func TestLedgerRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	src := uuid.New()
	e := newTestEntry(&src, uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(e.ID, e.SourceAccountID, e.DestinationAccountID, e.Amount,
			e.Kind, e.Description, e.GatewayReference, e.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	id, err := repo.Append(context.Background(), tx, e)
	require.NoError(t, err)
	assert.Equal(t, e.ID, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_Append_AssignsIDAndTimestamp(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := &domain.LedgerEntry{
		DestinationAccountID: uuid.New(),
		Amount:               2000,
		Kind:                 domain.EntryKindRecharge,
		GatewayReference:     strPtr("pay_1700000000_ab12"),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(pgxmock.AnyArg(), e.SourceAccountID, e.DestinationAccountID, e.Amount,
			e.Kind, e.Description, e.GatewayReference, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	id, err := repo.Append(context.Background(), tx, e)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.Equal(t, id, e.ID)
	assert.False(t, e.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByGatewayReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	e := newTestEntry(nil, uuid.New())
	e.GatewayReference = strPtr("pay_1700000000_ab12")

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE gateway_reference").
		WithArgs("pay_1700000000_ab12").
		WillReturnRows(entryRow(pgxmock.NewRows(entryColumnNames()), e))

	result, err := repo.GetByGatewayReference(context.Background(), "pay_1700000000_ab12")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsExternal())
	assert.Equal(t, domain.EntryKindRecharge, result.Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(entryColumnNames()))

	result, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
}

func TestLedgerRepo_ListForAccount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accountID := uuid.New()
	other := uuid.New()
	outgoing := newTestEntry(&accountID, other)
	incoming := newTestEntry(&other, accountID)
	kind := domain.EntryKindTransfer

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM ledger_entries WHERE \\(source_account_id = \\$1 OR destination_account_id = \\$1\\) AND kind = \\$2").
		WithArgs(accountID, kind).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))

	rows := pgxmock.NewRows(entryColumnNames())
	entryRow(rows, outgoing)
	entryRow(rows, incoming)
	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE .+ ORDER BY created_at DESC").
		WithArgs(accountID, kind, 20, 20).
		WillReturnRows(rows)

	entries, total, err := repo.ListForAccount(context.Background(), ports.LedgerListParams{
		AccountID: accountID,
		Kind:      &kind,
		Page:      2,
		PageSize:  20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.DirectionOutgoing, entries[0].DirectionFor(accountID))
	assert.Equal(t, domain.DirectionIncoming, entries[1].DirectionFor(accountID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepo_GetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewLedgerRepo(mock)
	accountID := uuid.New()
	since := int64(1700000000)

	mock.ExpectQuery("SELECT .+ FROM ledger_entries WHERE .+ created_at >= to_timestamp\\(\\$2\\)").
		WithArgs(accountID, since).
		WillReturnRows(pgxmock.NewRows(
			[]string{"total", "transfers_out", "transfers_in", "recharges", "sent", "received", "recharged"},
		).AddRow(int64(10), int64(4), int64(3), int64(3), domain.Money(12000), domain.Money(9000), domain.Money(60000)))

	stats, err := repo.GetStats(context.Background(), accountID, &since)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalEntries)
	assert.Equal(t, int64(4), stats.TransfersOut)
	assert.Equal(t, domain.Money(12000), stats.TotalSent)
	assert.Equal(t, domain.Money(60000), stats.TotalRecharge)
	assert.NoError(t, mock.ExpectationsWereMet())
}
