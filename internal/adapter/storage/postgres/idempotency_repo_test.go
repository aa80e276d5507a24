package postgres

import (
	"context"
	"testing"
	"time"

	"personal-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	log := &domain.IdempotencyLog{
		Key:          "550e8400-e29b-41d4-a716-446655440000:recharge:k1",
		EntryID:      uuid.New(),
		ResponseJSON: []byte(`{"amount":"20.00"}`),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO idempotency_logs").
		WithArgs(log.Key, log.EntryID, log.ResponseJSON, log.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, log))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)
	entryID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	mock.ExpectQuery("SELECT .+ FROM idempotency_logs WHERE key").
		WithArgs("acct:recharge:k1").
		WillReturnRows(pgxmock.NewRows([]string{"key", "entry_id", "response_json", "created_at"}).
			AddRow("acct:recharge:k1", entryID, []byte(`{"amount":"20.00"}`), now))

	result, err := repo.Get(context.Background(), "acct:recharge:k1")
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, entryID, result.EntryID)
	assert.JSONEq(t, `{"amount":"20.00"}`, string(result.ResponseJSON))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotencyRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewIdempotencyRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM idempotency_logs WHERE key").
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{"key", "entry_id", "response_json", "created_at"}))

	result, err := repo.Get(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, result)
}
