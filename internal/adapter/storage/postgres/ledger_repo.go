package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"personal-ledger/internal/core/domain"
	"personal-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, source_account_id, destination_account_id, amount, kind, description, gateway_reference, created_at`

// LedgerRepo implements ports.LedgerRepository. Entries are never updated or deleted.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Append inserts an entry within a database transaction and returns its ID.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) (uuid.UUID, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		e.ID, e.SourceAccountID, e.DestinationAccountID, e.Amount,
		e.Kind, e.Description, e.GatewayReference, e.CreatedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert ledger entry: %w", classifyError(err))
	}
	return e.ID, nil
}

// GetByID fetches an entry by UUID.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = $1`

	return r.scanEntry(r.pool.QueryRow(ctx, query, id))
}

// GetByGatewayReference fetches the recharge entry recorded for a gateway authorization.
func (r *LedgerRepo) GetByGatewayReference(ctx context.Context, reference string) (*domain.LedgerEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE gateway_reference = $1`

	return r.scanEntry(r.pool.QueryRow(ctx, query, reference))
}

// ListForAccount fetches entries where the account is source or destination, newest first.
func (r *LedgerRepo) ListForAccount(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("(source_account_id = $%d OR destination_account_id = $%d)", argIdx, argIdx))
	args = append(args, params.AccountID)
	argIdx++

	if params.Kind != nil {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", argIdx))
		args = append(args, *params.Kind)
		argIdx++
	}
	if params.From != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= to_timestamp($%d)", argIdx))
		args = append(args, *params.From)
		argIdx++
	}
	if params.To != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= to_timestamp($%d)", argIdx))
		args = append(args, *params.To)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_entries %s", where)
	var total int64
	err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT `+entryColumns+`
		FROM ledger_entries %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		err := rows.Scan(
			&e.ID, &e.SourceAccountID, &e.DestinationAccountID, &e.Amount,
			&e.Kind, &e.Description, &e.GatewayReference, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, total, nil
}

// GetStats aggregates sent, received and recharged totals for an account.
func (r *LedgerRepo) GetStats(ctx context.Context, accountID uuid.UUID, periodStart *int64) (*ports.LedgerStats, error) {
	args := []any{accountID}
	condition := "(source_account_id = $1 OR destination_account_id = $1)"
	if periodStart != nil {
		condition += " AND created_at >= to_timestamp($2)"
		args = append(args, *periodStart)
	}

	query := fmt.Sprintf(`SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE kind = 'transfer' AND source_account_id = $1) AS transfers_out,
		COUNT(*) FILTER (WHERE kind = 'transfer' AND destination_account_id = $1) AS transfers_in,
		COUNT(*) FILTER (WHERE kind = 'recharge') AS recharges,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'transfer' AND source_account_id = $1), 0)::BIGINT AS sent,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'transfer' AND destination_account_id = $1), 0)::BIGINT AS received,
		COALESCE(SUM(amount) FILTER (WHERE kind = 'recharge'), 0)::BIGINT AS recharged
		FROM ledger_entries WHERE %s`, condition)

	stats := &ports.LedgerStats{}
	err := r.pool.QueryRow(ctx, query, args...).Scan(
		&stats.TotalEntries, &stats.TransfersOut, &stats.TransfersIn, &stats.Recharges,
		&stats.TotalSent, &stats.TotalReceived, &stats.TotalRecharge,
	)
	if err != nil {
		return nil, fmt.Errorf("get ledger stats: %w", err)
	}
	return stats, nil
}

// scanEntry is a helper to scan a single row into a LedgerEntry.
func (r *LedgerRepo) scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.SourceAccountID, &e.DestinationAccountID, &e.Amount,
		&e.Kind, &e.Description, &e.GatewayReference, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return e, nil
}
