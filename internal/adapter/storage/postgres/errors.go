package postgres

import (
	"errors"
	"fmt"

	"personal-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the ledger reacts to.
const (
	codeLockNotAvailable     = "55P03"
	codeDeadlockDetected     = "40P01"
	codeSerializationFailure = "40001"
	codeCheckViolation       = "23514"
	codeUniqueViolation      = "23505"
)

const (
	constraintBalanceNonNegative = "accounts_balance_non_negative"
	constraintEmailUnique        = "accounts_email_key"
)

// classifyError maps PostgreSQL errors onto domain sentinels, keeping the original in the chain.
func classifyError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeLockNotAvailable, codeDeadlockDetected, codeSerializationFailure:
		return fmt.Errorf("%w: %w", domain.ErrLockTimeout, err)
	case codeCheckViolation:
		if pgErr.ConstraintName == constraintBalanceNonNegative {
			return fmt.Errorf("%w: %w", domain.ErrInsufficientFunds, err)
		}
	case codeUniqueViolation:
		if pgErr.ConstraintName == constraintEmailUnique {
			return fmt.Errorf("%w: %w", domain.ErrEmailTaken, err)
		}
	}
	return err
}
