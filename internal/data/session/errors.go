package session

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// ErrNoRows reports that FetchRow matched nothing.
var ErrNoRows = errors.New("session: no rows in result")

// IsNotFound reports whether err is a zero-row result, from either the raw
// query path or a gorm model query.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoRows) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsUniqueViolation reports whether err is a uniqueness or exclusion
// conflict. This is the only store error class the minter is allowed to
// absorb; everything else is opaque and fatal. Postgres reports class-23
// integrity codes through pgconn; the message fallback covers the sqlite
// dialect used in tests.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505": // unique_violation
			return true
		case "23P01": // exclusion_violation
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "duplicate key")
}

// IsInsufficientPrivilege reports whether err is a permission failure.
// The metrics collector uses this to degrade gracefully when the reporting
// role cannot read catalog statistics.
func IsInsufficientPrivilege(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.TrimSpace(pgErr.Code) == "42501"
	}
	return false
}

// IsRetryableTxError reports transient transaction failures
// (serialization, deadlock, lock timeout) that a caller may re-run whole.
func IsRetryableTxError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}
