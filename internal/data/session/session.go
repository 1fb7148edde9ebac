// Package session wraps a gorm database handle in the transactional contract
// the warehouse core is written against: scoped transactions, labeled
// savepoint sub-transactions, zero-or-one / zero-or-many row queries, and a
// classified error model.
package session

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

// Session is one isolated transactional context against the warehouse
// database. Transaction and Savepoint hand a derived Session to their
// callback; the derived session must not outlive the callback.
type Session interface {
	// FetchRow runs query and scans the single resulting row into dest.
	// Zero rows yields ErrNoRows.
	FetchRow(ctx context.Context, dest any, query string, args ...any) error
	// FetchAll runs query and scans all resulting rows into dest.
	FetchAll(ctx context.Context, dest any, query string, args ...any) error
	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, query string, args ...any) error
	// Transaction runs fn inside a transaction, committing on nil and
	// rolling back on error or panic. Nested calls become savepoints.
	Transaction(ctx context.Context, fn func(tx Session) error) error
	// Savepoint runs fn inside a labeled savepoint on the enclosing
	// transaction. On error only the savepoint is rolled back; the
	// enclosing transaction and the error are left intact.
	Savepoint(ctx context.Context, label string, fn func(tx Session) error) error
	// DB exposes the underlying handle for model-level queries.
	DB() *gorm.DB
}

type gormSession struct {
	db  *gorm.DB
	log *logger.Logger
}

func New(db *gorm.DB, log *logger.Logger) Session {
	return &gormSession{db: db, log: log.With("component", "session")}
}

func (s *gormSession) DB() *gorm.DB { return s.db }

func (s *gormSession) FetchRow(ctx context.Context, dest any, query string, args ...any) error {
	res := s.db.WithContext(ctx).Raw(query, args...).Scan(dest)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNoRows
	}
	return nil
}

func (s *gormSession) FetchAll(ctx context.Context, dest any, query string, args ...any) error {
	return s.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error
}

func (s *gormSession) Exec(ctx context.Context, query string, args ...any) error {
	return s.db.WithContext(ctx).Exec(query, args...).Error
}

func (s *gormSession) Transaction(ctx context.Context, fn func(tx Session) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormSession{db: tx, log: s.log})
	})
}

func (s *gormSession) Savepoint(ctx context.Context, label string, fn func(tx Session) error) error {
	name := savepointName(label)
	db := s.db.WithContext(ctx)
	if err := db.SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(&gormSession{db: s.db, log: s.log}); err != nil {
		if rbErr := db.RollbackTo(name).Error; rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s after %v: %w", name, err, rbErr)
		}
		return err
	}
	return nil
}

// RetryTransaction runs fn in a transaction via sess, re-running the whole
// transaction when it aborts with a transient serialization, deadlock, or
// lock-timeout error. attempts bounds the total number of runs; the last
// error is returned when they are exhausted. fn must be safe to re-run.
func RetryTransaction(ctx context.Context, sess Session, attempts int, fn func(tx Session) error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		err = sess.Transaction(ctx, fn)
		if err == nil || !IsRetryableTxError(err) {
			return err
		}
	}
	return err
}

// ForUpdate applies a blocking row lock to the query. SQLite serializes
// writers on its own and rejects FOR UPDATE, so the clause is only emitted
// on postgres.
func ForUpdate(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// savepointName reduces a human-readable label to a safe SQL identifier.
func savepointName(label string) string {
	var b strings.Builder
	b.WriteString("sp_")
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
