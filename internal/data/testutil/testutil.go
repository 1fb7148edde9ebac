// Package testutil provides database fixtures for warehouse tests. By
// default every test gets a private in-memory sqlite database with the
// warehouse schema installed, including the store-side barcode/uuid
// defaults the minter depends on. Setting TEST_POSTGRES_DSN runs the same
// tests against a real postgres instead.
package testutil

import (
	"errors"
	"os"
	"sync"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/specimenhub-backend/internal/data/db"
	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	pgOnce sync.Once
	pgDB   *gorm.DB
	pgErr  error
)

var errNoPostgres = errors.New("missing TEST_POSTGRES_DSN")

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// DB returns a database with the warehouse schema. sqlite in-memory unless
// TEST_POSTGRES_DSN is set.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if os.Getenv("TEST_POSTGRES_DSN") != "" {
		return postgresDB(tb)
	}
	return sqliteDB(tb)
}

// PostgresDB returns a postgres-backed database, skipping the test when
// TEST_POSTGRES_DSN is unset. For tests that need real row locking.
func PostgresDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	if os.Getenv("TEST_POSTGRES_DSN") == "" {
		tb.Skip("set TEST_POSTGRES_DSN to run postgres-backed tests")
	}
	return postgresDB(tb)
}

// Session wraps the database in the store session contract.
func Session(tb testing.TB, gdb *gorm.DB) session.Session {
	tb.Helper()
	return session.New(gdb, Logger(tb))
}

func postgresDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	pgOnce.Do(func() {
		dsn := os.Getenv("TEST_POSTGRES_DSN")
		if dsn == "" {
			pgErr = errNoPostgres
			return
		}
		gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			DisableForeignKeyConstraintWhenMigrating: true,
			Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
		})
		if err != nil {
			pgErr = err
			return
		}
		if err := gdb.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`).Error; err != nil {
			pgErr = err
			return
		}
		if err := db.AutoMigrateAll(gdb); err != nil {
			pgErr = err
			return
		}
		pgDB = gdb
	})
	if pgErr != nil {
		tb.Fatalf("failed to init postgres test db: %v", pgErr)
	}
	truncateAll(tb, pgDB)
	return pgDB
}

func sqliteDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	// Every pool connection would get its own :memory: database.
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range sqliteSchema {
		if err := gdb.Exec(stmt).Error; err != nil {
			tb.Fatalf("install sqlite schema: %v", err)
		}
	}
	tb.Cleanup(func() { _ = sqlDB.Close() })
	return gdb
}

// sqliteSchema mirrors the automigrated postgres schema closely enough for
// the core semantics: store-assigned uuid/barcode/generated defaults and a
// unique barcode constraint standing in for the exclusion constraint.
var sqliteSchema = []string{
	`CREATE TABLE identifier_set (
		identifier_set_id integer PRIMARY KEY AUTOINCREMENT,
		name text NOT NULL UNIQUE,
		use text
	)`,
	`CREATE TABLE identifier (
		uuid text PRIMARY KEY DEFAULT (
			lower(hex(randomblob(4))) || '-' || lower(hex(randomblob(2))) || '-4' ||
			substr(lower(hex(randomblob(2))), 2) || '-a' ||
			substr(lower(hex(randomblob(2))), 2) || '-' || lower(hex(randomblob(6)))
		),
		barcode text NOT NULL UNIQUE DEFAULT (lower(hex(randomblob(4)))),
		generated datetime NOT NULL DEFAULT CURRENT_TIMESTAMP,
		identifier_set_id integer NOT NULL REFERENCES identifier_set (identifier_set_id)
	)`,
	`CREATE TABLE encounter (
		encounter_id integer PRIMARY KEY AUTOINCREMENT,
		details text NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE sample (
		sample_id integer PRIMARY KEY AUTOINCREMENT,
		identifier text,
		collection_identifier text,
		collected date,
		encounter_id integer REFERENCES encounter (encounter_id),
		details text NOT NULL DEFAULT '{}'
	)`,
	`CREATE INDEX idx_sample_identifier ON sample (identifier)`,
	`CREATE INDEX idx_sample_collection_identifier ON sample (collection_identifier)`,
}

var truncateTables = []string{"sample", "identifier", "encounter", "identifier_set"}

func truncateAll(tb testing.TB, gdb *gorm.DB) {
	tb.Helper()
	for _, table := range truncateTables {
		if err := gdb.Exec("DELETE FROM " + table).Error; err != nil {
			tb.Fatalf("truncate %s: %v", table, err)
		}
	}
}
