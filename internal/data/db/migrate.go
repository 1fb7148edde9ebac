package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/specimenhub-backend/internal/domain"
)

// AutoMigrateAll creates the warehouse tables and the store-side machinery
// the core relies on: server-assigned identifier uuids and barcodes, and
// the exclusion constraint whose conflicts drive the minting retry loop.
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.IdentifierSet{},
		&types.Identifier{},
		&types.Encounter{},
		&types.Sample{},
	); err != nil {
		return fmt.Errorf("automigrate warehouse tables: %w", err)
	}
	return ensureIdentifierDefaults(db)
}

// ensureIdentifierDefaults delegates uuid, barcode, and generation
// timestamp to the database so that minting is a bare insert and barcode
// uniqueness is decided solely by the store. Barcodes are the first eight
// hex digits of a fresh v4 uuid, the same keyspace the reference warehouse
// uses, guarded by an exclusion constraint.
func ensureIdentifierDefaults(db *gorm.DB) error {
	statements := []string{
		`ALTER TABLE identifier ALTER COLUMN uuid SET DEFAULT uuid_generate_v4()`,
		`ALTER TABLE identifier ALTER COLUMN generated SET DEFAULT now()`,
		`ALTER TABLE identifier ALTER COLUMN barcode SET DEFAULT left(replace(uuid_generate_v4()::text, '-', ''), 8)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("identifier defaults: %w", err)
		}
	}

	var constraintExists int64
	err := db.Raw(
		`SELECT count(*) FROM pg_constraint WHERE conname = 'identifier_barcode_excluded'`,
	).Scan(&constraintExists).Error
	if err != nil {
		return fmt.Errorf("check barcode constraint: %w", err)
	}
	if constraintExists == 0 {
		err := db.Exec(
			`ALTER TABLE identifier ADD CONSTRAINT identifier_barcode_excluded EXCLUDE (barcode WITH =)`,
		).Error
		if err != nil {
			return fmt.Errorf("create barcode constraint: %w", err)
		}
	}
	return nil
}
