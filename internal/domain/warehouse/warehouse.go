package warehouse

import (
	"time"

	"gorm.io/datatypes"
)

// IdentifierSet is a named partition of the identifier keyspace, e.g. one
// series of collection kits. Sets are created administratively and are
// immutable as far as minting and lookup are concerned.
type IdentifierSet struct {
	ID   int64  `gorm:"column:identifier_set_id;primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"type:text;not null;uniqueIndex" json:"name"`
	Use  string `gorm:"type:text;column:use" json:"use"`
}

func (IdentifierSet) TableName() string { return "identifier_set" }

// Identifier is one minted identifier. The uuid, barcode, and generation
// timestamp are all assigned by the database; barcode uniqueness is enforced
// by a store-side exclusion constraint, which is what the minter retries on.
type Identifier struct {
	UUID            string    `gorm:"column:uuid;type:uuid;primaryKey" json:"uuid"`
	Barcode         string    `gorm:"type:text;not null" json:"barcode"`
	Generated       time.Time `gorm:"not null" json:"generated"`
	IdentifierSetID int64     `gorm:"not null;index" json:"identifier_set_id"`
}

func (Identifier) TableName() string { return "identifier" }

// IdentifierRecord is an identifier joined with its set, as returned by
// barcode lookup.
type IdentifierRecord struct {
	UUID      string    `json:"uuid"`
	Barcode   string    `json:"barcode"`
	Generated time.Time `json:"generated"`
	SetName   string    `json:"set_name"`
	SetUse    string    `json:"set_use"`
}

// Sample is the canonical record for a physical specimen. At most one row
// may match a given identifier or collection identifier; the upsert engine
// maintains that invariant cooperatively via row locking.
type Sample struct {
	ID                   int64             `gorm:"column:sample_id;primaryKey;autoIncrement" json:"id"`
	Identifier           *string           `gorm:"type:text;index" json:"identifier"`
	CollectionIdentifier *string           `gorm:"type:text;index" json:"collection_identifier"`
	Collected            *time.Time        `gorm:"type:date" json:"collected"`
	EncounterID          *int64            `gorm:"index" json:"encounter_id"`
	Details              datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"details"`
}

func (Sample) TableName() string { return "sample" }

// Encounter exists so encounter_id has a referent in automigrated schemas.
// Encounter ingest itself lives upstream of this service.
type Encounter struct {
	ID      int64             `gorm:"column:encounter_id;primaryKey;autoIncrement" json:"id"`
	Details datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"details"`
}

func (Encounter) TableName() string { return "encounter" }
