package domain

import (
	"github.com/yungbote/specimenhub-backend/internal/domain/warehouse"
)

type IdentifierSet = warehouse.IdentifierSet
type Identifier = warehouse.Identifier
type IdentifierRecord = warehouse.IdentifierRecord
type Sample = warehouse.Sample
type Encounter = warehouse.Encounter
