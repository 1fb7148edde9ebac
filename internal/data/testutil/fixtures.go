package testutil

import (
	"testing"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/specimenhub-backend/internal/domain"
)

func SeedIdentifierSet(tb testing.TB, gdb *gorm.DB, name, use string) *types.IdentifierSet {
	tb.Helper()
	set := &types.IdentifierSet{Name: name, Use: use}
	if err := gdb.Create(set).Error; err != nil {
		tb.Fatalf("seed identifier set: %v", err)
	}
	return set
}

func SeedSample(tb testing.TB, gdb *gorm.DB, identifier, collectionIdentifier *string, details map[string]any) *types.Sample {
	tb.Helper()
	if details == nil {
		details = map[string]any{}
	}
	sample := &types.Sample{
		Identifier:           identifier,
		CollectionIdentifier: collectionIdentifier,
		Details:              datatypes.JSONMap(details),
	}
	if err := gdb.Create(sample).Error; err != nil {
		tb.Fatalf("seed sample: %v", err)
	}
	return sample
}
