package warehouse

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/specimenhub-backend/internal/data/testutil"
)

func TestIdentifierSetByName(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	seeded := testutil.SeedIdentifierSet(t, gdb, "household-swabs", "specimen barcodes")
	w := newTestWarehouse(t)

	set, err := w.IdentifierSetByName(ctx, testutil.Session(t, gdb), "household-swabs")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if set.ID != seeded.ID || set.Use != "specimen barcodes" {
		t.Fatalf("unexpected set %+v", set)
	}
}

func TestIdentifierSetByName_NotFound(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	w := newTestWarehouse(t)

	_, err := w.IdentifierSetByName(ctx, testutil.Session(t, gdb), "missing")
	var notFound *SetNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected SetNotFoundError, got %v", err)
	}
	if notFound.Name != "missing" {
		t.Fatalf("expected name in error, got %q", notFound.Name)
	}
}

func TestListIdentifierSets(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	testutil.SeedIdentifierSet(t, gdb, "z-kits", "kits")
	testutil.SeedIdentifierSet(t, gdb, "a-swabs", "swabs")
	w := newTestWarehouse(t)

	sets, err := w.ListIdentifierSets(ctx, testutil.Session(t, gdb))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("expected 2 sets, got %d", len(sets))
	}
	if sets[0].Name != "a-swabs" || sets[1].Name != "z-kits" {
		t.Fatalf("expected name ordering, got %v", sets)
	}
}
