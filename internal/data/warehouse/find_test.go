package warehouse

import (
	"context"
	"testing"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/testutil"
)

func TestFindIdentifier(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	testutil.SeedIdentifierSet(t, gdb, "collection-kits", "kit barcodes")
	w := newTestWarehouse(t)

	sess := testutil.Session(t, gdb)
	var barcode string
	err := sess.Transaction(ctx, func(tx session.Session) error {
		minted, err := w.MintIdentifiers(ctx, tx, "collection-kits", 1)
		if err != nil {
			return err
		}
		barcode = minted[0].Barcode
		return nil
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	record, err := w.FindIdentifier(ctx, sess, barcode)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record == nil {
		t.Fatalf("expected identifier for barcode %q", barcode)
	}
	if record.SetName != "collection-kits" || record.SetUse != "kit barcodes" {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestFindIdentifier_UnknownBarcode(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	w := newTestWarehouse(t)

	record, err := w.FindIdentifier(ctx, testutil.Session(t, gdb), "nope")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %+v", record)
	}
}
