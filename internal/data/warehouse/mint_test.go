package warehouse

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	types "github.com/yungbote/specimenhub-backend/internal/domain"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
	"github.com/yungbote/specimenhub-backend/internal/data/testutil"
)

type recordingHooks struct {
	mu         sync.Mutex
	mintRetry  map[string]int
	mints      int
	upserts    []string
}

func newRecordingHooks() *recordingHooks {
	return &recordingHooks{mintRetry: map[string]int{}}
}

func (h *recordingHooks) ObserveMint(set string, n int, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mints++
}

func (h *recordingHooks) IncMintRetry(set string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mintRetry[set]++
}

func (h *recordingHooks) ObserveUpsert(status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.upserts = append(h.upserts, status)
}

func newTestWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	return New(Deps{Log: testutil.Logger(t)})
}

func TestMintIdentifiers_ReturnsExactlyN(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	testutil.SeedIdentifierSet(t, gdb, "collection-kits", "kit barcodes")
	w := newTestWarehouse(t)

	var minted []types.Identifier
	err := testutil.Session(t, gdb).Transaction(ctx, func(tx session.Session) error {
		var err error
		minted, err = w.MintIdentifiers(ctx, tx, "collection-kits", 5)
		return err
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(minted) != 5 {
		t.Fatalf("expected 5 identifiers, got %d", len(minted))
	}

	uuids := map[string]bool{}
	barcodes := map[string]bool{}
	for _, id := range minted {
		if id.UUID == "" || id.Barcode == "" {
			t.Fatalf("identifier missing store-assigned values: %+v", id)
		}
		if uuids[id.UUID] {
			t.Fatalf("duplicate uuid %q", id.UUID)
		}
		if barcodes[id.Barcode] {
			t.Fatalf("duplicate barcode %q", id.Barcode)
		}
		uuids[id.UUID] = true
		barcodes[id.Barcode] = true
	}

	var count int64
	if err := gdb.Model(&types.Identifier{}).Count(&count).Error; err != nil {
		t.Fatalf("count identifiers: %v", err)
	}
	if count != 5 {
		t.Fatalf("expected 5 persisted identifiers, got %d", count)
	}
}

func TestMintIdentifiers_ZeroCount(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	testutil.SeedIdentifierSet(t, gdb, "collection-kits", "kit barcodes")
	w := newTestWarehouse(t)

	err := testutil.Session(t, gdb).Transaction(ctx, func(tx session.Session) error {
		minted, err := w.MintIdentifiers(ctx, tx, "collection-kits", 0)
		if err != nil {
			return err
		}
		if len(minted) != 0 {
			t.Fatalf("expected no identifiers, got %d", len(minted))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
}

func TestMintIdentifiers_SetNotFound(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	w := newTestWarehouse(t)

	err := testutil.Session(t, gdb).Transaction(ctx, func(tx session.Session) error {
		_, err := w.MintIdentifiers(ctx, tx, "does-not-exist", 3)
		return err
	})

	var notFound *SetNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected SetNotFoundError, got %v", err)
	}
	if notFound.Name != "does-not-exist" {
		t.Fatalf("error should carry the requested name, got %q", notFound.Name)
	}

	var count int64
	if err := gdb.Model(&types.Identifier{}).Count(&count).Error; err != nil {
		t.Fatalf("count identifiers: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no inserts, got %d", count)
	}
}

func TestMintIdentifiers_RetriesBarcodeConflict(t *testing.T) {
	ctx := context.Background()
	hooks := newRecordingHooks()
	w := New(Deps{Log: testutil.Logger(t), Hooks: hooks})

	fake := &fakeSession{
		set: &types.IdentifierSet{ID: 7, Name: "kits"},
		insertErrs: []error{
			&pgconn.PgError{Code: "23P01", Message: "conflicting key value violates exclusion constraint"},
		},
	}

	minted, err := w.MintIdentifiers(ctx, fake, "kits", 1)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(minted) != 1 {
		t.Fatalf("expected 1 identifier after retry, got %d", len(minted))
	}
	if hooks.mintRetry["kits"] != 1 {
		t.Fatalf("expected 1 recorded retry, got %d", hooks.mintRetry["kits"])
	}
	if len(fake.inserted) != 1 {
		t.Fatalf("failed attempt left %d rows, expected 1", len(fake.inserted))
	}
	if fake.attempts != 2 {
		t.Fatalf("expected 2 insert attempts, got %d", fake.attempts)
	}
}

func TestMintIdentifiers_ConflictsOnlyDiscardOneSlot(t *testing.T) {
	ctx := context.Background()
	w := newTestWarehouse(t)

	// Slot 1 succeeds, slot 2 collides twice before succeeding.
	fake := &fakeSession{
		set: &types.IdentifierSet{ID: 7, Name: "kits"},
		insertErrs: []error{
			nil,
			&pgconn.PgError{Code: "23P01"},
			&pgconn.PgError{Code: "23505"},
		},
	}

	minted, err := w.MintIdentifiers(ctx, fake, "kits", 2)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(minted) != 2 {
		t.Fatalf("expected 2 identifiers, got %d", len(minted))
	}
	if minted[0].UUID != fake.inserted[0].UUID {
		t.Fatalf("slot 1 identifier was discarded by slot 2 conflicts")
	}
}

func TestMintIdentifiers_OpaqueErrorIsFatal(t *testing.T) {
	ctx := context.Background()
	w := newTestWarehouse(t)

	boom := &pgconn.PgError{Code: "42501", Message: "permission denied"}
	fake := &fakeSession{
		set:        &types.IdentifierSet{ID: 7, Name: "kits"},
		insertErrs: []error{boom},
	}

	_, err := w.MintIdentifiers(ctx, fake, "kits", 1)
	if err == nil {
		t.Fatalf("expected fatal error")
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "42501" {
		t.Fatalf("store error should propagate unchanged, got %v", err)
	}
	if fake.attempts != 1 {
		t.Fatalf("fatal error must not be retried, got %d attempts", fake.attempts)
	}
}

func TestMintIdentifiers_RetryCap(t *testing.T) {
	ctx := context.Background()
	w := New(Deps{Log: testutil.Logger(t), MintRetryCap: 2})

	fake := &fakeSession{
		set: &types.IdentifierSet{ID: 7, Name: "kits"},
		insertErrs: []error{
			&pgconn.PgError{Code: "23P01"},
			&pgconn.PgError{Code: "23P01"},
			&pgconn.PgError{Code: "23P01"},
		},
	}

	_, err := w.MintIdentifiers(ctx, fake, "kits", 1)
	if err == nil {
		t.Fatalf("expected retry cap to abort minting")
	}
}
