package warehouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	"gorm.io/datatypes"

	domain "github.com/yungbote/specimenhub-backend/internal/domain/warehouse"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

type UpsertStatus string

const (
	StatusCreated UpsertStatus = "created"
	StatusUpdated UpsertStatus = "updated"
)

// UpsertSampleInput carries the natural keys and payload for one upsert.
// Nil pointer fields mean "not supplied".
type UpsertSampleInput struct {
	Identifier           *string
	CollectionIdentifier *string
	CollectionDate       *string
	EncounterID          *int64
	Details              map[string]any

	// UpdateIdentifiers controls whether an existing sample's identifier
	// and collection identifier are overwritten with the supplied values.
	UpdateIdentifiers bool
}

// UpsertSample finds at most one sample by identifier and/or collection
// identifier and atomically creates or merges it.
//
// The lookup takes a blocking write lock on every matched row, so two
// callers racing on the same keys serialize: the second observes the first
// caller's committed row and lands in the update branch instead of creating
// a duplicate. For that to hold, sess must already be inside a transaction;
// the lock is released when that transaction ends.
//
// An existing sample keeps its collected date and encounter id unless the
// supplied values are non-null, and its details are merged shallowly: every
// top-level key of in.Details overwrites the same-named existing key,
// nested objects are replaced wholesale, and keys absent from in.Details
// are preserved.
func (w *Warehouse) UpsertSample(ctx context.Context, sess session.Session, in UpsertSampleInput) (*domain.Sample, UpsertStatus, error) {
	started := time.Now()

	if err := w.lockSampleKeys(ctx, sess, in); err != nil {
		return nil, "", err
	}

	var matches []domain.Sample
	err := session.ForUpdate(sess.DB().WithContext(ctx)).
		Where("identifier = ? or collection_identifier = ?", in.Identifier, in.CollectionIdentifier).
		Order("sample_id").
		Find(&matches).Error
	if err != nil {
		return nil, "", fmt.Errorf("lookup samples: %w", err)
	}

	var sample *domain.Sample
	var status UpsertStatus

	switch len(matches) {
	case 0:
		sample, err = w.createSample(ctx, sess, in)
		status = StatusCreated
	case 1:
		sample, err = w.updateSample(ctx, sess, &matches[0], in)
		status = StatusUpdated
	default:
		ids := make([]int64, len(matches))
		for i, s := range matches {
			ids[i] = s.ID
		}
		return nil, "", &AmbiguousMatchError{SampleIDs: ids}
	}
	if err != nil {
		return nil, "", err
	}

	switch {
	case in.Identifier != nil:
		w.log.Info("Upserted sample", "status", status, "sample_id", sample.ID, "identifier", *in.Identifier)
	case in.CollectionIdentifier != nil:
		w.log.Info("Upserted sample", "status", status, "sample_id", sample.ID, "collection_identifier", *in.CollectionIdentifier)
	}
	w.hooks.ObserveUpsert(string(status), time.Since(started))

	return sample, status, nil
}

// lockSampleKeys serializes upserts on the same natural keys before the
// row lookup. Row locks alone cannot serialize two creators of a sample
// that does not exist yet (there is no row to lock), so each supplied key
// also takes a transaction-scoped advisory lock; the second creator blocks
// here until the first commits, then observes the new row and updates it.
// SQLite's single-writer model already provides this.
func (w *Warehouse) lockSampleKeys(ctx context.Context, sess session.Session, in UpsertSampleInput) error {
	if sess.DB().Dialector.Name() != "postgres" {
		return nil
	}
	for _, key := range sampleLockKeys(in) {
		err := sess.Exec(ctx, `select pg_advisory_xact_lock(hashtextextended('warehouse.sample:' || ?, 0))`, key)
		if err != nil {
			return fmt.Errorf("lock sample key: %w", err)
		}
	}
	return nil
}

// sampleLockKeys returns the supplied natural keys in sorted order. The
// acquisition order must not depend on which field a key arrived in, or two
// callers with swapped identifier and collection values deadlock.
func sampleLockKeys(in UpsertSampleInput) []string {
	var keys []string
	for _, key := range []*string{in.Identifier, in.CollectionIdentifier} {
		if key != nil {
			keys = append(keys, *key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (w *Warehouse) createSample(ctx context.Context, sess session.Session, in UpsertSampleInput) (*domain.Sample, error) {
	w.log.Info("Creating new sample")

	sample := domain.Sample{
		Identifier:           in.Identifier,
		CollectionIdentifier: in.CollectionIdentifier,
		Collected:            parseCollectionDate(in.CollectionDate),
		EncounterID:          in.EncounterID,
		Details:              mergeDetails(nil, in.Details),
	}
	if err := sess.DB().WithContext(ctx).Create(&sample).Error; err != nil {
		return nil, fmt.Errorf("create sample: %w", err)
	}
	return &sample, nil
}

func (w *Warehouse) updateSample(ctx context.Context, sess session.Session, existing *domain.Sample, in UpsertSampleInput) (*domain.Sample, error) {
	w.log.Info("Updating existing sample", "sample_id", existing.ID)

	updates := map[string]any{
		"details": mergeDetails(existing.Details, in.Details),
	}
	if in.UpdateIdentifiers {
		updates["identifier"] = in.Identifier
		updates["collection_identifier"] = in.CollectionIdentifier
	}
	if collected := parseCollectionDate(in.CollectionDate); collected != nil {
		updates["collected"] = *collected
	}
	if in.EncounterID != nil {
		updates["encounter_id"] = *in.EncounterID
	}

	res := sess.DB().WithContext(ctx).
		Model(&domain.Sample{}).
		Where("sample_id = ?", existing.ID).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update sample %d: %w", existing.ID, res.Error)
	}
	if res.RowsAffected != 1 {
		// The row was locked by the lookup, so this cannot happen short
		// of data corruption.
		return nil, &InvariantViolationError{
			Op:  "warehouse.UpsertSample",
			Msg: fmt.Sprintf("update of sample %d affected %d rows", existing.ID, res.RowsAffected),
		}
	}

	var sample domain.Sample
	if err := sess.DB().WithContext(ctx).First(&sample, "sample_id = ?", existing.ID).Error; err != nil {
		return nil, fmt.Errorf("reload sample %d: %w", existing.ID, err)
	}
	return &sample, nil
}

// mergeDetails shallow-merges incoming onto existing: top-level keys from
// incoming win, everything else is preserved. A nil existing map counts as
// an empty object.
func mergeDetails(existing datatypes.JSONMap, incoming map[string]any) datatypes.JSONMap {
	merged := make(datatypes.JSONMap, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}

var collectionDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
}

// parseCollectionDate mirrors the store-side date_or_null cast: a date when
// the value parses, null otherwise.
func parseCollectionDate(value *string) *time.Time {
	if value == nil || *value == "" {
		return nil
	}
	for _, layout := range collectionDateLayouts {
		if t, err := time.Parse(layout, *value); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &day
		}
	}
	return nil
}
