package warehouse

import (
	"context"
	"fmt"

	domain "github.com/yungbote/specimenhub-backend/internal/domain/warehouse"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

// FindIdentifier looks up a known identifier by barcode, joined with its
// set. Returns (nil, nil) when the barcode is unknown.
func (w *Warehouse) FindIdentifier(ctx context.Context, sess session.Session, barcode string) (*domain.IdentifierRecord, error) {
	w.log.Debug("Looking up barcode", "barcode", barcode)

	var record domain.IdentifierRecord
	err := sess.FetchRow(ctx, &record, `
		select identifier.uuid as uuid,
		       identifier.barcode as barcode,
		       identifier.generated as generated,
		       identifier_set.name as set_name,
		       identifier_set.use as set_use
		  from identifier
		  join identifier_set using (identifier_set_id)
		 where barcode = ?`, barcode)
	if err != nil {
		if session.IsNotFound(err) {
			w.log.Warn("No identifier found for barcode", "barcode", barcode)
			return nil, nil
		}
		return nil, fmt.Errorf("lookup barcode %q: %w", barcode, err)
	}

	w.log.Info("Found identifier", "set", record.SetName, "uuid", record.UUID)
	return &record, nil
}
