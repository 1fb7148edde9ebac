package warehouse

import (
	"context"
	"fmt"

	domain "github.com/yungbote/specimenhub-backend/internal/domain/warehouse"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

// IdentifierSetByName resolves a set name to its registry row.
// Returns *SetNotFoundError when no set has that exact name.
func (w *Warehouse) IdentifierSetByName(ctx context.Context, sess session.Session, name string) (*domain.IdentifierSet, error) {
	var set domain.IdentifierSet
	err := sess.FetchRow(ctx, &set, `
		select identifier_set_id, name, use
		  from identifier_set
		 where name = ?`, name)
	if err != nil {
		if session.IsNotFound(err) {
			w.log.Error("Identifier set does not exist", "set", name)
			return nil, &SetNotFoundError{Name: name}
		}
		return nil, fmt.Errorf("lookup identifier set %q: %w", name, err)
	}
	return &set, nil
}

// ListIdentifierSets returns all registered identifier sets, ordered by name.
func (w *Warehouse) ListIdentifierSets(ctx context.Context, sess session.Session) ([]domain.IdentifierSet, error) {
	var sets []domain.IdentifierSet
	if err := sess.FetchAll(ctx, &sets, `
		select identifier_set_id, name, use
		  from identifier_set
		 order by name`); err != nil {
		return nil, fmt.Errorf("list identifier sets: %w", err)
	}
	return sets, nil
}
