package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/specimenhub-backend/internal/domain"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

// fakeSession scripts the store session contract so the minting retry loop
// can be driven through conflict and failure paths that a real store only
// produces probabilistically.
type fakeSession struct {
	set *types.IdentifierSet

	// insertErrs[i] is returned by the i-th insert attempt; nil attempts
	// succeed. Attempts beyond the script succeed.
	insertErrs []error
	attempts   int

	inserted []types.Identifier
	execed   []string
}

func (f *fakeSession) FetchRow(ctx context.Context, dest any, query string, args ...any) error {
	q := strings.ToLower(query)
	switch {
	case strings.Contains(q, "from identifier_set"):
		if f.set == nil {
			return session.ErrNoRows
		}
		*dest.(*types.IdentifierSet) = *f.set
		return nil
	case strings.Contains(q, "insert into identifier"):
		attempt := f.attempts
		f.attempts++
		if attempt < len(f.insertErrs) && f.insertErrs[attempt] != nil {
			return f.insertErrs[attempt]
		}
		id := types.Identifier{
			UUID:            uuid.NewString(),
			Barcode:         fmt.Sprintf("bc%06d", attempt),
			IdentifierSetID: f.set.ID,
		}
		f.inserted = append(f.inserted, id)
		*dest.(*types.Identifier) = id
		return nil
	default:
		return fmt.Errorf("fakeSession: unexpected query %q", query)
	}
}

func (f *fakeSession) FetchAll(ctx context.Context, dest any, query string, args ...any) error {
	return fmt.Errorf("fakeSession: FetchAll not scripted")
}

func (f *fakeSession) Exec(ctx context.Context, query string, args ...any) error {
	f.execed = append(f.execed, query)
	return nil
}

func (f *fakeSession) Transaction(ctx context.Context, fn func(tx session.Session) error) error {
	return fn(f)
}

// Savepoint mimics sub-transaction semantics: on error, inserts made inside
// fn are discarded while earlier ones survive.
func (f *fakeSession) Savepoint(ctx context.Context, label string, fn func(tx session.Session) error) error {
	mark := len(f.inserted)
	if err := fn(f); err != nil {
		f.inserted = f.inserted[:mark]
		return err
	}
	return nil
}

func (f *fakeSession) DB() *gorm.DB { return nil }
