package warehouse

import (
	"context"
	"fmt"
	"sort"
	"time"

	domain "github.com/yungbote/specimenhub-backend/internal/domain/warehouse"

	"github.com/yungbote/specimenhub-backend/internal/data/session"
)

// MintIdentifiers generates n new identifiers in the set named setName.
//
// Each identifier is inserted inside its own labeled savepoint on the
// caller's transaction. The database assigns uuid, barcode, and generation
// timestamp; when the barcode collides with an existing one the store
// reports a uniqueness/exclusion conflict, the savepoint alone is rolled
// back, and the same slot is retried. Identifiers minted by earlier slots
// are never discarded. Any other store error aborts the whole operation.
//
// The caller decides durability: sess must already be inside a transaction,
// and committing or rolling back that transaction governs whether the
// minted identifiers persist.
func (w *Warehouse) MintIdentifiers(ctx context.Context, sess session.Session, setName string, n int) ([]domain.Identifier, error) {
	set, err := w.IdentifierSetByName(ctx, sess, setName)
	if err != nil {
		return nil, err
	}

	minted := make([]domain.Identifier, 0, n)
	failures := map[int]int{}
	started := time.Now()

	for len(minted) < n {
		m := len(minted) + 1

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		w.log.Debug("Minting identifier", "slot", m, "count", n, "set", setName)

		var id domain.Identifier
		err := sess.Savepoint(ctx, fmt.Sprintf("identifier %d", m), func(tx session.Session) error {
			return tx.FetchRow(ctx, &id, `
				insert into identifier (identifier_set_id, generated)
					values (?, CURRENT_TIMESTAMP)
					returning uuid, barcode, generated, identifier_set_id`,
				set.ID)
		})
		if err != nil {
			if session.IsUniqueViolation(err) {
				w.log.Debug("Barcode excluded, retrying", "slot", m, "set", setName)
				failures[m]++
				w.hooks.IncMintRetry(setName)
				if w.cap > 0 && failures[m] >= w.cap {
					return nil, fmt.Errorf("minting identifier %d/%d in set %q: %d consecutive barcode conflicts (MINT_RETRY_CAP)", m, n, setName, failures[m])
				}
				continue
			}
			return nil, fmt.Errorf("minting identifier %d/%d in set %q: %w", m, n, setName, err)
		}

		minted = append(minted, id)
	}

	w.logMintStats(setName, n, started, failures)
	w.hooks.ObserveMint(setName, n, time.Since(started))

	return minted, nil
}

// logMintStats surfaces minting telemetry: throughput plus the retry
// distribution over slots that collided at least once. Observability only.
func (w *Warehouse) logMintStats(setName string, n int, started time.Time, failures map[int]int) {
	duration := time.Since(started)

	retries := 0
	counts := make([]int, 0, len(failures))
	for _, c := range failures {
		retries += c
		counts = append(counts, c)
	}

	perSecond := 0.0
	if duration > 0 {
		perSecond = float64(n) / duration.Seconds()
	}

	w.log.Info("Minted identifiers",
		"set", setName,
		"count", n,
		"tries", n+retries,
		"retries", retries,
		"duration", duration,
		"identifiers_per_second", fmt.Sprintf("%.2f", perSecond))

	if len(counts) > 0 {
		w.log.Info("Mint retry distribution",
			"set", setName,
			"max", maxInts(counts),
			"mode", modeInts(counts),
			"median", medianInts(counts))
	}
}

func maxInts(values []int) int {
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// modeInts returns all values tied for the highest frequency, ascending.
func modeInts(values []int) []int {
	freq := map[int]int{}
	best := 0
	for _, v := range values {
		freq[v]++
		if freq[v] > best {
			best = freq[v]
		}
	}
	var modes []int
	for v, c := range freq {
		if c == best {
			modes = append(modes, v)
		}
	}
	sort.Ints(modes)
	return modes
}

func medianInts(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
