// Package warehouse implements the core specimen-warehouse operations:
// identifier minting against named identifier sets, and the transactional
// merge-upsert of sample records arriving from manifests, surveys, and lab
// results.
package warehouse

import (
	"github.com/yungbote/specimenhub-backend/internal/platform/logger"
)

type Deps struct {
	Log   *logger.Logger
	Hooks Hooks

	// MintRetryCap bounds collision retries per minted identifier.
	// Zero keeps the reference behavior of retrying indefinitely.
	MintRetryCap int
}

func (d Deps) withDefaults() Deps {
	if d.Hooks == nil {
		d.Hooks = noopHooks{}
	}
	return d
}

// Warehouse bundles the dependencies shared by the warehouse operations.
// Database access always comes in per call as a session so that every
// operation runs in the caller's transactional context.
type Warehouse struct {
	log   *logger.Logger
	hooks Hooks
	cap   int
}

func New(deps Deps) *Warehouse {
	deps = deps.withDefaults()
	return &Warehouse{
		log:   deps.Log.With("component", "warehouse"),
		hooks: deps.Hooks,
		cap:   deps.MintRetryCap,
	}
}
