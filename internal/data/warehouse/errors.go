package warehouse

import (
	"fmt"
)

// SetNotFoundError reports that a named identifier set does not exist.
// Configuration problem; never retried.
type SetNotFoundError struct {
	Name string
}

func (e *SetNotFoundError) Error() string {
	return fmt.Sprintf("no identifier set named %q", e.Name)
}

// AmbiguousMatchError reports that the identifier / collection identifier
// pair matched two or more distinct samples. This means the warehouse
// already holds conflicting rows; the upsert performs no mutation and the
// condition needs manual intervention.
type AmbiguousMatchError struct {
	SampleIDs []int64
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("more than one sample matching sample and/or collection identifiers: %v", e.SampleIDs)
}

// InvariantViolationError reports a condition that should be unreachable,
// e.g. an update of a locked row affecting zero rows.
type InvariantViolationError struct {
	Op  string
	Msg string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("%s: invariant violation: %s", e.Op, e.Msg)
}
