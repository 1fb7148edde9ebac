package warehouse

import "time"

// Hooks captures warehouse-level observability events. Implementations must
// not affect operation outcome.
type Hooks interface {
	ObserveMint(set string, n int, dur time.Duration)
	IncMintRetry(set string)
	ObserveUpsert(status string, dur time.Duration)
}

type noopHooks struct{}

func (noopHooks) ObserveMint(string, int, time.Duration) {}
func (noopHooks) IncMintRetry(string)                    {}
func (noopHooks) ObserveUpsert(string, time.Duration)    {}
