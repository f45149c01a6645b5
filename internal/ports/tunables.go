package ports

import "time"

// Tunables are the empirically chosen sampling constants. None of the
// defaults are load-tested optima; they are deliberately configuration, not
// literals.
type Tunables struct {
	// PollInterval is the fixed sleep between raw sampling cycles.
	PollInterval time.Duration
	// TickPoll is the loop sampler's scheduling poll rate; it only controls
	// how promptly the sampler catches the next whole-second boundary, not
	// the emitted data rate.
	TickPoll time.Duration

	WriteBatchSize   int
	MaxPendingPoints int

	// RawCacheMaxAge bounds how long a stale raw reading may substitute for
	// a failed live read.
	RawCacheMaxAge time.Duration
	// LoopCacheMaxAge is the same bound for loop/PID sub-reads; loops
	// tolerate a longer horizon because a partial triple is never emitted.
	LoopCacheMaxAge time.Duration

	// MaxBackfillSeconds caps how many missed whole-second ticks the loop
	// sampler reconstructs after a stall.
	MaxBackfillSeconds int
}
