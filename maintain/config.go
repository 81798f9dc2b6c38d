// ABOUTME: Tuning knobs the maintainer reads every tick
// ABOUTME: Defaults match the documented control-loop tuning exactly

package maintain

import "time"

// Config holds the maintainer's tuning knobs. TickInterval is
// informational only here: scheduling the tick itself is the embedder's
// job, this struct just documents what the embedder configured.
type Config struct {
	TickInterval          time.Duration
	MaxIterations         int
	MaxEvictionSubsetSize int
	MaxConsideredNodes    int
}

// DefaultConfig returns the documented default tuning.
func DefaultConfig() Config {
	return Config{
		MaxIterations:         10_000,
		MaxEvictionSubsetSize: 5,
		MaxConsideredNodes:    31,
	}
}
