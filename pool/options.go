package pool

import "time"

// Options configures a Pool. It is fixed for the pool's lifetime.
type Options struct {
	// BaseDir is the directory every text ID is resolved under.
	BaseDir string
	// Extension is appended to an ID to form its filename, e.g. "txt".
	// Empty means IDs are taken as literal filenames.
	Extension string
	// ReadOnly disables NewText/DeleteText.
	ReadOnly bool
	// LineIndex enables the per-text line-start index, consumed by
	// Pool.MapLines.
	LineIndex bool
	// UnloadTime is how long an entry may sit idle before the sweep
	// evicts it.
	UnloadTime time.Duration
	// SweepInterval is how often the background evictor runs.
	SweepInterval time.Duration
	// WaitInterval is the busy-wait poll period used by the
	// single-loader protocol.
	WaitInterval time.Duration
}

// DefaultOptions returns the CLI's documented defaults.
func DefaultOptions() Options {
	return Options{
		Extension:     "txt",
		ReadOnly:      true,
		LineIndex:     true,
		UnloadTime:    600 * time.Second,
		SweepInterval: 60 * time.Second,
		WaitInterval:  100 * time.Millisecond,
	}
}
