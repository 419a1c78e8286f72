// FILE: lixenwraith/classconfig/timing.go
package classconfig

import "time"

// Timing constants of the declaration file watcher.
const (
	SpinWaitInterval     = 5 * time.Millisecond   // CPU-friendly busy-wait quantum
	MinPollInterval      = 100 * time.Millisecond // Hard floor for file stat polling
	ShutdownTimeout      = 100 * time.Millisecond // Graceful watcher termination window
	DefaultDebounce      = 500 * time.Millisecond // File change coalescence period
	DefaultPollInterval  = time.Second            // Standard file monitoring frequency
	DefaultReloadTimeout = 5 * time.Second        // Maximum duration of one reload
)

// debounceSettleMultiplier is how many debounce periods tests wait for a reload to land
const debounceSettleMultiplier = 3
