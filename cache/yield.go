package cache

import "runtime"

// yield gives up the current goroutine's timeslice between hazard-snapshot
// retries under forced acquisition. See DESIGN.md for why this stays on
// runtime.Gosched rather than a third-party scheduling library.
func yield() {
	runtime.Gosched()
}
