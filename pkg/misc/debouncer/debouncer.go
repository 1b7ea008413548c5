package debouncer

import (
	"sync"
	"time"
)

// New returns a function that delays calls by d. Only the most recent
// function given within the window runs.
func New(d time.Duration) func(f func()) {
	var mu sync.Mutex
	var timer *time.Timer

	return func(f func()) {
		mu.Lock()
		defer mu.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(d, f)
	}
}
