// internal/generation/recorder.go
package generation

import (
	"context"
	"sync"
	"time"
)

// Recorder is a Sleeper that returns immediately and remembers every requested duration.
// Hooks run after a sleep is recorded, which lets tests mutate the world between resumptions.
type Recorder struct {
	mu        sync.Mutex
	durations []time.Duration
	hooks     []func(n int)
}

// OnSleep registers fn to be called with the 1-based sleep count after each sleep.
func (r *Recorder) OnSleep(fn func(n int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, fn)
}

func (r *Recorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.durations = append(r.durations, d)
	n := len(r.durations)
	hooks := append([]func(int){}, r.hooks...)
	r.mu.Unlock()

	for _, hook := range hooks {
		hook(n)
	}
	return ctx.Err()
}

// Durations returns a copy of all recorded sleeps.
func (r *Recorder) Durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.durations...)
}

// Count returns the number of recorded sleeps.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.durations)
}
