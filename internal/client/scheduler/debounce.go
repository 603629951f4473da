package scheduler

import (
	"sync"
	"time"

	"github.com/01011010/notesum-hybrid/internal/timex"
)

// debouncer runs the most recently scheduled function once its delay passes
// without another schedule call.
type debouncer struct {
	clock timex.Clock

	mu    sync.Mutex
	gen   int
	timer timex.Timer
	fn    func()
}

func newDebouncer(clock timex.Clock) *debouncer {
	return &debouncer{clock: clock}
}

func (d *debouncer) schedule(delay time.Duration, fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.fn = fn
	gen := d.gen
	d.timer = d.clock.AfterFunc(delay, func() { d.fire(gen) })
}

func (d *debouncer) fire(gen int) {
	d.mu.Lock()
	if gen != d.gen || d.fn == nil {
		d.mu.Unlock()
		return
	}
	fn := d.fn
	d.fn = nil
	d.timer = nil
	d.gen++
	d.mu.Unlock()
	fn()
}

func (d *debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.fn = nil
	d.gen++
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

// flush runs the pending function now. It reports whether one was pending.
func (d *debouncer) flush() bool {
	d.mu.Lock()
	fn := d.fn
	if fn == nil {
		d.mu.Unlock()
		return false
	}
	d.stopLocked()
	d.mu.Unlock()
	fn()
	return true
}

func (d *debouncer) pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fn != nil
}
