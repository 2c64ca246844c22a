package checkout

import (
	"sync"
	"time"
)

// Redirect runs fn once after a delay unless cancelled first.
type Redirect struct {
	timer *time.Timer
	done  chan struct{}

	mu       sync.Mutex
	finished bool
}

// ScheduleRedirect arms a redirect.
func ScheduleRedirect(delay time.Duration, fn func()) *Redirect {
	r := &Redirect{done: make(chan struct{})}
	r.timer = time.AfterFunc(delay, func() {
		if !r.finish() {
			return
		}
		fn()
		close(r.done)
	})
	return r
}

// Cancel stops the redirect. It reports whether fn was prevented from
// running.
func (r *Redirect) Cancel() bool {
	if !r.finish() {
		return false
	}
	r.timer.Stop()
	close(r.done)
	return true
}

// Done is closed once the redirect ran or was cancelled.
func (r *Redirect) Done() <-chan struct{} {
	return r.done
}

func (r *Redirect) finish() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		return false
	}
	r.finished = true
	return true
}
