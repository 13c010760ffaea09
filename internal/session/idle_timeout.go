package session

import (
	"sync"
	"time"
)

// IdleTimer auto-closes a session after a period of no incoming POST
// activity, pausing while a POST is in flight (SPEC_FULL.md
// "SUPPLEMENTED FEATURES" item 3, grounded on the reference SDK's
// sessionInfo.startPOST/endPOST). A zero Timeout disables the feature.
type IdleTimer struct {
	timeout time.Duration
	onIdle  func()

	mu       sync.Mutex
	timer    *time.Timer
	inflight int
	stopped  bool
}

// NewIdleTimer constructs a disabled timer when timeout is <= 0.
// onIdle is invoked at most once, from the timer's own goroutine.
func NewIdleTimer(timeout time.Duration, onIdle func()) *IdleTimer {
	t := &IdleTimer{timeout: timeout, onIdle: onIdle}
	if timeout > 0 {
		t.timer = time.AfterFunc(timeout, t.fire)
	}
	return t
}

func (t *IdleTimer) fire() {
	t.mu.Lock()
	if t.stopped || t.inflight > 0 {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()
	if t.onIdle != nil {
		t.onIdle()
	}
}

// StartPOST pauses the idle countdown for the duration of one POST.
func (t *IdleTimer) StartPOST() {
	if t.timer == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight++
	t.timer.Stop()
}

// EndPOST resumes the idle countdown once every in-flight POST has
// completed.
func (t *IdleTimer) EndPOST() {
	if t.timer == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inflight > 0 {
		t.inflight--
	}
	if t.inflight == 0 && !t.stopped {
		t.timer.Reset(t.timeout)
	}
}

// Stop permanently disarms the timer, called when the transport closes
// through any other path.
func (t *IdleTimer) Stop() {
	if t.timer == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.timer.Stop()
}
