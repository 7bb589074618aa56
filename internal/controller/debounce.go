package controller

import (
	"context"
	"errors"
	"sync"
	"time"
)

// DefaultDebounce is the quiet period applied to search input.
const DefaultDebounce = 300 * time.Millisecond

// ErrSuperseded is returned to a debounced caller when a later call arrived
// before its quiet period elapsed.
var ErrSuperseded = errors.New("superseded by a newer request")

// Debouncer lets only the last of a burst of calls through. Every new call
// stops the timer of the pending one before scheduling its own.
type Debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	pending chan struct{}
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay < 0 {
		delay = 0
	}
	return &Debouncer{delay: delay}
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Wait blocks for the quiet period. It returns nil when no other call
// arrived meanwhile, ErrSuperseded when one did, or the context error.
func (d *Debouncer) Wait(ctx context.Context) error {
	mine := d.supersede()

	t := time.NewTimer(d.delay)
	defer t.Stop()

	select {
	case <-t.C:
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.pending != mine {
			return ErrSuperseded
		}
		d.pending = nil
		return nil
	case <-mine:
		return ErrSuperseded
	case <-ctx.Done():
		d.release(mine)
		return ctx.Err()
	}
}

// Trigger schedules fn to run after the quiet period unless another
// Trigger or Wait supersedes it first.
func (d *Debouncer) Trigger(fn func()) {
	mine := d.supersede()
	go func() {
		t := time.NewTimer(d.delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-mine:
			return
		}
		d.mu.Lock()
		if d.pending != mine {
			d.mu.Unlock()
			return
		}
		d.pending = nil
		d.mu.Unlock()
		fn()
	}()
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		close(d.pending)
		d.pending = nil
	}
}

func (d *Debouncer) supersede() chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending != nil {
		close(d.pending)
	}
	d.pending = make(chan struct{})
	return d.pending
}

func (d *Debouncer) release(mine chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == mine {
		d.pending = nil
	}
}
