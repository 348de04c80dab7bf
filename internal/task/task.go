package task

import (
	"context"
	"sync"
	"time"
)

// Handle controls a running periodic task.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Every runs fn immediately and then once per interval until fn returns
// false, parent is cancelled or the handle is cancelled. Runs never overlap;
// a slow fn delays the next tick.
func Every(parent context.Context, interval time.Duration, fn func(ctx context.Context) bool) *Handle {
	ctx, cancel := context.WithCancel(parent)
	h := &Handle{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(h.done)
		defer cancel()

		if !fn(ctx) || ctx.Err() != nil {
			return
		}
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if ctx.Err() != nil {
					return
				}
				if !fn(ctx) {
					return
				}
			}
		}
	}()

	return h
}

// Cancel stops the task and waits for the goroutine to exit. Once Cancel
// returns, fn is never invoked again. Safe to call more than once and on nil.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.once.Do(h.cancel)
	<-h.done
}

// Done is closed once the task has stopped for any reason.
func (h *Handle) Done() <-chan struct{} {
	if h == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return h.done
}

// Running reports whether the task is still scheduled.
func (h *Handle) Running() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
