package analyzer

import (
	"context"
	"sync/atomic"
)

// ProgressFunc is called after each unit of work: a file loaded or a detector finished.
type ProgressFunc func(current, total int, item string)

// Tracker counts completed work items. It is safe for concurrent use.
type Tracker struct {
	total    atomic.Int32
	current  atomic.Int32
	failed   atomic.Int32
	callback ProgressFunc
}

// NewTracker creates a tracker reporting to callback, which may be nil.
func NewTracker(callback ProgressFunc) *Tracker {
	return &Tracker{callback: callback}
}

// Add grows the expected total by n.
func (t *Tracker) Add(n int) {
	t.total.Add(int32(n))
}

// Tick marks item as done.
func (t *Tracker) Tick(item string) {
	current := int(t.current.Add(1))
	if t.callback != nil {
		t.callback(current, int(t.total.Load()), item)
	}
}

// Fail marks item as done but unsuccessful.
func (t *Tracker) Fail(item string) {
	t.failed.Add(1)
	t.Tick(item)
}

// Current returns the number of completed items.
func (t *Tracker) Current() int { return int(t.current.Load()) }

// Total returns the expected number of items.
func (t *Tracker) Total() int { return int(t.total.Load()) }

// Failed returns how many completed items failed.
func (t *Tracker) Failed() int { return int(t.failed.Load()) }

type trackerKey struct{}

// WithTracker returns a context that carries a progress tracker.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext extracts the progress tracker from the context, or nil.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
