package analyzer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_TickAndFail(t *testing.T) {
	type call struct {
		current, total int
		item           string
	}
	var (
		mu    sync.Mutex
		calls []call
	)
	tracker := NewTracker(func(current, total int, item string) {
		mu.Lock()
		calls = append(calls, call{current, total, item})
		mu.Unlock()
	})

	tracker.Add(3)
	tracker.Tick("exact-clones")
	tracker.Fail("near-clones")
	tracker.Tick("cycles")

	assert.Equal(t, 3, tracker.Total())
	assert.Equal(t, 3, tracker.Current())
	assert.Equal(t, 1, tracker.Failed())
	require.Len(t, calls, 3)
	assert.Equal(t, call{1, 3, "exact-clones"}, calls[0])
	assert.Equal(t, call{3, 3, "cycles"}, calls[2])
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker(nil)
	tracker.Add(100)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Tick("f.py")
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, tracker.Current())
}

func TestTrackerContext(t *testing.T) {
	assert.Nil(t, TrackerFromContext(context.Background()))

	tracker := NewTracker(nil)
	ctx := WithTracker(context.Background(), tracker)
	assert.Same(t, tracker, TrackerFromContext(ctx))
}
