package course

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeletionTracker(t *testing.T) {
	tracker := NewDeletionTracker()

	assert.Equal(t, StateIdle, tracker.State("a"))
	assert.NoError(t, tracker.Begin("a"))
	assert.Equal(t, StateDeleting, tracker.State("a"))
	assert.Equal(t, "deleting", tracker.State("a").String())

	assert.Equal(t, ErrDeleteInProgress, tracker.Begin("a"))
	assert.NoError(t, tracker.Begin("b"), "other ids are independent")

	tracker.End("a")
	assert.Equal(t, StateIdle, tracker.State("a"))
	assert.Equal(t, "idle", tracker.State("a").String())
	assert.NoError(t, tracker.Begin("a"), "an id can be deleted again once released")
}

func TestDeletionTracker_concurrentBegin(t *testing.T) {
	tracker := NewDeletionTracker()

	const n = 50
	var acquired int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if tracker.Begin("a") == nil {
				atomic.AddInt32(&acquired, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.EqualValues(t, 1, acquired)
	assert.Equal(t, StateDeleting, tracker.State("a"))
}
