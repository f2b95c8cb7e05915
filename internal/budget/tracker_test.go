package budget

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() map[string]SourceLimit {
	return map[string]SourceLimit{
		"google_places": {MaxCallsPerWindow: 3, WindowDuration: time.Hour},
		"web_search":    {MaxCallsPerWindow: 1, WindowDuration: time.Hour},
	}
}

func TestTracker_BudgetExhaustion(t *testing.T) {
	tr := NewTracker(testLimits())

	for i := 0; i < 3; i++ {
		require.True(t, tr.CanCall("google_places"), "call %d should be allowed", i)
		tr.RecordCall("google_places")
	}
	assert.False(t, tr.CanCall("google_places"))
}

func TestTracker_UnconfiguredSourceUnlimited(t *testing.T) {
	tr := NewTracker(testLimits())
	for i := 0; i < 100; i++ {
		assert.True(t, tr.TryAcquire("state_registry"))
	}
}

func TestTracker_WindowReset(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(testLimits()).WithNow(func() time.Time { return now })

	require.True(t, tr.TryAcquire("web_search"))
	assert.False(t, tr.CanCall("web_search"))

	// One second before reset: still exhausted.
	now = now.Add(time.Hour - time.Second)
	assert.False(t, tr.CanCall("web_search"))

	// At reset time the counter rolls over.
	now = now.Add(time.Second)
	assert.True(t, tr.CanCall("web_search"))
	require.True(t, tr.TryAcquire("web_search"))
	assert.False(t, tr.CanCall("web_search"))
}

func TestTracker_TryAcquireAtomicUnderConcurrency(t *testing.T) {
	tr := NewTracker(map[string]SourceLimit{
		"web_search": {MaxCallsPerWindow: 1, WindowDuration: time.Hour},
	})

	const goroutines = 32
	var wg sync.WaitGroup
	granted := make(chan struct{}, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.TryAcquire("web_search") {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	assert.Equal(t, 1, count, "exactly one acquisition within the window")
}

func TestTracker_Snapshot(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	tr := NewTracker(testLimits()).WithNow(func() time.Time { return now })

	tr.RecordCall("google_places")
	tr.RecordCall("google_places")

	snaps := tr.Snapshot()
	require.Len(t, snaps, 2)

	byID := make(map[string]SourceSnapshot)
	for _, s := range snaps {
		byID[s.SourceID] = s
	}
	assert.Equal(t, 2, byID["google_places"].Used)
	assert.Equal(t, 1, byID["google_places"].Remaining)
	assert.Equal(t, now.Add(time.Hour), byID["google_places"].ResetAt)
	assert.Equal(t, 0, byID["web_search"].Used)
}
