// Package budget tracks per-source API call budgets with fixed windows.
// One Tracker is constructed per process and shared by every concurrent
// pipeline: the budget belongs to the external source, not to any one
// target. Budgets are advisory and reset on restart.
package budget

import (
	"sync"
	"time"
)

// SourceLimit configures one source's call budget.
type SourceLimit struct {
	MaxCallsPerWindow int           `json:"max_calls_per_window" yaml:"max_calls_per_window" mapstructure:"max_calls_per_window"`
	WindowDuration    time.Duration `json:"window_duration" yaml:"window_duration" mapstructure:"window_duration"`
}

type window struct {
	count   int
	resetAt time.Time
}

// Tracker is a fixed-window call counter per source id. All methods are
// safe for concurrent use; TryAcquire performs check-and-record as one
// atomic unit so concurrent pipelines cannot overrun a budget between the
// check and the call.
type Tracker struct {
	mu      sync.Mutex
	limits  map[string]SourceLimit
	windows map[string]*window
	now     func() time.Time
}

// NewTracker creates a tracker with the given per-source limits. Sources
// without a configured limit are unlimited.
func NewTracker(limits map[string]SourceLimit) *Tracker {
	return &Tracker{
		limits:  limits,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// WithNow fixes the clock for testing.
func (t *Tracker) WithNow(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// CanCall reports whether the source has budget remaining in the current
// window. The window resets lazily on the first check at or past its
// reset time.
func (t *Tracker) CanCall(sourceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canCallLocked(sourceID)
}

// RecordCall counts one call against the source's current window.
func (t *Tracker) RecordCall(sourceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recordLocked(sourceID)
}

// TryAcquire atomically checks budget and, when available, records the
// call. This is the operation pipelines must use: a separate
// CanCall-then-RecordCall sequence races under concurrency.
func (t *Tracker) TryAcquire(sourceID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.canCallLocked(sourceID) {
		return false
	}
	t.recordLocked(sourceID)
	return true
}

func (t *Tracker) canCallLocked(sourceID string) bool {
	limit, ok := t.limits[sourceID]
	if !ok || limit.MaxCallsPerWindow <= 0 {
		return true
	}
	w := t.rollWindow(sourceID, limit)
	return w.count < limit.MaxCallsPerWindow
}

func (t *Tracker) recordLocked(sourceID string) {
	limit, ok := t.limits[sourceID]
	if !ok || limit.MaxCallsPerWindow <= 0 {
		return
	}
	w := t.rollWindow(sourceID, limit)
	w.count++
}

func (t *Tracker) rollWindow(sourceID string, limit SourceLimit) *window {
	now := t.now()
	w, ok := t.windows[sourceID]
	if !ok {
		w = &window{resetAt: now.Add(limit.WindowDuration)}
		t.windows[sourceID] = w
		return w
	}
	if !now.Before(w.resetAt) {
		w.count = 0
		w.resetAt = now.Add(limit.WindowDuration)
	}
	return w
}

// SourceSnapshot describes one source's current window for reporting.
type SourceSnapshot struct {
	SourceID  string    `json:"source_id"`
	Used      int       `json:"used"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Snapshot returns the current state of every configured source budget.
func (t *Tracker) Snapshot() []SourceSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]SourceSnapshot, 0, len(t.limits))
	for sourceID, limit := range t.limits {
		if limit.MaxCallsPerWindow <= 0 {
			continue
		}
		w := t.rollWindow(sourceID, limit)
		out = append(out, SourceSnapshot{
			SourceID:  sourceID,
			Used:      w.count,
			Limit:     limit.MaxCallsPerWindow,
			Remaining: limit.MaxCallsPerWindow - w.count,
			ResetAt:   w.resetAt,
		})
	}
	return out
}
