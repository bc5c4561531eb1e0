package journal

import (
	"sync"
	"time"

	"github.com/cortexuvula/lfgbot/internal/lfg"
)

// Filter narrows Entries. Zero values match everything.
type Filter struct {
	ContextID string
	Kind      lfg.EventKind
	Since     time.Time
}

func (f Filter) match(ev lfg.Event) bool {
	if f.ContextID != "" && ev.ContextID != f.ContextID {
		return false
	}
	if f.Kind != "" && ev.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && ev.Time.Before(f.Since) {
		return false
	}
	return true
}

// Journal is a thread-safe circular buffer of recent dispatcher events,
// backing the admin event history.
type Journal struct {
	mu      sync.RWMutex
	entries []lfg.Event
	head    int  // next write position
	full    bool // whether we've wrapped around
	cap     int
}

// New creates a journal holding at most capacity events.
func New(capacity int) *Journal {
	if capacity < 1 {
		capacity = 1
	}
	return &Journal{
		entries: make([]lfg.Event, capacity),
		cap:     capacity,
	}
}

// Observe appends ev, overwriting the oldest entry if full. It satisfies
// lfg.Observer.
func (j *Journal) Observe(ev lfg.Event) {
	j.mu.Lock()
	j.entries[j.head] = ev
	j.head = (j.head + 1) % j.cap
	if j.head == 0 {
		j.full = true
	}
	j.mu.Unlock()
}

// Entries returns up to limit events matching f, newest first.
func (j *Journal) Entries(limit int, f Filter) []lfg.Event {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := j.len()
	result := make([]lfg.Event, 0, min(n, max(limit, 0)))
	for i := 0; i < n && (limit <= 0 || len(result) < limit); i++ {
		idx := (j.head - 1 - i + j.cap) % j.cap
		if ev := j.entries[idx]; f.match(ev) {
			result = append(result, ev)
		}
	}
	return result
}

// Len returns the number of events currently held.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.len()
}

func (j *Journal) len() int {
	if j.full {
		return j.cap
	}
	return j.head
}

// Cap returns the journal capacity.
func (j *Journal) Cap() int {
	return j.cap
}
