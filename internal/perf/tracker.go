// Package perf accumulates the time spent in fixture calls of one test and
// reports it when the AUT stops.
package perf

import (
	"sync"
	"time"
)

// Entry is the accumulated time spent under one label.
type Entry struct {
	Label string
	Calls int
	Total time.Duration
}

// Reporter receives the timings of one test.
type Reporter interface {
	Report(testName string, total time.Duration, entries []Entry)
}

// Tracker collects timings. It is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
	open    map[string][]time.Time
	now     func() time.Time
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		entries: make(map[string]*Entry),
		open:    make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Begin marks the start of a call under label. Calls under the same label
// may overlap; each Begin is paired with one End.
func (t *Tracker) Begin(label string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.open[label] = append(t.open[label], t.now())
}

// End adds the time since the most recent unmatched Begin for label. End
// without Begin is ignored.
func (t *Tracker) End(label string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	starts := t.open[label]
	if len(starts) == 0 {
		return 0
	}
	start := starts[len(starts)-1]
	if len(starts) == 1 {
		delete(t.open, label)
	} else {
		t.open[label] = starts[:len(starts)-1]
	}
	d := t.now().Sub(start)
	t.addLocked(label, d)
	return d
}

// Add records d under label.
func (t *Tracker) Add(label string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.addLocked(label, d)
}

func (t *Tracker) addLocked(label string, d time.Duration) {
	e, ok := t.entries[label]
	if !ok {
		e = &Entry{Label: label}
		t.entries[label] = e
		t.order = append(t.order, label)
	}
	e.Calls++
	e.Total += d
}

// Snapshot returns the entries in first-seen order and their sum.
func (t *Tracker) Snapshot() ([]Entry, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.order))
	var total time.Duration
	for _, label := range t.order {
		e := *t.entries[label]
		out = append(out, e)
		total += e.Total
	}
	return out, total
}

// Flush hands the collected timings to r and starts over.
func (t *Tracker) Flush(testName string, r Reporter) {
	entries, total := t.Snapshot()

	t.mu.Lock()
	t.entries = make(map[string]*Entry)
	t.order = nil
	t.open = make(map[string][]time.Time)
	t.mu.Unlock()

	if r != nil {
		r.Report(testName, total, entries)
	}
}
