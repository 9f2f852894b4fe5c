// Package launch serializes AUT launches: at most one application under
// test runs at a time per Slot.
package launch

import (
	"context"
	"errors"
	"sync"
	"time"

	"autctl/internal/metrics"
	"autctl/pkg/logging"
)

const subsystem = "Launch"

const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultStaleAfter   = 10 * time.Second
)

// ErrStaleInstance is logged when a previous holder kept the slot past the
// stale timeout and had to be force-stopped.
var ErrStaleInstance = errors.New("previous AUT instance did not release the launch slot in time")

// Holder is an owner of the slot. ForceStop must terminate the holder's
// process and should release the slot.
type Holder interface {
	ForceStop(ctx context.Context) error
}

// DiagnosticsProvider is implemented by holders that can describe why they
// are stuck, typically with the tail of the AUT log.
type DiagnosticsProvider interface {
	Diagnostics() (string, error)
}

// Slot is the RUNNING/STOPPED flag shared by controllers.
type Slot struct {
	mu       sync.Mutex
	holder   Holder
	released chan struct{}

	pollInterval time.Duration
	staleAfter   time.Duration
}

// Option configures a Slot.
type Option func(*Slot)

// WithPollInterval bounds the time between re-checks while waiting.
// Non-positive values keep the default.
func WithPollInterval(d time.Duration) Option {
	return func(s *Slot) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithStaleAfter sets how long a waiter tolerates a running holder before
// force-stopping it.
func WithStaleAfter(d time.Duration) Option {
	return func(s *Slot) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// NewSlot creates a free slot.
func NewSlot(opts ...Option) *Slot {
	s := &Slot{
		pollInterval: DefaultPollInterval,
		staleAfter:   DefaultStaleAfter,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var defaultSlot = NewSlot()

// Default returns the process-wide slot.
func Default() *Slot {
	return defaultSlot
}

// Configure applies opts to an existing slot. Waiters pick up the new
// timings on their next re-check.
func (s *Slot) Configure(opts ...Option) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, opt := range opts {
		opt(s)
	}
}

// Acquire blocks until the slot is free and marks h as the running holder.
// A holder that keeps the slot longer than the stale timeout is
// force-stopped and the slot is taken over. Acquire returns an error only
// when ctx ends.
func (s *Slot) Acquire(ctx context.Context, h Holder) error {
	waitStart := time.Now()
	for {
		s.mu.Lock()
		if s.holder == nil || s.holder == h {
			s.take(h)
			s.mu.Unlock()
			return nil
		}
		prior, released := s.holder, s.released
		pollInterval, staleAfter := s.pollInterval, s.staleAfter
		s.mu.Unlock()

		if time.Since(waitStart) >= staleAfter {
			if s.takeOverStale(ctx, prior, h, staleAfter) {
				return nil
			}
			waitStart = time.Now()
			continue
		}

		logging.Debug(subsystem, "Waiting for previous AUT to stop")
		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-released:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Release marks the slot free. It does nothing unless h is the holder.
func (s *Slot) Release(h Holder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.holder == nil || s.holder != h {
		return
	}
	s.holder = nil
	close(s.released)
}

// Running reports whether any holder owns the slot.
func (s *Slot) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder != nil
}

// HeldBy reports whether h owns the slot.
func (s *Slot) HeldBy(h Holder) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.holder != nil && s.holder == h
}

// take must be called with mu held.
func (s *Slot) take(h Holder) {
	if s.holder == h {
		return
	}
	s.holder = h
	s.released = make(chan struct{})
}

func (s *Slot) takeOverStale(ctx context.Context, prior, h Holder, staleAfter time.Duration) bool {
	metrics.RecordStaleTakeover()
	logging.Error(subsystem, ErrStaleInstance, "Previous AUT still running after %s, forcing stop", staleAfter)

	if dp, ok := prior.(DiagnosticsProvider); ok {
		if tail, err := dp.Diagnostics(); err != nil {
			logging.Debug(subsystem, "No diagnostics from previous AUT: %v", err)
		} else if tail != "" {
			logging.Warn(subsystem, "Log of previous AUT:\n%s", tail)
		}
	}

	if err := prior.ForceStop(ctx); err != nil {
		logging.Error(subsystem, err, "Force stop of previous AUT failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.holder {
	case nil, prior:
		if s.holder == prior {
			logging.Warn(subsystem, "Previous AUT did not release the slot, taking it over")
			close(s.released)
			s.holder = nil
		}
		s.take(h)
		return true
	default:
		// Another waiter got in first.
		return false
	}
}
