package launch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHolder struct {
	name        string
	slot        *Slot
	releases    bool
	diagnostics string
	forced      atomic.Int32
	diagCalls   atomic.Int32
}

func (f *fakeHolder) ForceStop(context.Context) error {
	f.forced.Add(1)
	if f.releases {
		f.slot.Release(f)
	}
	return nil
}

type diagnosingHolder struct {
	*fakeHolder
}

func (d diagnosingHolder) ForceStop(context.Context) error {
	d.forced.Add(1)
	if d.releases {
		d.slot.Release(d)
	}
	return nil
}

func (d diagnosingHolder) Diagnostics() (string, error) {
	d.diagCalls.Add(1)
	if d.diagnostics == "" {
		return "", errors.New("no log")
	}
	return d.diagnostics, nil
}

func TestAcquireRelease(t *testing.T) {
	s := NewSlot()
	a := &fakeHolder{name: "a", slot: s}

	require.NoError(t, s.Acquire(context.Background(), a))
	assert.True(t, s.Running())
	assert.True(t, s.HeldBy(a))

	// Re-acquiring by the holder does not block.
	require.NoError(t, s.Acquire(context.Background(), a))

	s.Release(a)
	assert.False(t, s.Running())

	// Idempotent.
	s.Release(a)
	assert.False(t, s.Running())
}

func TestReleaseByNonHolderIsIgnored(t *testing.T) {
	s := NewSlot()
	a := &fakeHolder{name: "a", slot: s}
	b := &fakeHolder{name: "b", slot: s}

	require.NoError(t, s.Acquire(context.Background(), a))
	s.Release(b)
	assert.True(t, s.HeldBy(a))
}

func TestAcquireWaitsForRelease(t *testing.T) {
	s := NewSlot(WithPollInterval(time.Second), WithStaleAfter(time.Minute))
	a := &fakeHolder{name: "a", slot: s}
	b := &fakeHolder{name: "b", slot: s}
	require.NoError(t, s.Acquire(context.Background(), a))

	acquired := make(chan struct{})
	go func() {
		_ = s.Acquire(context.Background(), b)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second holder acquired a running slot")
	case <-time.After(50 * time.Millisecond):
	}

	s.Release(a)

	// The release channel wakes the waiter well before the poll interval.
	select {
	case <-acquired:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("waiter was not woken by release")
	}
	assert.True(t, s.HeldBy(b))
	assert.Zero(t, a.forced.Load())
}

func TestAcquireHonoursContext(t *testing.T) {
	s := NewSlot(WithPollInterval(10*time.Millisecond), WithStaleAfter(time.Minute))
	a := &fakeHolder{name: "a", slot: s}
	require.NoError(t, s.Acquire(context.Background(), a))

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	err := s.Acquire(ctx, &fakeHolder{name: "b", slot: s})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, s.HeldBy(a))
}

func TestStaleHolderIsForceStopped(t *testing.T) {
	s := NewSlot(WithPollInterval(5*time.Millisecond), WithStaleAfter(30*time.Millisecond))
	stale := diagnosingHolder{&fakeHolder{name: "stale", slot: s, releases: true, diagnostics: "!ENTRY org.eclipse.ui"}}
	next := &fakeHolder{name: "next", slot: s}

	require.NoError(t, s.Acquire(context.Background(), stale))

	start := time.Now()
	require.NoError(t, s.Acquire(context.Background(), next))
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, int32(1), stale.forced.Load())
	assert.Equal(t, int32(1), stale.diagCalls.Load())
	assert.True(t, s.HeldBy(next))

	// A late release by the stale instance must not free the new holder.
	s.Release(stale)
	assert.True(t, s.HeldBy(next))
}

func TestStaleHolderThatNeverReleasesIsTakenOver(t *testing.T) {
	s := NewSlot(WithPollInterval(5*time.Millisecond), WithStaleAfter(20*time.Millisecond))
	stuck := &fakeHolder{name: "stuck", slot: s}
	next := &fakeHolder{name: "next", slot: s}

	require.NoError(t, s.Acquire(context.Background(), stuck))
	require.NoError(t, s.Acquire(context.Background(), next))

	assert.Equal(t, int32(1), stuck.forced.Load())
	assert.True(t, s.HeldBy(next))
}

func TestConcurrentHoldersNeverOverlap(t *testing.T) {
	s := NewSlot(WithPollInterval(time.Millisecond), WithStaleAfter(time.Minute))

	var running, maxRunning atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := &fakeHolder{slot: s}
			require.NoError(t, s.Acquire(context.Background(), h))
			n := running.Add(1)
			for {
				m := maxRunning.Load()
				if n <= m || maxRunning.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			running.Add(-1)
			s.Release(h)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxRunning.Load())
	assert.False(t, s.Running())
}

func TestDefaultIsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestConfigureAppliesToExistingSlot(t *testing.T) {
	s := NewSlot()
	s.Configure(WithPollInterval(5*time.Millisecond), WithStaleAfter(20*time.Millisecond))
	stuck := &fakeHolder{name: "stuck", slot: s}
	next := &fakeHolder{name: "next", slot: s}

	require.NoError(t, s.Acquire(context.Background(), stuck))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Acquire(ctx, next))
	assert.Equal(t, int32(1), stuck.forced.Load())
	assert.True(t, s.HeldBy(next))
}
