// Package readiness waits for the remote-control agent inside a freshly
// launched AUT to report that the application finished starting.
package readiness

import (
	"context"
	"time"

	"autctl/internal/metrics"
	"autctl/pkg/logging"
)

const subsystem = "Readiness"

const (
	DefaultMaxAttempts = 200
	DefaultInterval    = 200 * time.Millisecond
)

// Prober asks the agent once whether the AUT is launched. A refused
// connection must be reported as (false, nil).
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

// Poller repeatedly probes until the agent answers true or the attempt
// budget is spent.
type Poller struct {
	prober      Prober
	maxAttempts int
	interval    time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// Option configures a Poller.
type Option func(*Poller)

// WithMaxAttempts overrides the number of probes.
func WithMaxAttempts(n int) Option {
	return func(p *Poller) { p.maxAttempts = n }
}

// WithInterval overrides the delay before each probe.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// NewPoller creates a poller using prober.
func NewPoller(prober Prober, opts ...Option) *Poller {
	p := &Poller{
		prober:      prober,
		maxAttempts: DefaultMaxAttempts,
		interval:    DefaultInterval,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WaitUntilReady returns true once a probe succeeds and false when every
// attempt was negative. The error is non-nil only when ctx ends first.
func (p *Poller) WaitUntilReady(ctx context.Context) (bool, error) {
	logging.Info(subsystem, "Waiting for AUT agent (%d attempts, %s interval)", p.maxAttempts, p.interval)
	start := time.Now()

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := p.sleep(ctx, p.interval); err != nil {
			metrics.RecordReadinessProbes(attempt - 1)
			return false, err
		}

		ready, err := p.prober.Probe(ctx)
		if err != nil {
			if ctx.Err() != nil {
				metrics.RecordReadinessProbes(attempt)
				return false, ctx.Err()
			}
			logging.Warn(subsystem, "Probe %d returned an agent error, treating as not ready: %v", attempt, err)
			continue
		}
		if ready {
			metrics.RecordReadinessProbes(attempt)
			logging.Info(subsystem, "AUT ready after %d probes (%s)", attempt, time.Since(start).Round(time.Millisecond))
			return true, nil
		}
		logging.Debug(subsystem, "Waiting for server response (attempt %d)", attempt)
	}

	metrics.RecordReadinessProbes(p.maxAttempts)
	logging.Warn(subsystem, "AUT not ready after %d probes (%s)", p.maxAttempts, time.Since(start).Round(time.Millisecond))
	return false, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
