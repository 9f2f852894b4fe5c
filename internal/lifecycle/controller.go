// Package lifecycle drives one application under test through
// Idle → Starting → Ready → Stopping → Idle.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"autctl/internal/metrics"
	"autctl/internal/perf"
	"autctl/internal/process"
	"autctl/internal/protocol"
	"autctl/internal/readiness"
	"autctl/internal/workspace"
	"autctl/pkg/logging"
)

const subsystem = "Lifecycle"

const diagnosticLines = 50

// Controller owns one AUT process and the agent client talking to it.
type Controller struct {
	opts    Options
	client  *protocol.Client
	poller  *readiness.Poller
	tracker *perf.Tracker

	mu          sync.Mutex
	state       State
	proc        Process
	lastSpec    *process.Spec
	testName    string
	launchID    string
	cancelStart context.CancelFunc
	transition  chan struct{}
}

// New creates an idle controller.
func New(opts Options) *Controller {
	opts = opts.withDefaults()

	clientOpts := []protocol.Option{protocol.WithReadTimeout(opts.ReadTimeout)}
	if opts.Dialer != nil {
		clientOpts = append(clientOpts, protocol.WithDialer(opts.Dialer))
	}
	client := protocol.NewClient(opts.Endpoint, clientOpts...)

	return &Controller{
		opts:    opts,
		client:  client,
		tracker: perf.NewTracker(),
		poller: readiness.NewPoller(client,
			readiness.WithMaxAttempts(opts.ReadinessAttempts),
			readiness.WithInterval(opts.ReadinessInterval),
		),
		state:    StateIdle,
		testName: opts.TestName,
	}
}

// Start prepares the workspace, injects the agent into the AUT
// configuration, launches executable and waits until the agent answers.
// Failures leave the controller Idle and wrap ErrLaunchFailure or
// ErrLaunchTimeout.
func (c *Controller) Start(ctx context.Context, executable string) error {
	ctx, done, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := c.opts.Slot.Acquire(ctx, c); err != nil {
		return c.fail(metrics.OutcomeFailure, fmt.Errorf("%w: waiting for launch slot: %w", ErrLaunchFailure, err))
	}

	spec, err := c.prepare(executable)
	if err != nil {
		return c.fail(metrics.OutcomeFailure, fmt.Errorf("%w: %w", ErrLaunchFailure, err))
	}
	return c.launch(ctx, spec)
}

// Restart launches the previous spec again without resetting the
// workspace or rewriting the configuration.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	spec := c.lastSpec
	c.mu.Unlock()
	if spec == nil {
		return ErrNoPreviousLaunch
	}

	ctx, done, err := c.begin(ctx)
	if err != nil {
		return err
	}
	defer done()

	if err := c.opts.Slot.Acquire(ctx, c); err != nil {
		return c.fail(metrics.OutcomeFailure, fmt.Errorf("%w: waiting for launch slot: %w", ErrLaunchFailure, err))
	}
	logging.Info(subsystem, "Restarting AUT %s", spec.Executable)
	return c.launch(ctx, *spec)
}

// begin moves Idle → Starting and returns a context that a concurrent Stop
// can cancel.
func (c *Controller) begin(ctx context.Context) (context.Context, func(), error) {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotIdle, state)
	}
	startCtx, cancel := context.WithCancel(ctx)
	transition := make(chan struct{})
	c.state = StateStarting
	c.launchID = uuid.NewString()
	c.cancelStart = cancel
	c.transition = transition
	launchID := c.launchID
	c.mu.Unlock()

	c.notify(launchID, StateIdle, StateStarting)

	done := func() {
		cancel()
		c.mu.Lock()
		c.cancelStart = nil
		c.mu.Unlock()
		close(transition)
	}
	return startCtx, done, nil
}

func (c *Controller) prepare(executable string) (process.Spec, error) {
	if err := c.opts.Preparer.Prepare(c.opts.WorkspacePath); err != nil {
		return process.Spec{}, fmt.Errorf("prepare workspace: %w", err)
	}
	if _, err := os.Stat(executable); err != nil {
		return process.Spec{}, fmt.Errorf("%w: %s", process.ErrExecutableNotFound, executable)
	}

	template, err := c.opts.LookupTemplate(executable)
	if err != nil {
		return process.Spec{}, err
	}
	configDir, err := c.opts.Injector.Inject(template, c.opts.AgentBundlePath)
	if err != nil {
		return process.Spec{}, fmt.Errorf("inject agent configuration: %w", err)
	}

	spec, err := process.BuildSpec(process.SpecOptions{
		Executable:       executable,
		AgentApplication: c.opts.AgentApplication,
		UIApplication:    c.opts.UIApplication,
		Workspace:        c.opts.WorkspacePath,
		Locale:           c.opts.Locale,
		ConfigDir:        configDir,
		Env:              c.opts.Env,
	})
	if err != nil {
		return process.Spec{}, err
	}

	c.mu.Lock()
	c.lastSpec = &spec
	c.mu.Unlock()
	return spec, nil
}

func (c *Controller) launch(ctx context.Context, spec process.Spec) error {
	start := time.Now()

	proc, err := c.opts.Launcher.Launch(spec)
	if err != nil {
		return c.fail(metrics.OutcomeFailure, fmt.Errorf("%w: %w", ErrLaunchFailure, err))
	}
	c.mu.Lock()
	c.proc = proc
	c.mu.Unlock()
	metrics.SetRunning(true)

	ready, err := c.poller.WaitUntilReady(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return c.fail(metrics.OutcomeTimeout, fmt.Errorf("%w: %w", ErrLaunchTimeout, err))
	case err != nil:
		return c.fail(metrics.OutcomeFailure, fmt.Errorf("%w: interrupted while waiting for agent: %w", ErrLaunchFailure, err))
	case !ready:
		return c.fail(metrics.OutcomeTimeout, fmt.Errorf("%w: no answer from %s after %d attempts",
			ErrLaunchTimeout, c.opts.Endpoint.Address(), c.opts.ReadinessAttempts))
	}

	if name := c.TestName(); name != "" {
		msg, err := protocol.NewMessage(protocol.CmdSetTestName, name)
		if err != nil {
			logging.Warn(subsystem, "Not sending test name %q: %v", name, err)
		} else if _, err := c.client.Send(ctx, msg); err != nil {
			logging.Warn(subsystem, "Agent rejected test name %q: %v", name, err)
		}
	}

	if err := sleepContext(ctx, c.opts.SettleDelay); err != nil {
		return c.fail(metrics.OutcomeFailure, fmt.Errorf("%w: %w", ErrLaunchFailure, err))
	}

	c.mu.Lock()
	c.state = StateReady
	launchID := c.launchID
	c.mu.Unlock()
	c.notify(launchID, StateStarting, StateReady)

	metrics.RecordLaunch(metrics.OutcomeReady)
	logging.Info(subsystem, "AUT ready (launch %s, PID %d) after %s", launchID, proc.PID(), time.Since(start).Round(time.Millisecond))
	return nil
}

// fail undoes a partial launch: kills the process, returns to Idle and
// releases the slot.
func (c *Controller) fail(outcome string, err error) error {
	c.mu.Lock()
	proc := c.proc
	c.proc = nil
	old := c.state
	c.state = StateIdle
	launchID := c.launchID
	c.mu.Unlock()

	if proc != nil {
		if kerr := proc.Kill(); kerr != nil {
			logging.Error(subsystem, kerr, "Failed to kill AUT PID %d", proc.PID())
		}
		metrics.SetRunning(false)
	}
	c.opts.Slot.Release(c)
	metrics.RecordLaunch(outcome)
	logging.Error(subsystem, err, "Launch %s failed", launchID)

	c.notify(launchID, old, StateIdle)
	return err
}

// Stop asks the agent to shut the AUT down, waits for the process to exit,
// reports the collected timings and releases the slot. Stopping an idle
// controller only releases the slot. A Start in progress is cancelled.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateIdle:
		c.mu.Unlock()
		c.opts.Slot.Release(c)
		return nil
	case StateStarting, StateStopping:
		cancel, wait := c.cancelStart, c.transition
		if c.state == StateStarting && cancel != nil {
			cancel()
		}
		c.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		return c.Stop(ctx)
	}

	proc := c.proc
	launchID := c.launchID
	transition := make(chan struct{})
	c.state = StateStopping
	c.transition = transition
	c.mu.Unlock()
	defer close(transition)
	c.notify(launchID, StateReady, StateStopping)

	logging.Info(subsystem, "Stopping AUT (launch %s)", launchID)
	if _, err := c.client.Send(ctx, protocol.MustMessage(protocol.CmdStop)); err != nil {
		logging.Warn(subsystem, "Agent rejected stop: %v", err)
	}

	err := c.awaitExit(ctx, proc)

	c.tracker.Flush(c.TestName(), c.opts.Reporter)

	if proc != nil {
		if kerr := proc.Kill(); kerr != nil {
			logging.Error(subsystem, kerr, "Failed to kill leftover AUT PID %d", proc.PID())
		}
	}

	c.mu.Lock()
	c.proc = nil
	c.state = StateIdle
	c.mu.Unlock()
	metrics.SetRunning(false)
	c.opts.Slot.Release(c)
	c.notify(launchID, StateStopping, StateIdle)

	if err != nil {
		return fmt.Errorf("waiting for AUT to exit: %w", err)
	}
	logging.Info(subsystem, "AUT stopped (launch %s)", launchID)
	return nil
}

func (c *Controller) awaitExit(ctx context.Context, proc Process) error {
	if proc == nil {
		return nil
	}
	for !proc.Exited() {
		logging.Debug(subsystem, "Waiting for AUT PID %d to exit", proc.PID())
		if err := sleepContext(ctx, c.opts.ExitPollInterval); err != nil {
			return err
		}
	}
	return nil
}

// TearDown is Stop for test cleanup paths. It is safe to call while idle.
func (c *Controller) TearDown(ctx context.Context) error {
	logging.Debug(subsystem, "Tear down in state %s", c.State())
	return c.Stop(ctx)
}

// ForceStop kills the AUT without asking the agent and releases the slot.
// The slot calls it for holders that overstayed the stale timeout.
func (c *Controller) ForceStop(ctx context.Context) error {
	c.mu.Lock()
	state, proc, cancel, launchID := c.state, c.proc, c.cancelStart, c.launchID
	if state == StateStarting && cancel != nil {
		cancel()
	}
	c.mu.Unlock()

	logging.Warn(subsystem, "Force stopping AUT (launch %s, state %s)", launchID, state)

	var err error
	if proc != nil {
		err = proc.Kill()
	}

	if state == StateReady {
		c.mu.Lock()
		moved := c.state == StateReady
		if moved {
			c.state = StateIdle
			c.proc = nil
		}
		c.mu.Unlock()
		if moved {
			metrics.SetRunning(false)
			c.notify(launchID, StateReady, StateIdle)
		}
	}

	c.opts.Slot.Release(c)
	return err
}

// Diagnostics returns the tail of the workspace log.
func (c *Controller) Diagnostics() (string, error) {
	return workspace.LogTail(c.opts.WorkspacePath, diagnosticLines)
}

// Close removes the generated configuration directories.
func (c *Controller) Close() error {
	return c.opts.Injector.Cleanup()
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TestName returns the name sent to the agent on the next launch.
func (c *Controller) TestName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.testName
}

// SetTestName sets the name sent to the agent on the next launch.
func (c *Controller) SetTestName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.testName = name
}

// LaunchID identifies the current or most recent launch.
func (c *Controller) LaunchID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.launchID
}

// WorkspacePath returns the AUT's -data directory.
func (c *Controller) WorkspacePath() string {
	return c.opts.WorkspacePath
}

// Client returns the agent client.
func (c *Controller) Client() *protocol.Client {
	return c.client
}

// Tracker returns the timing tracker flushed on every Stop.
func (c *Controller) Tracker() *perf.Tracker {
	return c.tracker
}

func (c *Controller) notify(launchID string, from, to State) {
	if from == to {
		return
	}
	logging.Debug(subsystem, "Launch %s: %s -> %s", launchID, from, to)
	if c.opts.OnStateChange != nil {
		c.opts.OnStateChange(launchID, from, to)
	}
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
