package lifecycle

import (
	"errors"

	"autctl/internal/process"
)

// State is the lifecycle state of one controller.
type State string

const (
	StateIdle     State = "Idle"
	StateStarting State = "Starting"
	StateReady    State = "Ready"
	StateStopping State = "Stopping"
)

// StateChangeCallback is invoked after every state transition.
type StateChangeCallback func(launchID string, from, to State)

var (
	ErrLaunchFailure    = errors.New("AUT launch failed")
	ErrLaunchTimeout    = errors.New("AUT did not become ready")
	ErrNoPreviousLaunch = errors.New("no previous launch to restart")
	ErrNotIdle          = errors.New("controller is not idle")
)

// Preparer resets the workspace before a launch.
type Preparer interface {
	Prepare(workspacePath string) error
}

// Injector derives the AUT configuration directory.
type Injector interface {
	Inject(templatePath, agentBundlePath string) (string, error)
	Cleanup() error
}

// Process is a running AUT.
type Process interface {
	PID() int
	Exited() bool
	Kill() error
}

// Launcher spawns the AUT.
type Launcher interface {
	Launch(spec process.Spec) (Process, error)
}

// ProcessLauncher adapts *process.Launcher to Launcher.
type ProcessLauncher struct {
	L *process.Launcher
}

func (p ProcessLauncher) Launch(spec process.Spec) (Process, error) {
	h, err := p.L.Launch(spec)
	if err != nil {
		return nil, err
	}
	return h, nil
}
