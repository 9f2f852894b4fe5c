// Package process spawns the AUT, forwards its output to the log and
// tracks its termination.
package process

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"autctl/pkg/logging"
)

const (
	subsystem    = "Process"
	autSubsystem = "AUT"
)

var (
	ErrExecutableNotFound = errors.New("AUT executable not found")
	ErrInvalidSpec        = errors.New("invalid launch spec")
)

// execCommand is swapped in tests.
var execCommand = exec.Command

// Launcher starts AUT processes.
type Launcher struct{}

// NewLauncher creates a Launcher.
func NewLauncher() *Launcher {
	return &Launcher{}
}

// Launch validates that spec.Executable exists and starts the process in
// its own process group. Output is drained into the log until the process
// closes its end of the pipes.
func (l *Launcher) Launch(spec Spec) (*Handle, error) {
	if spec.Executable == "" {
		return nil, fmt.Errorf("%w: empty path", ErrExecutableNotFound)
	}
	if _, err := os.Stat(spec.Executable); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExecutableNotFound, spec.Executable, err)
	}

	cmd := execCommand(spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)
	cmd.SysProcAttr = sysProcAttr()

	outR, outW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	errR, errW, err := os.Pipe()
	if err != nil {
		outR.Close()
		outW.Close()
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = outW
	cmd.Stderr = errW

	logging.Info(subsystem, "Start AUT: %s", spec)
	startErr := cmd.Start()
	// The child holds its own copies of the write ends.
	outW.Close()
	errW.Close()
	if startErr != nil {
		outR.Close()
		errR.Close()
		return nil, fmt.Errorf("start %s: %w", spec.Path, startErr)
	}

	h := newHandle(cmd)
	logging.Info(subsystem, "AUT started with PID %d", h.PID())

	go drain(outR, logging.LevelInfo)
	go drain(errR, logging.LevelError)

	return h, nil
}

func drain(r io.ReadCloser, level logging.LogLevel) {
	defer r.Close()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if level == logging.LevelError {
			logging.Error(autSubsystem, nil, "%s", scanner.Text())
			continue
		}
		logging.Info(autSubsystem, "%s", scanner.Text())
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		logging.Debug(subsystem, "Output drain stopped: %v", err)
	}
}
