package process

import (
	"context"
	"os/exec"
	"sync"
)

// Handle tracks one running AUT.
type Handle struct {
	cmd  *exec.Cmd
	pid  int
	done chan struct{}

	mu      sync.Mutex
	waitErr error
}

func newHandle(cmd *exec.Cmd) *Handle {
	h := &Handle{
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go func() {
		err := cmd.Wait()
		h.mu.Lock()
		h.waitErr = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h
}

// PID returns the process id.
func (h *Handle) PID() int {
	return h.pid
}

// Done is closed when the process has terminated.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports without blocking whether the process terminated.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process terminates or ctx ends and returns the
// exit error, if any.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.done:
		h.mu.Lock()
		defer h.mu.Unlock()
		return h.waitErr
	}
}

// Kill terminates the process and its group. Killing an exited process is
// a no-op.
func (h *Handle) Kill() error {
	if h.Exited() {
		return nil
	}
	if err := killGroup(h.cmd.Process); err != nil {
		if h.Exited() {
			return nil
		}
		return err
	}
	return nil
}
