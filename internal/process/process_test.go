package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autctl/pkg/logging"
)

func fakeExecCommand(command string, args ...string) *exec.Cmd {
	cs := []string{"-test.run=TestHelperProcess", "--", command}
	cs = append(cs, args...)
	return exec.Command(os.Args[0], cs...)
}

// TestHelperProcess is not a real test. It stands in for the AUT.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	mode := "echo"
	if len(args) > 2 {
		mode = args[2]
	}
	switch mode {
	case "echo":
		fmt.Fprintln(os.Stdout, "hello from stdout")
		fmt.Fprintln(os.Stderr, "hello from stderr")
		os.Exit(0)
	case "hang":
		time.Sleep(time.Minute)
		os.Exit(0)
	case "fail":
		os.Exit(3)
	case "pwd":
		wd, _ := os.Getwd()
		fmt.Fprintln(os.Stdout, "cwd="+wd)
		os.Exit(0)
	}
	os.Exit(2)
}

func helperSpec(t *testing.T, mode string) Spec {
	t.Helper()
	return Spec{
		Executable: os.Args[0],
		Path:       "aut",
		Args:       []string{mode},
		Env:        []string{"GO_WANT_HELPER_PROCESS=1"},
	}
}

func useFakeExec(t *testing.T) {
	t.Helper()
	original := execCommand
	execCommand = fakeExecCommand
	t.Cleanup(func() { execCommand = original })
}

func TestLaunch_MissingExecutable(t *testing.T) {
	useFakeExec(t)
	spec := helperSpec(t, "echo")
	spec.Executable = filepath.Join(t.TempDir(), "does-not-exist")

	h, err := NewLauncher().Launch(spec)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, ErrExecutableNotFound)
}

func TestLaunch_DrainsOutputIntoLog(t *testing.T) {
	useFakeExec(t)
	entries := logging.InitForCapture(logging.LevelDebug)
	defer logging.StopCapture()

	h, err := NewLauncher().Launch(helperSpec(t, "echo"))
	require.NoError(t, err)
	assert.Positive(t, h.PID())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))
	assert.True(t, h.Exited())

	var sawOut, sawErr bool
	deadline := time.After(5 * time.Second)
	for !(sawOut && sawErr) {
		select {
		case e := <-entries:
			if e.Subsystem != autSubsystem {
				continue
			}
			if strings.Contains(e.Message, "hello from stdout") {
				sawOut = true
				assert.Equal(t, logging.LevelInfo, e.Level)
			}
			if strings.Contains(e.Message, "hello from stderr") {
				sawErr = true
				assert.Equal(t, logging.LevelError, e.Level)
			}
		case <-deadline:
			t.Fatalf("AUT output not logged (stdout=%v stderr=%v)", sawOut, sawErr)
		}
	}
}

func TestLaunch_RunsInSpecDir(t *testing.T) {
	useFakeExec(t)
	entries := logging.InitForCapture(logging.LevelDebug)
	defer logging.StopCapture()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	spec := helperSpec(t, "pwd")
	spec.Dir = dir

	h, err := NewLauncher().Launch(spec)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, h.Wait(ctx))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-entries:
			if e.Subsystem == autSubsystem && strings.HasPrefix(e.Message, "cwd=") {
				assert.Equal(t, "cwd="+dir, e.Message)
				return
			}
		case <-deadline:
			t.Fatal("working directory not reported")
		}
	}
}

func TestLaunch_ExitError(t *testing.T) {
	useFakeExec(t)
	h, err := NewLauncher().Launch(helperSpec(t, "fail"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = h.Wait(ctx)
	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestHandle_Kill(t *testing.T) {
	useFakeExec(t)
	h, err := NewLauncher().Launch(helperSpec(t, "hang"))
	require.NoError(t, err)
	assert.False(t, h.Exited())

	require.NoError(t, h.Kill())
	select {
	case <-h.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("process survived Kill")
	}
	assert.True(t, h.Exited())

	// Killing again is a no-op.
	assert.NoError(t, h.Kill())
}

func TestHandle_WaitHonoursContext(t *testing.T) {
	useFakeExec(t)
	h, err := NewLauncher().Launch(helperSpec(t, "hang"))
	require.NoError(t, err)
	defer h.Kill()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)
}
