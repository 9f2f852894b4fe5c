// Package fixture is the test-facing facade over the lifecycle controller:
// element-key resolution, timed agent commands and workspace file
// operations.
package fixture

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/magiconair/properties"

	"autctl/internal/lifecycle"
	"autctl/internal/protocol"
	"autctl/internal/workspace"
	"autctl/pkg/logging"
)

const subsystem = "Fixture"

// buttonPollInterval is the pause between isButtonEnabled checks.
var buttonPollInterval = 100 * time.Millisecond

// Fixture drives one AUT on behalf of a test.
type Fixture struct {
	ctrl    *lifecycle.Controller
	locator Locator
}

// New creates a fixture around ctrl. A nil locator resolves every key to
// itself.
func New(ctrl *lifecycle.Controller, locator Locator) *Fixture {
	if locator == nil {
		locator = ElementList{}
	}
	return &Fixture{ctrl: ctrl, locator: locator}
}

// SetElementList replaces the locator.
func (f *Fixture) SetElementList(l Locator) {
	if l == nil {
		l = ElementList{}
	}
	f.locator = l
}

// Controller returns the underlying lifecycle controller.
func (f *Fixture) Controller() *lifecycle.Controller {
	return f.ctrl
}

// Resolve returns the locator for key, or key itself when the element list
// does not know it.
func (f *Fixture) Resolve(key string) string {
	if v, ok := f.locator.Lookup(key); ok {
		return v
	}
	logging.Info(subsystem, "The specified key for the GUI element %q could not be found", key)
	return key
}

// Label formats a call for the timing log, e.g. "clickButton ( ok )".
func Label(name string, args ...string) string {
	return name + " ( " + strings.Join(args, ", ") + " )"
}

// PreInvoke starts timing a call.
func (f *Fixture) PreInvoke(label string) {
	f.ctrl.Tracker().Begin(label)
}

// PostInvoke stops timing a call.
func (f *Fixture) PostInvoke(label string) {
	f.ctrl.Tracker().End(label)
}

// StartApplication resets the workspace and launches the AUT.
func (f *Fixture) StartApplication(ctx context.Context, executable string) error {
	return f.ctrl.Start(ctx, executable)
}

// StartApplicationAgain relaunches the AUT keeping the workspace.
func (f *Fixture) StartApplicationAgain(ctx context.Context) error {
	logging.Info(subsystem, "Start the application again, the last workspace is used")
	return f.ctrl.Restart(ctx)
}

// StopApplication shuts the AUT down.
func (f *Fixture) StopApplication(ctx context.Context) error {
	return f.ctrl.Stop(ctx)
}

// TearDown cleans up after a test. It is safe when nothing runs.
func (f *Fixture) TearDown(ctx context.Context) error {
	logging.Info(subsystem, "TearDown to cleanup the AUT")
	return f.ctrl.TearDown(ctx)
}

// Send issues a boolean command with literal arguments.
func (f *Fixture) Send(ctx context.Context, command string, args ...string) (bool, error) {
	msg, err := protocol.NewMessage(command, args...)
	if err != nil {
		return false, err
	}
	label := Label(command, args...)
	f.PreInvoke(label)
	defer f.PostInvoke(label)
	return f.ctrl.Client().Send(ctx, msg)
}

// Call issues a boolean command whose first argument is an element key.
func (f *Fixture) Call(ctx context.Context, command, elementKey string, args ...string) (bool, error) {
	return f.Send(ctx, command, append([]string{f.Resolve(elementKey)}, args...)...)
}

// Text issues a command returning text; the first argument is an element
// key.
func (f *Fixture) Text(ctx context.Context, command, elementKey string, args ...string) (string, error) {
	all := append([]string{f.Resolve(elementKey)}, args...)
	msg, err := protocol.NewMessage(command, all...)
	if err != nil {
		return "", err
	}
	label := Label(command, all...)
	f.PreInvoke(label)
	defer f.PostInvoke(label)
	return f.ctrl.Client().SendText(ctx, msg)
}

func (f *Fixture) ClickButton(ctx context.Context, elementKey string) (bool, error) {
	return f.Call(ctx, "clickButton", elementKey)
}

func (f *Fixture) SetTextByID(ctx context.Context, elementKey, text string) (bool, error) {
	return f.Call(ctx, "setTextById", elementKey, text)
}

func (f *Fixture) ClickMenuByName(ctx context.Context, elementKey string) (bool, error) {
	return f.Call(ctx, "clickMenuByName", elementKey)
}

func (f *Fixture) CompareTextByID(ctx context.Context, elementKey, text string) (bool, error) {
	return f.Call(ctx, "compareTextById", elementKey, text)
}

// WaitForButtonAndClick polls isButtonEnabled until the button is enabled
// or timeout elapses, then clicks it either way.
func (f *Fixture) WaitForButtonAndClick(ctx context.Context, elementKey string, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		enabled, err := f.Call(ctx, "isButtonEnabled", elementKey)
		if err != nil {
			return false, err
		}
		if enabled || !time.Now().Before(deadline) {
			break
		}
		t := time.NewTimer(buttonPollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
		}
	}
	return f.ClickButton(ctx, elementKey)
}

// CheckTextForAllWidgets passes text through unresolved.
func (f *Fixture) CheckTextForAllWidgets(ctx context.Context, text string) (bool, error) {
	return f.Send(ctx, "checkTextForAllWidgets", text)
}

// WaitSeconds pauses for the given number of seconds. It reports true
// unless ctx ends first.
func (f *Fixture) WaitSeconds(ctx context.Context, seconds string) (bool, error) {
	n, err := strconv.ParseFloat(strings.TrimSpace(seconds), 64)
	if err != nil || n < 0 {
		return false, fmt.Errorf("invalid wait time %q", seconds)
	}
	t := time.NewTimer(time.Duration(n * float64(time.Second)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-t.C:
		return true, nil
	}
}

// CheckPropertyValue reports whether key in the properties file at path
// has exactly value.
func (f *Fixture) CheckPropertyValue(path, key, value string) (bool, error) {
	loader := properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	p, err := loader.LoadFile(path)
	if err != nil {
		return false, err
	}
	got, ok := p.Get(key)
	found := ok && got == value
	logging.Info(subsystem, "Property search in %s with key %s and value %s is: %t", path, key, value, found)
	return found, nil
}

// CheckTextInCodeLine reports whether line (from 1) of the
// workspace-relative file contains text.
func (f *Fixture) CheckTextInCodeLine(relPath, text string, line int) (bool, error) {
	got, err := workspace.Line(f.ctrl.WorkspacePath(), relPath, line)
	if err != nil {
		return false, err
	}
	return strings.Contains(got, text), nil
}

// CheckNotTextInCodeLine is the negation of CheckTextInCodeLine. Read
// failures are still returned as errors.
func (f *Fixture) CheckNotTextInCodeLine(relPath, text string, line int) (bool, error) {
	found, err := f.CheckTextInCodeLine(relPath, text, line)
	if err != nil {
		return false, err
	}
	return !found, nil
}

// CopyInWorkspace copies a workspace-relative file or directory.
func (f *Fixture) CopyInWorkspace(relSource, relTarget string) error {
	return workspace.CopyIn(f.ctrl.WorkspacePath(), relSource, relTarget)
}

// DeleteInWorkspace removes a workspace-relative path.
func (f *Fixture) DeleteInWorkspace(relTarget string) error {
	return workspace.Remove(f.ctrl.WorkspacePath(), relTarget)
}

// CreateFileInWorkspace writes a workspace-relative file.
func (f *Fixture) CreateFileInWorkspace(relTarget, content string) error {
	return workspace.WriteFile(f.ctrl.WorkspacePath(), relTarget, content)
}
