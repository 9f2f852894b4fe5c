package fixture

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autctl/internal/agenttest"
	"autctl/internal/launch"
	"autctl/internal/lifecycle"
	"autctl/internal/protocol"
	"autctl/internal/workspace"
)

func newTestFixture(t *testing.T, list ElementList) (*Fixture, *agenttest.Agent) {
	t.Helper()
	agent, err := agenttest.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = agent.Close() })

	ctrl := lifecycle.New(lifecycle.Options{
		Endpoint:      agent.Endpoint(),
		ReadTimeout:   2 * time.Second,
		WorkspacePath: t.TempDir(),
		Slot:          launch.NewSlot(),
	})
	return New(ctrl, list), agent
}

func TestResolve(t *testing.T) {
	f, _ := newTestFixture(t, ElementList{"okButton": "ID::dialog.ok"})
	assert.Equal(t, "ID::dialog.ok", f.Resolve("okButton"))
	assert.Equal(t, "unknownKey", f.Resolve("unknownKey"))

	f.SetElementList(nil)
	assert.Equal(t, "okButton", f.Resolve("okButton"))
}

func TestCallResolvesLocatorAndTimesTheCall(t *testing.T) {
	f, agent := newTestFixture(t, ElementList{"user": "ID::login.user"})
	ctx := context.Background()

	ok, err := f.SetTextByID(ctx, "user", "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.ClickButton(ctx, "ID::raw")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{"setTextById;ID::login.user;admin", "clickButton;ID::raw"}, agent.Received())

	entries, _ := f.Controller().Tracker().Snapshot()
	require.Len(t, entries, 2)
	assert.Equal(t, "setTextById ( ID::login.user, admin )", entries[0].Label)
	assert.Equal(t, 1, entries[0].Calls)
}

func TestCallSurfacesProtocolErrors(t *testing.T) {
	f, agent := newTestFixture(t, nil)
	agent.Handle("clickButton", agenttest.Reply("ERROR widget not found"))

	ok, err := f.ClickButton(context.Background(), "missing")
	assert.False(t, ok)
	assert.True(t, protocol.IsProtocolError(err))
}

func TestSendRejectsDelimiter(t *testing.T) {
	f, agent := newTestFixture(t, nil)
	_, err := f.CheckTextForAllWidgets(context.Background(), "a;b")
	assert.ErrorIs(t, err, protocol.ErrInvalidArgument)
	assert.Empty(t, agent.Received())
}

func TestText(t *testing.T) {
	f, agent := newTestFixture(t, ElementList{"title": "ID::title"})
	agent.Handle("getTextById", agenttest.Reply("Welcome"))

	text, err := f.Text(context.Background(), "getTextById", "title")
	require.NoError(t, err)
	assert.Equal(t, "Welcome", text)
	assert.Equal(t, []string{"getTextById;ID::title"}, agent.Received())
}

func TestWaitSeconds(t *testing.T) {
	f, _ := newTestFixture(t, nil)

	ok, err := f.WaitSeconds(context.Background(), "0")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.WaitSeconds(context.Background(), "soon")
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	ok, err = f.WaitSeconds(ctx, "60")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTearDownWhileIdle(t *testing.T) {
	f, agent := newTestFixture(t, nil)
	require.NoError(t, f.TearDown(context.Background()))
	assert.Empty(t, agent.Received())
	assert.ErrorIs(t, f.StartApplicationAgain(context.Background()), lifecycle.ErrNoPreviousLaunch)
}

func TestCheckPropertyValue(t *testing.T) {
	f, _ := newTestFixture(t, nil)
	path := filepath.Join(t.TempDir(), "settings.properties")
	require.NoError(t, os.WriteFile(path, []byte("project.name=demo\n"), 0o644))

	found, err := f.CheckPropertyValue(path, "project.name", "demo")
	require.NoError(t, err)
	assert.True(t, found)

	found, err = f.CheckPropertyValue(path, "project.name", "other")
	require.NoError(t, err)
	assert.False(t, found)

	found, err = f.CheckPropertyValue(path, "missing", "demo")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWorkspaceHelpers(t *testing.T) {
	f, _ := newTestFixture(t, nil)
	ws := f.Controller().WorkspacePath()

	require.NoError(t, f.CreateFileInWorkspace("demo/a.txt", "hello"))
	require.NoError(t, f.CopyInWorkspace("demo", "copy"))
	got, err := os.ReadFile(filepath.Join(ws, "copy", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	require.NoError(t, f.DeleteInWorkspace("demo"))
	assert.NoDirExists(t, filepath.Join(ws, "demo"))
}

func TestLoadElementList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "elements.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loginButton: ID::login.ok\nuserField: ID::login.user\n"), 0o644))

	list, err := LoadElementList(path)
	require.NoError(t, err)
	v, ok := list.Lookup("loginButton")
	assert.True(t, ok)
	assert.Equal(t, "ID::login.ok", v)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	list, err = LoadElementList(empty)
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = LoadElementList(filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestWaitForButtonAndClick(t *testing.T) {
	old := buttonPollInterval
	buttonPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { buttonPollInterval = old })

	f, agent := newTestFixture(t, ElementList{"save": "ID::save"})
	var checks atomic.Int32
	agent.Handle("isButtonEnabled", func(string) string {
		if checks.Add(1) < 3 {
			return "false"
		}
		return "true"
	})

	ok, err := f.WaitForButtonAndClick(context.Background(), "save", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(3), checks.Load())
	assert.Equal(t, []string{
		"isButtonEnabled;ID::save",
		"isButtonEnabled;ID::save",
		"isButtonEnabled;ID::save",
		"clickButton;ID::save",
	}, agent.Received())
}

func TestWaitForButtonAndClickClicksAfterTimeout(t *testing.T) {
	old := buttonPollInterval
	buttonPollInterval = 5 * time.Millisecond
	t.Cleanup(func() { buttonPollInterval = old })

	f, agent := newTestFixture(t, nil)
	agent.Handle("isButtonEnabled", agenttest.Reply("false"))
	agent.Handle("clickButton", agenttest.Reply("false"))

	start := time.Now()
	ok, err := f.WaitForButtonAndClick(context.Background(), "ID::disabled", 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	received := agent.Received()
	require.NotEmpty(t, received)
	assert.Equal(t, "clickButton;ID::disabled", received[len(received)-1])
}

func TestCheckTextInCodeLine(t *testing.T) {
	f, _ := newTestFixture(t, nil)
	require.NoError(t, f.CreateFileInWorkspace("demo/FitNesseRoot/LoginTest/content.txt", "!|script|\n|click|okButton|\n"))
	rel := "demo/FitNesseRoot/LoginTest/content.txt"

	found, err := f.CheckTextInCodeLine(rel, "okButton", 2)
	require.NoError(t, err)
	assert.True(t, found)

	notFound, err := f.CheckNotTextInCodeLine(rel, "okButton", 1)
	require.NoError(t, err)
	assert.True(t, notFound)

	_, err = f.CheckTextInCodeLine(rel, "x", 0)
	assert.ErrorIs(t, err, workspace.ErrNoSuchLine)
	_, err = f.CheckNotTextInCodeLine(rel, "x", 3)
	assert.ErrorIs(t, err, workspace.ErrNoSuchLine)
	_, err = f.CheckTextInCodeLine("../outside.txt", "x", 1)
	assert.ErrorIs(t, err, workspace.ErrPathEscapes)
}
