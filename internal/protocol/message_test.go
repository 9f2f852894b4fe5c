package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage(t *testing.T) {
	m, err := NewMessage("setTextById", "new.test.page.name", "MyFirstTest")
	require.NoError(t, err)
	assert.Equal(t, Message("setTextById;new.test.page.name;MyFirstTest"), m)
	assert.Equal(t, "setTextById", m.Name())

	m, err = NewMessage(CmdIsLaunched)
	require.NoError(t, err)
	assert.Equal(t, Message("isLaunched"), m)
	assert.Equal(t, CmdIsLaunched, m.Name())
}

func TestNewMessage_RejectsFramingCharacters(t *testing.T) {
	for _, tc := range []struct {
		name string
		args []string
	}{
		{"clickButton", []string{"a;b"}},
		{"clickButton", []string{"line\nbreak"}},
		{"click;Button", nil},
		{"", nil},
	} {
		_, err := NewMessage(tc.name, tc.args...)
		assert.ErrorIs(t, err, ErrInvalidArgument, "name=%q args=%q", tc.name, tc.args)
	}
}

func TestMustMessagePanics(t *testing.T) {
	assert.Panics(t, func() { MustMessage("stop", "x;y") })
	assert.Equal(t, Message("setTestName;Login"), MustMessage(CmdSetTestName, "Login"))
}

func TestClassify(t *testing.T) {
	msg := Message("clickButton;ok")

	tests := []struct {
		raw  string
		want bool
	}{
		{"true", true},
		{"truefoo", true},
		{"true\n", true},
		{"false", false},
		{"", false},
		{"True", false},
		{" true", false},
	}
	for _, tt := range tests {
		r, err := Classify(msg, tt.raw)
		require.NoError(t, err, "raw %q", tt.raw)
		assert.Equal(t, tt.want, r.Bool(), "raw %q", tt.raw)
	}
}

func TestClassify_ErrorMarker(t *testing.T) {
	msg := Message("clickButton;ID::missing")
	r, err := Classify(msg, "ERROR invalid locator")
	require.Error(t, err)

	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, msg, pe.Message)
	assert.Equal(t, "ERROR invalid locator", pe.Detail)
	assert.True(t, r.IsError())
	assert.Contains(t, err.Error(), "clickButton;ID::missing")

	// The marker also counts in the middle of a payload.
	_, err = Classify(msg, "true but ERROR later")
	assert.True(t, IsProtocolError(err))

	// Without the trailing space it is ordinary text.
	_, err = Classify(msg, "ERRORS: none")
	assert.NoError(t, err)
}
