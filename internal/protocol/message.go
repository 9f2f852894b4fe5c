package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter separates the command name from its arguments.
const Delimiter = ";"

// Reserved commands understood by every agent.
const (
	CmdIsLaunched  = "isLaunched"
	CmdSetTestName = "setTestName"
	CmdStop        = "stop"
)

// ErrInvalidArgument is returned when an argument would break the framing.
var ErrInvalidArgument = errors.New("argument contains delimiter or line break")

// Message is a single command line without its terminating newline.
type Message string

// NewMessage joins a command name and its arguments with the delimiter.
func NewMessage(name string, args ...string) (Message, error) {
	if name == "" || strings.ContainsAny(name, Delimiter+"\r\n") {
		return "", fmt.Errorf("command name %q: %w", name, ErrInvalidArgument)
	}
	for i, arg := range args {
		if strings.ContainsAny(arg, Delimiter+"\r\n") {
			return "", fmt.Errorf("argument %d of %s: %w", i, name, ErrInvalidArgument)
		}
	}
	return Message(strings.Join(append([]string{name}, args...), Delimiter)), nil
}

// MustMessage is like NewMessage but panics on invalid input. Use it only
// with constant arguments.
func MustMessage(name string, args ...string) Message {
	m, err := NewMessage(name, args...)
	if err != nil {
		panic(err)
	}
	return m
}

// Name returns the command name part of the message.
func (m Message) Name() string {
	name, _, _ := strings.Cut(string(m), Delimiter)
	return name
}

func (m Message) String() string {
	return string(m)
}
