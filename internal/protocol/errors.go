package protocol

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// ProtocolError is returned when the agent answers with the error marker.
// It means the agent understood the request and rejected it.
type ProtocolError struct {
	Message Message
	Detail  string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("message %q fails with: %s", string(e.Message), strings.TrimSpace(e.Detail))
}

// TransportError wraps a failure to reach or talk to the agent.
type TransportError struct {
	Message Message
	Addr    string
	Op      string
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s for %q: %v", e.Op, e.Addr, string(e.Message), e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsConnectionRefused reports whether err means nothing listens on the
// agent port yet.
func IsConnectionRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

// IsProtocolError reports whether err is, or wraps, a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
