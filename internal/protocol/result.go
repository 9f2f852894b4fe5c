package protocol

import "strings"

// ErrorMarker flags a response as a rejection by the agent.
const ErrorMarker = "ERROR "

// Result is the raw text an agent sent back before closing the connection.
type Result struct {
	Raw string
}

// IsError reports whether the agent rejected the command.
func (r Result) IsError() bool {
	return strings.Contains(r.Raw, ErrorMarker)
}

// Bool interprets the response as a boolean. Only a case-sensitive "true"
// prefix counts as true.
func (r Result) Bool() bool {
	return strings.HasPrefix(r.Raw, "true")
}

// Text returns the payload for commands whose response is free text.
func (r Result) Text() string {
	return r.Raw
}

// Classify turns a raw response into a Result, or a *ProtocolError when it
// carries the error marker.
func Classify(msg Message, raw string) (Result, error) {
	r := Result{Raw: raw}
	if r.IsError() {
		return r, &ProtocolError{Message: msg, Detail: raw}
	}
	return r, nil
}
