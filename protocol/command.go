// Package protocol implements the line-oriented, `:`-delimited text command
// grammar shared by the firmware UDP link and the operator TCP/WebSocket
// link, plus the thread-safe inbound queues and the transports themselves.
package protocol

import "strings"

// Command is a parsed wire message: a name and an ordered list of string
// parameters.
type Command struct {
	Name       string
	Parameters []string
}

// IsValid reports whether text parses to a command with at least one
// non-empty segment.
func IsValid(text string) bool {
	for _, segment := range strings.Split(text, ":") {
		if segment != "" {
			return true
		}
	}
	return false
}

// Parse splits text on ':' into a Command. The caller should check
// IsValid first; Parse on an invalid string returns a Command with an
// empty Name.
func Parse(text string) Command {
	segments := strings.Split(text, ":")
	if len(segments) == 0 {
		return Command{}
	}
	return Command{Name: segments[0], Parameters: segments[1:]}
}

// String renders a Command back to wire form, used when building outbound
// messages from structured data (e.g. the speeds: message the robot tick
// emits every tick).
func (c Command) String() string {
	if len(c.Parameters) == 0 {
		return c.Name
	}
	return c.Name + ":" + strings.Join(c.Parameters, ":")
}
