package litra

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrToolUnavailable means the litra executable could not be found.
	// Fatal for the session until the tool is installed.
	ErrToolUnavailable = errors.New("litra: executable not found")

	// ErrNoDevice means the tool ran but reported no attached light.
	// Recoverable: the user may reconnect the device and retry.
	ErrNoDevice = errors.New("litra: no device attached")
)

// ParseError reports status output that did not match the expected shape.
type ParseError struct {
	Output string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("litra: unrecognized status output: %q", e.Output)
}

// InvocationError reports an invocation that ran but exited non-zero.
// Output keeps the tool's raw combined output so unrecognized failures
// stay inspectable by the caller.
type InvocationError struct {
	Args     []string
	ExitCode int
	Output   string
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("litra %s: exit code %d: %s",
		strings.Join(e.Args, " "), e.ExitCode, strings.TrimSpace(e.Output))
}

// classifyFailure maps a non-zero invocation to a typed error. A recognized
// "no device" message takes priority over the generic invocation failure.
func classifyFailure(args []string, res Result) error {
	combined := strings.ToLower(res.Stdout + "\n" + res.Stderr)
	if strings.Contains(combined, "no device") || strings.Contains(combined, "no devices found") {
		return ErrNoDevice
	}
	return &InvocationError{
		Args:     args,
		ExitCode: res.ExitCode,
		Output:   res.Stdout + res.Stderr,
	}
}
