package debug

import (
	"fmt"
	"runtime"
)

// NOTE: assertions guard programming defects only (an unencodable outbound
// message, a non-terminal state passed to finish, a message kind the action
// loop does not know). anything the server can cause is an error, not an
// assertion.

// NOTE: originally stolen from
// https://github.com/golang/go/blob/eaa7d9ff86b35c72cc35bd7c14b349fa414c392f/src/go/types/errors.go#L18
func Assert(truth bool, msg ...string) {
	// NOTE: in certain cases it feels unreasonable and redundant to specify msg
	if len(msg) > 1 {
		panic("invalid assert args")
	}
	if !truth {
		text := "assertion failed"
		if len(msg) == 1 {
			text = fmt.Sprintf("assertion failed(%s)", msg[0])
		}
		fail(text)
	}
}

// Assertf is Assert with a formatted message. the message is only built when
// the assertion fails.
func Assertf(truth bool, format string, args ...any) {
	if !truth {
		fail(fmt.Sprintf("assertion failed(%s)", fmt.Sprintf(format, args...)))
	}
}

func fail(msg string) {
	// include information about the assertion location. due to
	// panic recovery, this location is otherwise buried in the
	// middle of the panicking stack.
	if _, file, line, ok := runtime.Caller(2); ok {
		msg = fmt.Sprintf("%s:%d: %s", file, line, msg)
	}
	panic(msg)
}
