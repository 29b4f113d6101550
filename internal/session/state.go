package session

import "fmt"

type State int32

const (
	StateConnecting State = iota
	StateAwaitingGreeting
	StateLoggingIn
	StateLoggedIn
	StateInRoom
	StateComplete
	StateFailed
)

var stateNames = [...]string{
	StateConnecting:       "connecting",
	StateAwaitingGreeting: "awaiting_greeting",
	StateLoggingIn:        "logging_in",
	StateLoggedIn:         "logged_in",
	StateInRoom:           "in_room",
	StateComplete:         "complete",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// LoggedIn reports whether keep-alive and chat timers run in this state.
func (s State) LoggedIn() bool {
	return s == StateLoggedIn || s == StateInRoom
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}
