package session

import "fmt"

// State is a step of the connection lifecycle. States only move forward.
type State int

const (
	Idle State = iota
	Connecting
	Negotiating
	Executing
	ReadingResult
	Closed
)

// Authenticating is the SSH name of the negotiation step.
const Authenticating = Negotiating

var stateNames = map[State]string{
	Idle:          "IDLE",
	Connecting:    "CONNECTING",
	Negotiating:   "NEGOTIATING",
	Executing:     "EXECUTING",
	ReadingResult: "READING_RESULT",
	Closed:        "CLOSED",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// TransitionError is returned by Advance for a move that is not forward.
type TransitionError struct {
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", e.From, e.To)
}
