package door

import (
	"fmt"
	"strings"
)

// Action is a door action a user can request.
type Action int

const (
	Open Action = iota
	Close
	Ring
	FetchState
)

var actionNames = map[Action]string{
	Open:       "open",
	Close:      "close",
	Ring:       "ring",
	FetchState: "fetch_state",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// ParseAction converts a user supplied name into an Action.
// "state" is accepted as an alias of "fetch_state".
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "open":
		return Open, nil
	case "close":
		return Close, nil
	case "ring":
		return Ring, nil
	case "fetch_state", "state", "status":
		return FetchState, nil
	}
	return 0, fmt.Errorf("unknown door action %q", s)
}
