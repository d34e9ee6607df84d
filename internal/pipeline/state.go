package pipeline

import "fmt"

// State is a step of the news run.
type State int32

const (
	StateStart State = iota
	StateResolving
	StateExtracting
	StateSaving
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStart:      "START",
	StateResolving:  "RESOLVING",
	StateExtracting: "EXTRACTING",
	StateSaving:     "SAVING",
	StateDone:       "DONE",
	StateFailed:     "FAILED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int32(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
