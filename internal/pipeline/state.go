package pipeline

import "strings"

// State is the session guard. At most one cycle runs while Busy.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Stage is the step a Busy cycle is in.
type Stage int

const (
	StageNone Stage = iota
	StageSampling
	StageDetecting
	StageTranslating
	StagePublishing
)

func (s Stage) String() string {
	switch s {
	case StageSampling:
		return "sampling"
	case StageDetecting:
		return "detecting"
	case StageTranslating:
		return "translating"
	case StagePublishing:
		return "publishing"
	default:
		return ""
	}
}

// transitions lists every allowed guard move.
var transitions = map[State][]State{
	StateIdle:      {StateCapturing},
	StateCapturing: {StateBusy, StateIdle},
	StateBusy:      {StateCapturing, StateIdle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Changed reports whether current differs from previous once surrounding
// whitespace is ignored.
func Changed(previous, current string) bool {
	return strings.TrimSpace(previous) != strings.TrimSpace(current)
}
