package agent

// State is the controller's position in a research run
type State int

const (
	StateFresh State = iota
	StateResumedInProgress
	StateResumedComplete
	StateRunningIteration
	StateAwaitingToolResults
	StateDone
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "FRESH"
	case StateResumedInProgress:
		return "RESUMED_IN_PROGRESS"
	case StateResumedComplete:
		return "RESUMED_COMPLETE"
	case StateRunningIteration:
		return "RUNNING_ITERATION"
	case StateAwaitingToolResults:
		return "AWAITING_TOOL_RESULTS"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}
