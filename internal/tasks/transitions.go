package tasks

// transitionGraph maps each state to the states it may legally move to.
// Same-state updates are treated as no-ops by the store and never consult
// this graph. Completed and duplicate are terminal: completed work is
// retained for future dedup lookups and duplicates stay pinned to their
// canonical task.
var transitionGraph = map[State][]State{
	StateWaiting: {StateActive, StatePaused, StateCompleted, StateFailed, StateDuplicate},
	StateActive:  {StateWaiting, StatePaused, StateCompleted, StateFailed},
	StatePaused:  {StateWaiting, StateActive, StateCompleted, StateFailed, StateDuplicate},
	StateFailed:  {StateWaiting, StateActive, StateDuplicate},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitionGraph[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
