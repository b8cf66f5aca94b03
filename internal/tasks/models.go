package tasks

import (
	"strings"
	"time"
)

// State represents the lifecycle of a task.
type State string

const (
	StateWaiting   State = "waiting"
	StateActive    State = "active"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateDuplicate State = "duplicate"
)

var allStates = []State{
	StateWaiting,
	StateActive,
	StatePaused,
	StateCompleted,
	StateFailed,
	StateDuplicate,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// unfinishedStates are the states startup recovery re-registers.
var unfinishedStates = []State{StateWaiting, StateActive, StatePaused}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state admits no further transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateDuplicate
}

// IsUnfinished reports whether a state represents recoverable in-flight work.
func (s State) IsUnfinished() bool {
	switch s {
	case StateWaiting, StateActive, StatePaused:
		return true
	default:
		return false
	}
}

// Task represents a download task persisted in SQLite.
//
// SourceLocator is retained verbatim for display only; all equality checks go
// through Fingerprint, which hashes the normalized locator. SizeTotal is nil
// until the engine reports it.
type Task struct {
	ID              string
	SourceLocator   string
	Fingerprint     string
	Destination     string
	State           State
	FailureReason   string
	DuplicateOf     string
	SizeTotal       *int64
	SizeTransferred int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastVerifiedAt  *time.Time
}

// Draft carries the fields CreateOrGet needs to insert a new task.
type Draft struct {
	SourceLocator string
	Fingerprint   string
	Destination   string
}

// Stats aggregates task counts per state.
type Stats map[State]int

// Unfinished returns the number of recoverable tasks.
func (s Stats) Unfinished() int {
	total := 0
	for _, state := range unfinishedStates {
		total += s[state]
	}
	return total
}
