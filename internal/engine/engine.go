package engine

import (
	"context"
	"errors"
)

// Handle identifies a transfer inside an engine. Handles are engine-scoped
// and ephemeral: they do not survive an engine restart, which is why the
// orchestrator re-submits unfinished work at startup instead of persisting
// them.
type Handle string

// State is the engine-side view of a transfer.
type State string

const (
	StateQueued   State = "queued"
	StateActive   State = "active"
	StatePaused   State = "paused"
	StateComplete State = "complete"
	StateError    State = "error"
)

// Status reports a point-in-time snapshot of a transfer. Total is zero until
// the engine learns the payload size. Reason is only set for error states.
type Status struct {
	State       State
	Transferred int64
	Total       int64
	Reason      string
}

// ErrUnknownHandle marks status or control calls against a handle the engine
// no longer tracks, typically after the transfer finished and was purged.
var ErrUnknownHandle = errors.New("unknown engine handle")

// Engine is the transfer backend. All methods must be safe for concurrent
// use. Implementations should return faults.ErrEngineUnavailable-tagged
// errors for transport failures so callers can distinguish a dead engine
// from a rejected request.
type Engine interface {
	// Submit registers a new transfer and returns its handle.
	Submit(ctx context.Context, locator, destination string) (Handle, error)
	// Pause suspends a transfer, retaining partial data.
	Pause(ctx context.Context, handle Handle) error
	// Resume restarts a paused transfer.
	Resume(ctx context.Context, handle Handle) error
	// Cancel stops a transfer and discards engine-side state for it.
	Cancel(ctx context.Context, handle Handle) error
	// Status fetches the current snapshot for a transfer.
	Status(ctx context.Context, handle Handle) (Status, error)
	// ListActive returns handles the engine is currently working on.
	ListActive(ctx context.Context) ([]Handle, error)
}
