// Package memengine provides an in-memory transfer engine. It moves no
// bytes; tests and local dry runs drive transfer progress explicitly through
// the Advance, Complete, and Fail helpers.
package memengine

import (
	"context"
	"fmt"
	"sync"

	"towline/internal/engine"
	"towline/internal/faults"
)

type transfer struct {
	locator     string
	destination string
	status      engine.Status
}

// Engine is a deterministic engine.Engine implementation backed by a map.
type Engine struct {
	mu      sync.Mutex
	nextID  int
	items   map[engine.Handle]*transfer
	offline bool
}

// New returns an empty in-memory engine.
func New() *Engine {
	return &Engine{items: make(map[engine.Handle]*transfer)}
}

var _ engine.Engine = (*Engine)(nil)

// SetOffline toggles simulated engine unavailability. While offline every
// call fails with an engine-unavailable error and no state changes.
func (e *Engine) SetOffline(offline bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.offline = offline
}

func (e *Engine) checkOnline(operation string) error {
	if e.offline {
		return faults.Wrap(faults.ErrEngineUnavailable, "memengine", operation, "engine offline", nil)
	}
	return nil
}

// Submit registers a transfer in the queued state.
func (e *Engine) Submit(ctx context.Context, locator, destination string) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOnline("submit"); err != nil {
		return "", err
	}

	e.nextID++
	handle := engine.Handle(fmt.Sprintf("mem-%d", e.nextID))
	e.items[handle] = &transfer{
		locator:     locator,
		destination: destination,
		status:      engine.Status{State: engine.StateQueued},
	}
	return handle, nil
}

// Pause suspends a transfer.
func (e *Engine) Pause(ctx context.Context, handle engine.Handle) error {
	return e.mutate(handle, "pause", func(item *transfer) {
		if item.status.State == engine.StateActive || item.status.State == engine.StateQueued {
			item.status.State = engine.StatePaused
		}
	})
}

// Resume reactivates a paused transfer.
func (e *Engine) Resume(ctx context.Context, handle engine.Handle) error {
	return e.mutate(handle, "resume", func(item *transfer) {
		if item.status.State == engine.StatePaused {
			item.status.State = engine.StateActive
		}
	})
}

// Cancel forgets a transfer. Unknown handles are accepted so cancellation is
// idempotent, matching real engine behavior after a purge.
func (e *Engine) Cancel(ctx context.Context, handle engine.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOnline("cancel"); err != nil {
		return err
	}
	delete(e.items, handle)
	return nil
}

// Status returns the current snapshot for a transfer.
func (e *Engine) Status(ctx context.Context, handle engine.Handle) (engine.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOnline("status"); err != nil {
		return engine.Status{}, err
	}
	item, ok := e.items[handle]
	if !ok {
		return engine.Status{}, engine.ErrUnknownHandle
	}
	return item.status, nil
}

// ListActive returns handles in the active state.
func (e *Engine) ListActive(ctx context.Context) ([]engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOnline("list_active"); err != nil {
		return nil, err
	}
	var handles []engine.Handle
	for handle, item := range e.items {
		if item.status.State == engine.StateActive {
			handles = append(handles, handle)
		}
	}
	return handles, nil
}

// Advance marks a transfer active and moves its progress counters. Tests use
// it to simulate bytes arriving.
func (e *Engine) Advance(handle engine.Handle, transferred, total int64) bool {
	return e.mutateQuiet(handle, func(item *transfer) {
		item.status.State = engine.StateActive
		item.status.Transferred = transferred
		item.status.Total = total
	})
}

// Complete marks a transfer finished with all bytes accounted for.
func (e *Engine) Complete(handle engine.Handle) bool {
	return e.mutateQuiet(handle, func(item *transfer) {
		item.status.State = engine.StateComplete
		if item.status.Total > 0 {
			item.status.Transferred = item.status.Total
		}
	})
}

// Fail marks a transfer failed with the given reason.
func (e *Engine) Fail(handle engine.Handle, reason string) bool {
	return e.mutateQuiet(handle, func(item *transfer) {
		item.status.State = engine.StateError
		item.status.Reason = reason
	})
}

// Destination reports the destination a handle was submitted with.
func (e *Engine) Destination(handle engine.Handle) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[handle]
	if !ok {
		return "", false
	}
	return item.destination, true
}

// Handles returns every handle the engine tracks, in no particular order.
func (e *Engine) Handles() []engine.Handle {
	e.mu.Lock()
	defer e.mu.Unlock()
	handles := make([]engine.Handle, 0, len(e.items))
	for handle := range e.items {
		handles = append(handles, handle)
	}
	return handles
}

// Len reports the number of transfers the engine currently tracks.
func (e *Engine) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.items)
}

func (e *Engine) mutate(handle engine.Handle, operation string, fn func(*transfer)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.checkOnline(operation); err != nil {
		return err
	}
	item, ok := e.items[handle]
	if !ok {
		return engine.ErrUnknownHandle
	}
	fn(item)
	return nil
}

func (e *Engine) mutateQuiet(handle engine.Handle, fn func(*transfer)) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	item, ok := e.items[handle]
	if !ok {
		return false
	}
	fn(item)
	return true
}
