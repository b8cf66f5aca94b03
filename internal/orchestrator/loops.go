package orchestrator

import (
	"context"
	"errors"
	"time"

	"towline/internal/engine"
	"towline/internal/faults"
	"towline/internal/logging"
	"towline/internal/tasks"
)

func (o *Orchestrator) runReconcileLoop(ctx context.Context) {
	defer o.loopWG.Done()

	interval := time.Duration(o.cfg.Workflow.ReconcileInterval) * time.Second
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.ReconcileOnce(ctx)
		}
	}
}

func (o *Orchestrator) runCheckpointLoop(ctx context.Context) {
	defer o.loopWG.Done()

	interval := time.Duration(o.cfg.Workflow.CheckpointInterval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.CheckpointOnce(ctx)
		}
	}
}

// ReconcileOnce folds the engine's view of every tracked transfer back into
// the store. An unreachable engine skips the pass; nothing is inferred from
// silence.
func (o *Orchestrator) ReconcileOnce(ctx context.Context) {
	for taskID, handle := range o.trackedPairs() {
		status, err := o.engine.Status(ctx, handle)
		if err != nil {
			if errors.Is(err, faults.ErrEngineUnavailable) {
				o.logger.Debug("reconcile pass skipped, engine unreachable", logging.Error(err))
				return
			}
			if errors.Is(err, engine.ErrUnknownHandle) {
				o.handleLostTransfer(ctx, taskID, handle)
			}
			continue
		}
		o.applyEngineStatus(ctx, taskID, handle, status)
	}
}

// CheckpointOnce persists progress counters for every tracked transfer.
func (o *Orchestrator) CheckpointOnce(ctx context.Context) {
	for taskID, handle := range o.trackedPairs() {
		status, err := o.engine.Status(ctx, handle)
		if err != nil {
			if errors.Is(err, faults.ErrEngineUnavailable) {
				return
			}
			continue
		}

		var total *int64
		if status.Total > 0 {
			total = &status.Total
		}
		if err := o.store.CheckpointProgress(ctx, taskID, status.Transferred, total); err != nil {
			o.logger.Warn("checkpoint write failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err),
			)
		}
	}
}

// applyEngineStatus maps one engine snapshot onto the task's stored state.
func (o *Orchestrator) applyEngineStatus(ctx context.Context, taskID string, handle engine.Handle, status engine.Status) {
	switch status.State {
	case engine.StateActive:
		o.transition(ctx, taskID, tasks.StateActive)

	case engine.StatePaused:
		o.transition(ctx, taskID, tasks.StatePaused)

	case engine.StateQueued:
		// The engine has not started moving bytes; waiting already says so.

	case engine.StateComplete:
		var total *int64
		if status.Total > 0 {
			total = &status.Total
		}
		if err := o.store.CheckpointProgress(ctx, taskID, status.Transferred, total); err != nil {
			o.logger.Warn("final checkpoint failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err),
			)
		}
		o.transition(ctx, taskID, tasks.StateCompleted)
		o.untrack(taskID)
		o.logger.Info("transfer completed",
			logging.String(logging.FieldTaskID, taskID),
			logging.String(logging.FieldHandle, string(handle)),
			logging.Int64("bytes", status.Transferred),
			logging.String(logging.FieldEventType, "transfer_completed"),
		)

	case engine.StateError:
		reason := status.Reason
		if reason == "" {
			reason = "engine reported failure"
		}
		if err := o.store.MarkFailed(ctx, taskID, reason); err != nil {
			o.logger.Warn("failure mark failed",
				logging.String(logging.FieldTaskID, taskID),
				logging.Error(err),
			)
		}
		o.untrack(taskID)
		o.logger.Warn("transfer failed",
			logging.String(logging.FieldTaskID, taskID),
			logging.String("reason", reason),
			logging.String(logging.FieldEventType, "transfer_failed"),
		)
	}
}

// handleLostTransfer deals with a handle the engine no longer knows. A task
// the store considers live gets failed with an explicit reason so it is
// visible and retryable.
func (o *Orchestrator) handleLostTransfer(ctx context.Context, taskID string, handle engine.Handle) {
	o.untrack(taskID)

	task, err := o.store.GetByID(ctx, taskID)
	if err != nil || task == nil {
		return
	}
	if !task.State.IsUnfinished() {
		return
	}

	if err := o.store.MarkFailed(ctx, taskID, "transfer disappeared from engine"); err != nil {
		o.logger.Warn("failure mark failed",
			logging.String(logging.FieldTaskID, taskID),
			logging.Error(err),
		)
		return
	}
	o.logger.Warn("transfer lost by engine",
		logging.String(logging.FieldTaskID, taskID),
		logging.String(logging.FieldHandle, string(handle)),
		logging.String(logging.FieldEventType, "transfer_lost"),
	)
}

func (o *Orchestrator) transition(ctx context.Context, taskID string, to tasks.State) {
	if err := o.store.UpdateState(ctx, taskID, to); err != nil {
		o.logger.Warn("state transition rejected",
			logging.String(logging.FieldTaskID, taskID),
			logging.String("target_state", string(to)),
			logging.Error(err),
		)
	}
}
