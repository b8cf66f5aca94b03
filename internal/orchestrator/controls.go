package orchestrator

import (
	"context"
	"fmt"

	"towline/internal/faults"
	"towline/internal/logging"
	"towline/internal/tasks"
)

// Pause suspends a task. The engine is paused first; the store only records
// the paused state once the engine acknowledged it.
func (o *Orchestrator) Pause(ctx context.Context, taskID string) error {
	task, err := o.requireTask(ctx, "pause", taskID)
	if err != nil {
		return err
	}
	if task.State == tasks.StatePaused {
		return nil
	}

	if handle, ok := o.handleFor(taskID); ok {
		if err := o.engine.Pause(ctx, handle); err != nil {
			return err
		}
	}
	return o.store.UpdateState(ctx, taskID, tasks.StatePaused)
}

// Resume restarts a paused or failed task. Without a live handle the task is
// resubmitted to the engine.
func (o *Orchestrator) Resume(ctx context.Context, taskID string) error {
	task, err := o.requireTask(ctx, "resume", taskID)
	if err != nil {
		return err
	}

	switch task.State {
	case tasks.StateActive:
		return nil

	case tasks.StatePaused:
		if handle, ok := o.handleFor(taskID); ok {
			if err := o.engine.Resume(ctx, handle); err != nil {
				return err
			}
			return o.store.UpdateState(ctx, taskID, tasks.StateActive)
		}
		if err := o.store.UpdateState(ctx, taskID, tasks.StateWaiting); err != nil {
			return err
		}
		refreshed, err := o.store.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		return o.submit(ctx, refreshed)

	case tasks.StateFailed:
		if err := o.store.UpdateState(ctx, taskID, tasks.StateWaiting); err != nil {
			return err
		}
		refreshed, err := o.store.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		return o.submit(ctx, refreshed)

	case tasks.StateWaiting:
		if _, tracked := o.handleFor(taskID); tracked {
			return nil
		}
		return o.submit(ctx, task)

	default:
		return faults.Wrap(faults.ErrInvalidTransition, "orchestrator", "resume",
			fmt.Sprintf("task %s is %s", taskID, task.State), nil)
	}
}

// Cancel stops a task and removes it from the store. Cancelling a task that
// no longer exists succeeds: the desired end state is already true.
func (o *Orchestrator) Cancel(ctx context.Context, taskID string) error {
	task, err := o.store.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task == nil {
		return nil
	}

	if handle, ok := o.handleFor(taskID); ok {
		if err := o.engine.Cancel(ctx, handle); err != nil {
			return err
		}
	}
	o.untrack(taskID)

	if _, err := o.store.Remove(ctx, taskID); err != nil {
		return err
	}
	o.logger.Info("task cancelled",
		logging.String(logging.FieldTaskID, taskID),
		logging.String(logging.FieldEventType, "task_cancelled"),
	)
	return nil
}

func (o *Orchestrator) requireTask(ctx context.Context, operation, taskID string) (*tasks.Task, error) {
	task, err := o.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, faults.Wrap(faults.ErrStore, "orchestrator", operation, "task not found: "+taskID, nil)
	}
	return task, nil
}
