package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"towline/internal/faults"
	"towline/internal/logging"
	"towline/internal/tasks"
)

// recover re-registers every unfinished task with the engine. Tasks that
// cannot be re-registered are marked failed with the cause recorded so no
// row is left silently orphaned. An unreachable engine aborts recovery
// without touching any task: marking everything failed because the engine
// is down would destroy resumable work.
func (o *Orchestrator) recover(ctx context.Context) error {
	unfinished, err := o.store.ListUnfinished(ctx)
	if err != nil {
		return faults.Wrap(faults.ErrRecovery, "orchestrator", "recover", "list unfinished tasks", err)
	}
	if len(unfinished) == 0 {
		return nil
	}

	o.logger.Info("recovering unfinished tasks",
		logging.Int("count", len(unfinished)),
		logging.String(logging.FieldEventType, "recovery_started"),
	)

	parallelism := o.cfg.Workflow.RecoveryParallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(parallelism)

	for _, task := range unfinished {
		task := task
		group.Go(func() error {
			return o.recoverTask(groupCtx, task)
		})
	}

	if err := group.Wait(); err != nil {
		return faults.Wrap(faults.ErrRecovery, "orchestrator", "recover", "re-register tasks", err)
	}

	o.logger.Info("recovery finished",
		logging.Int("tracked", o.trackedCount()),
		logging.String(logging.FieldEventType, "recovery_finished"),
	)
	return nil
}

// recoverTask resubmits one task. Engine unavailability is returned as-is to
// abort the whole pass; any other submission failure is recorded on the task
// and recovery moves on.
func (o *Orchestrator) recoverTask(ctx context.Context, task *tasks.Task) error {
	wasPaused := task.State == tasks.StatePaused

	// Progress counters restart from zero under a fresh engine handle.
	if task.State != tasks.StateWaiting {
		if err := o.store.UpdateState(ctx, task.ID, tasks.StateWaiting); err != nil {
			return err
		}
	}

	handle, err := o.engine.Submit(ctx, task.SourceLocator, task.Destination)
	if err != nil {
		if errors.Is(err, faults.ErrEngineUnavailable) {
			return err
		}
		reason := fmt.Sprintf("recovery failed: %v", err)
		if markErr := o.store.MarkFailed(ctx, task.ID, reason); markErr != nil {
			return markErr
		}
		o.logger.Warn("task could not be recovered",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err),
			logging.String(logging.FieldEventType, "recovery_task_failed"),
		)
		return nil
	}

	o.track(task.ID, handle)

	if wasPaused {
		if err := o.engine.Pause(ctx, handle); err == nil {
			if err := o.store.UpdateState(ctx, task.ID, tasks.StatePaused); err != nil {
				return err
			}
		}
	}

	o.logger.Info("task recovered",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldHandle, string(handle)),
		logging.Bool("paused", wasPaused),
		logging.String(logging.FieldEventType, "recovery_task_registered"),
	)
	return nil
}
