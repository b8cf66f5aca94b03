package orchestrator

import (
	"context"

	"towline/internal/identity"
	"towline/internal/logging"
	"towline/internal/resolver"
	"towline/internal/tasks"
)

// Outcome describes what a request resulted in. Task is nil only when the
// resolver deferred the decision to the caller; Decision then carries the
// match the caller must rule on.
type Outcome struct {
	Task     *tasks.Task
	Created  bool
	Decision resolver.Decision
}

// Request ingests a download request. The locator is normalized and
// fingerprinted, the duplicate policy applied, and on a fresh or reuse
// verdict the task is persisted and handed to the engine. An empty policy
// selects the configured default.
func (o *Orchestrator) Request(ctx context.Context, locator, destination string, policy resolver.Policy) (*Outcome, error) {
	if !o.isAccepting() {
		return nil, notAccepting("request")
	}
	if policy == "" {
		policy = o.defaultPolicy
	}

	key, err := identity.NewKey(locator, destination)
	if err != nil {
		return nil, err
	}

	// Requests for the same identity are serialized so two callers racing
	// on one key cannot both submit a transfer.
	lock := o.lockKey(key.Fingerprint + "|" + key.Destination)
	lock.Lock()
	defer lock.Unlock()

	decision, err := o.resolver.Resolve(ctx, key, policy)
	if err != nil {
		return nil, err
	}

	switch decision.Verdict {
	case resolver.VerdictNeedsDecision:
		return &Outcome{Decision: decision}, nil

	case resolver.VerdictReuse:
		if err := o.ensureRunning(ctx, decision.Existing); err != nil {
			return nil, err
		}
		task, err := o.store.GetByID(ctx, decision.Existing.ID)
		if err != nil {
			return nil, err
		}
		if task == nil {
			task = decision.Existing
		}
		return &Outcome{Task: task, Decision: decision}, nil

	default:
		return o.startFresh(ctx, key, locator, decision)
	}
}

// startFresh persists the request and submits it. CreateOrGet is the
// authority on identity: when another task already owns the key, that task
// is returned instead of a second row, whatever the resolver recommended.
func (o *Orchestrator) startFresh(ctx context.Context, key identity.Key, locator string, decision resolver.Decision) (*Outcome, error) {
	task, created, err := o.store.CreateOrGet(ctx, tasks.Draft{
		SourceLocator: locator,
		Fingerprint:   key.Fingerprint,
		Destination:   key.Destination,
	})
	if err != nil {
		return nil, err
	}

	if !created {
		o.logger.Debug("request converged on existing task",
			logging.String(logging.FieldTaskID, task.ID),
		)
		if err := o.ensureRunning(ctx, task); err != nil {
			return nil, err
		}
		return &Outcome{Task: task, Decision: decision}, nil
	}

	if err := o.submit(ctx, task); err != nil {
		// The row stays in waiting; recovery or a retry can pick it up once
		// the engine is reachable again.
		o.logger.Warn("submission failed, task parked in waiting",
			logging.String(logging.FieldTaskID, task.ID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the engine endpoint and retry"),
		)
		return nil, err
	}

	return &Outcome{Task: task, Created: true, Decision: decision}, nil
}

// ensureRunning makes sure a reused task is moving again: failed and
// completed tasks are reset and resubmitted, unfinished tasks without a live
// handle are resubmitted, and everything else is left alone.
func (o *Orchestrator) ensureRunning(ctx context.Context, task *tasks.Task) error {
	if task == nil {
		return nil
	}

	switch {
	case task.State == tasks.StateFailed:
		if err := o.store.UpdateState(ctx, task.ID, tasks.StateWaiting); err != nil {
			return err
		}
		refreshed, err := o.store.GetByID(ctx, task.ID)
		if err != nil {
			return err
		}
		if refreshed == nil {
			return nil
		}
		return o.submit(ctx, refreshed)

	case task.State == tasks.StateCompleted, task.State == tasks.StateDuplicate:
		// Nothing to run; reuse of a completed task is a lookup, not a
		// transfer.
		return nil

	default:
		if _, tracked := o.handleFor(task.ID); tracked {
			return nil
		}
		return o.submit(ctx, task)
	}
}
