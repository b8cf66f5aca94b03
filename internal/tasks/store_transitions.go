package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"towline/internal/faults"
)

// UpdateState moves a task to a new state, validating the move against the
// transition graph inside the same transaction that applies it. A same-state
// update is a no-op. Moving to waiting resets transferred bytes so a restart
// reports progress from zero; moving to completed stamps last_verified_at.
func (s *Store) UpdateState(ctx context.Context, id string, to State) error {
	ctx = ensureContext(ctx)
	if _, ok := ParseState(string(to)); !ok {
		return faults.Wrap(faults.ErrInvalidTransition, "tasks", "update_state", "unknown target state "+string(to), nil)
	}

	return retryOnBusy(ctx, func() error {
		return s.withTx(ctx, "update_state", func(tx *sql.Tx) error {
			current, err := currentState(ctx, tx, id)
			if err != nil {
				return err
			}
			if current == to {
				return nil
			}
			if !CanTransition(current, to) {
				return faults.Wrap(faults.ErrInvalidTransition, "tasks", "update_state",
					fmt.Sprintf("%s -> %s", current, to), nil)
			}

			now := time.Now()
			var verifiedAt *time.Time
			if to == StateCompleted {
				verifiedAt = &now
			}

			query := `UPDATE tasks SET state = ?, updated_at = ?, last_verified_at = COALESCE(?, last_verified_at)`
			args := []any{to, formatTime(now), nullableTime(verifiedAt)}
			if to == StateWaiting {
				query += `, size_transferred = 0, failure_reason = NULL`
			}
			query += ` WHERE id = ?`
			args = append(args, id)

			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return faults.Wrap(faults.ErrStore, "tasks", "update_state", "apply transition", err)
			}
			return nil
		})
	})
}

// MarkFailed moves a task to failed and records the reason.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return s.withTx(ctx, "mark_failed", func(tx *sql.Tx) error {
			current, err := currentState(ctx, tx, id)
			if err != nil {
				return err
			}
			if current != StateFailed && !CanTransition(current, StateFailed) {
				return faults.Wrap(faults.ErrInvalidTransition, "tasks", "mark_failed",
					fmt.Sprintf("%s -> %s", current, StateFailed), nil)
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE tasks SET state = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
				StateFailed, nullableString(reason), formatTime(time.Now()), id,
			)
			if err != nil {
				return faults.Wrap(faults.ErrStore, "tasks", "mark_failed", "apply failure", err)
			}
			return nil
		})
	})
}

// MarkDuplicate moves a task to duplicate, pointing it at the canonical task
// that owns its identity key. The canonical task must exist, must not itself
// be a duplicate, and must not be the task being marked.
func (s *Store) MarkDuplicate(ctx context.Context, id, canonicalID string) error {
	ctx = ensureContext(ctx)
	if id == canonicalID {
		return faults.Wrap(faults.ErrInvalidTransition, "tasks", "mark_duplicate", "task cannot duplicate itself", nil)
	}

	return retryOnBusy(ctx, func() error {
		return s.withTx(ctx, "mark_duplicate", func(tx *sql.Tx) error {
			current, err := currentState(ctx, tx, id)
			if err != nil {
				return err
			}
			if current != StateDuplicate && !CanTransition(current, StateDuplicate) {
				return faults.Wrap(faults.ErrInvalidTransition, "tasks", "mark_duplicate",
					fmt.Sprintf("%s -> %s", current, StateDuplicate), nil)
			}

			canonicalState, err := currentState(ctx, tx, canonicalID)
			if err != nil {
				return faults.Wrap(faults.ErrStore, "tasks", "mark_duplicate", "canonical task missing", err)
			}
			if canonicalState == StateDuplicate {
				return faults.Wrap(faults.ErrInvalidTransition, "tasks", "mark_duplicate", "canonical task is itself a duplicate", nil)
			}

			_, err = tx.ExecContext(ctx,
				`UPDATE tasks SET state = ?, duplicate_of = ?, updated_at = ? WHERE id = ?`,
				StateDuplicate, canonicalID, formatTime(time.Now()), id,
			)
			if err != nil {
				return faults.Wrap(faults.ErrStore, "tasks", "mark_duplicate", "apply duplicate mark", err)
			}
			return nil
		})
	})
}

// CheckpointProgress records transfer progress for a task. It is called from
// a periodic loop against a live engine, so it is deliberately forgiving:
// an unknown task id is a silent no-op (the task may have been cancelled
// between sampling and writing), and a sample that would move transferred
// bytes backwards is dropped unless the task was reset to waiting. Reported
// bytes are clamped to the known total.
func (s *Store) CheckpointProgress(ctx context.Context, id string, transferred int64, total *int64) error {
	ctx = ensureContext(ctx)
	if transferred < 0 {
		transferred = 0
	}

	return retryOnBusy(ctx, func() error {
		return s.withTx(ctx, "checkpoint_progress", func(tx *sql.Tx) error {
			row := tx.QueryRowContext(ctx,
				`SELECT state, size_transferred, size_total FROM tasks WHERE id = ?`, id)

			var (
				stateStr     string
				currentBytes int64
				currentTotal sql.NullInt64
			)
			if err := row.Scan(&stateStr, &currentBytes, &currentTotal); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return faults.Wrap(faults.ErrStore, "tasks", "checkpoint_progress", "read progress", err)
			}

			state := State(stateStr)
			if transferred < currentBytes && state != StateWaiting {
				return nil
			}

			newTotal := currentTotal
			if total != nil && *total > 0 {
				newTotal = sql.NullInt64{Int64: *total, Valid: true}
			}
			if newTotal.Valid && transferred > newTotal.Int64 {
				transferred = newTotal.Int64
			}

			_, err := tx.ExecContext(ctx,
				`UPDATE tasks SET size_transferred = ?, size_total = ?, updated_at = ? WHERE id = ?`,
				transferred, nullableInt64FromNull(newTotal), formatTime(time.Now()), id,
			)
			if err != nil {
				return faults.Wrap(faults.ErrStore, "tasks", "checkpoint_progress", "write progress", err)
			}
			return nil
		})
	})
}

func nullableInt64FromNull(value sql.NullInt64) any {
	if !value.Valid {
		return nil
	}
	return value.Int64
}

func currentState(ctx context.Context, tx *sql.Tx, id string) (State, error) {
	var stateStr string
	err := tx.QueryRowContext(ctx, `SELECT state FROM tasks WHERE id = ?`, id).Scan(&stateStr)
	if errors.Is(err, sql.ErrNoRows) {
		return "", faults.Wrap(faults.ErrStore, "tasks", "current_state", "task not found: "+id, nil)
	}
	if err != nil {
		return "", faults.Wrap(faults.ErrStore, "tasks", "current_state", "read state", err)
	}
	return State(stateStr), nil
}

func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return faults.Wrap(faults.ErrStore, "tasks", op, "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return faults.Wrap(faults.ErrStore, "tasks", op, "commit tx", err)
	}
	return nil
}
