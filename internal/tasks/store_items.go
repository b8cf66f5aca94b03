package tasks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"towline/internal/faults"
)

const taskColumns = "id, source_locator, fingerprint, destination, state, failure_reason, duplicate_of, size_total, size_transferred, created_at, updated_at, last_verified_at"

// nonTerminalFirst orders candidate rows the way the resolver wants them:
// recoverable work first, then most recently updated.
const nonTerminalFirst = ` ORDER BY CASE WHEN state IN ('waiting', 'active', 'paused') THEN 0 ELSE 1 END, updated_at DESC`

// CreateOrGet inserts a task for the draft or, on a uniqueness conflict over
// (fingerprint, destination), returns the existing task unchanged. This is
// the single authoritative dedup mechanism; it is never split into
// read-then-write steps, so N concurrent identical requests converge on one
// row.
func (s *Store) CreateOrGet(ctx context.Context, draft Draft) (*Task, bool, error) {
	ctx = ensureContext(ctx)
	if draft.Fingerprint == "" || draft.Destination == "" {
		return nil, false, faults.Wrap(faults.ErrStore, "tasks", "create_or_get", "draft missing identity key", nil)
	}

	id := uuid.NewString()
	now := formatTime(time.Now())

	// Two attempts: the only way the insert can skip and the follow-up read
	// can miss is a concurrent cancellation deleting the winner in between.
	for attempt := 0; attempt < 2; attempt++ {
		res, err := s.execWithRetry(
			ctx,
			`INSERT INTO tasks (
                id, source_locator, fingerprint, destination, state,
                size_transferred, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, 0, ?, ?)
            ON CONFLICT (fingerprint, destination) WHERE state != 'duplicate' DO NOTHING`,
			id,
			draft.SourceLocator,
			draft.Fingerprint,
			draft.Destination,
			StateWaiting,
			now,
			now,
		)
		if err != nil {
			return nil, false, faults.Wrap(faults.ErrStore, "tasks", "create_or_get", "insert task", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return nil, false, faults.Wrap(faults.ErrStore, "tasks", "create_or_get", "rows affected", err)
		}
		if affected > 0 {
			task, err := s.GetByID(ctx, id)
			if err != nil {
				return nil, false, err
			}
			return task, true, nil
		}

		existing, err := s.findOwner(ctx, draft.Fingerprint, draft.Destination)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return existing, false, nil
		}
	}

	return nil, false, faults.Wrap(faults.ErrStore, "tasks", "create_or_get", "identity key owner vanished repeatedly", nil)
}

func (s *Store) findOwner(ctx context.Context, fingerprint, destination string) (*Task, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE fingerprint = ? AND destination = ? AND state != 'duplicate' LIMIT 1`,
		fingerprint,
		destination,
	)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.ErrStore, "tasks", "create_or_get", "read existing task", err)
	}
	return task, nil
}

// GetByID fetches a task by identity. Returns nil when the task is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Task, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, faults.Wrap(faults.ErrStore, "tasks", "get_by_id", "scan task", err)
	}
	return task, nil
}

// FindByKey returns non-duplicate tasks matching an identity key, ordered
// non-terminal-state-first then most-recently-updated.
func (s *Store) FindByKey(ctx context.Context, fingerprint, destination string) ([]*Task, error) {
	ctx = ensureContext(ctx)
	return s.queryTasks(
		ctx,
		"find_by_key",
		`SELECT `+taskColumns+` FROM tasks WHERE fingerprint = ? AND destination = ? AND state != 'duplicate'`+nonTerminalFirst,
		fingerprint,
		destination,
	)
}

// FindByFingerprint returns non-duplicate tasks sharing a locator
// fingerprint regardless of destination.
func (s *Store) FindByFingerprint(ctx context.Context, fingerprint string) ([]*Task, error) {
	ctx = ensureContext(ctx)
	return s.queryTasks(
		ctx,
		"find_by_fingerprint",
		`SELECT `+taskColumns+` FROM tasks WHERE fingerprint = ? AND state != 'duplicate'`+nonTerminalFirst,
		fingerprint,
	)
}

// ListByDestinationDir returns non-duplicate tasks whose destination sits
// directly or indirectly under dir. Backs fuzzy-name candidate lookups.
func (s *Store) ListByDestinationDir(ctx context.Context, dir string) ([]*Task, error) {
	ctx = ensureContext(ctx)
	pattern := escapeLike(dir) + `/%`
	return s.queryTasks(
		ctx,
		"list_by_destination_dir",
		`SELECT `+taskColumns+` FROM tasks WHERE destination LIKE ? ESCAPE '\' AND state != 'duplicate'`+nonTerminalFirst,
		pattern,
	)
}

// ListUnfinished returns tasks needing startup recovery, oldest first.
func (s *Store) ListUnfinished(ctx context.Context) ([]*Task, error) {
	ctx = ensureContext(ctx)
	return s.queryTasks(
		ctx,
		"list_unfinished",
		`SELECT `+taskColumns+` FROM tasks WHERE state IN (?, ?, ?) ORDER BY created_at`,
		StateWaiting,
		StateActive,
		StatePaused,
	)
}

// List returns tasks filtered by state set (or all tasks when no state is
// provided), ordered by creation time.
func (s *Store) List(ctx context.Context, states ...State) ([]*Task, error) {
	ctx = ensureContext(ctx)

	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`
	orderClause := ` ORDER BY created_at`

	if len(states) == 0 {
		return s.queryTasks(ctx, "list", baseQuery+orderClause)
	}

	placeholders := makePlaceholders(len(states))
	args := make([]any, len(states))
	for i, state := range states {
		args[i] = state
	}
	return s.queryTasks(ctx, "list", baseQuery+` WHERE state IN (`+placeholders+`)`+orderClause, args...)
}

// Remove deletes a task by identity.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	ctx = ensureContext(ctx)
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, faults.Wrap(faults.ErrStore, "tasks", "remove", "delete task", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, faults.Wrap(faults.ErrStore, "tasks", "remove", "rows affected", err)
	}
	return affected > 0, nil
}

// CountByState returns the number of tasks in a given state.
func (s *Store) CountByState(ctx context.Context, state State) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE state = ?`, state).Scan(&count)
	if err != nil {
		return 0, faults.Wrap(faults.ErrStore, "tasks", "count_by_state", "count tasks", err)
	}
	return count, nil
}

// CollectStats returns a count of tasks grouped by state.
func (s *Store) CollectStats(ctx context.Context) (Stats, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM tasks GROUP BY state`)
	if err != nil {
		return nil, faults.Wrap(faults.ErrStore, "tasks", "stats", "query stats", err)
	}
	defer rows.Close()

	stats := make(Stats)
	for rows.Next() {
		var state State
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, faults.Wrap(faults.ErrStore, "tasks", "stats", "scan stats", err)
		}
		stats[state] = count
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Wrap(faults.ErrStore, "tasks", "stats", "iterate stats", err)
	}
	return stats, nil
}

func (s *Store) queryTasks(ctx context.Context, op, query string, args ...any) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, faults.Wrap(faults.ErrStore, "tasks", op, "query tasks", err)
	}
	defer rows.Close()

	var items []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, faults.Wrap(faults.ErrStore, "tasks", op, "scan task", err)
		}
		items = append(items, task)
	}
	if err := rows.Err(); err != nil {
		return nil, faults.Wrap(faults.ErrStore, "tasks", op, "iterate tasks", err)
	}
	return items, nil
}

func scanTask(scanner interface{ Scan(dest ...any) error }) (*Task, error) {
	var (
		id              string
		sourceLocator   string
		fingerprint     string
		destination     string
		stateStr        string
		failureReason   sql.NullString
		duplicateOf     sql.NullString
		sizeTotal       sql.NullInt64
		sizeTransferred int64
		createdRaw      string
		updatedRaw      string
		lastVerifiedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceLocator,
		&fingerprint,
		&destination,
		&stateStr,
		&failureReason,
		&duplicateOf,
		&sizeTotal,
		&sizeTransferred,
		&createdRaw,
		&updatedRaw,
		&lastVerifiedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:              id,
		SourceLocator:   sourceLocator,
		Fingerprint:     fingerprint,
		Destination:     destination,
		State:           State(stateStr),
		FailureReason:   failureReason.String,
		DuplicateOf:     duplicateOf.String,
		SizeTransferred: sizeTransferred,
	}
	if sizeTotal.Valid {
		total := sizeTotal.Int64
		task.SizeTotal = &total
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		task.UpdatedAt = updated
	}
	if lastVerifiedRaw.Valid {
		if verified, err := parseTimeString(lastVerifiedRaw.String); err == nil {
			task.LastVerifiedAt = &verified
		}
	}
	return task, nil
}
