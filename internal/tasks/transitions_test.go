package tasks_test

import (
	"context"
	"errors"
	"testing"

	"towline/internal/faults"
	"towline/internal/tasks"
	"towline/internal/testsupport"
)

func TestCanTransitionGraph(t *testing.T) {
	cases := []struct {
		from    tasks.State
		to      tasks.State
		allowed bool
	}{
		{tasks.StateWaiting, tasks.StateActive, true},
		{tasks.StateWaiting, tasks.StateDuplicate, true},
		{tasks.StateActive, tasks.StatePaused, true},
		{tasks.StateActive, tasks.StateCompleted, true},
		{tasks.StateActive, tasks.StateDuplicate, false},
		{tasks.StatePaused, tasks.StateActive, true},
		{tasks.StateFailed, tasks.StateWaiting, true},
		{tasks.StateFailed, tasks.StateCompleted, false},
		{tasks.StateCompleted, tasks.StateWaiting, false},
		{tasks.StateCompleted, tasks.StateFailed, false},
		{tasks.StateDuplicate, tasks.StateWaiting, false},
		{tasks.StateDuplicate, tasks.StateActive, false},
		// Same-state moves are always tolerated.
		{tasks.StateCompleted, tasks.StateCompleted, true},
		{tasks.StateActive, tasks.StateActive, true},
	}

	for _, tc := range cases {
		if got := tasks.CanTransition(tc.from, tc.to); got != tc.allowed {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.allowed)
		}
	}
}

func TestUpdateStateRejectsIllegalMove(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/a", "1111000000000001", "/downloads/a")
	if err := store.UpdateState(ctx, task.ID, tasks.StateCompleted); err != nil {
		t.Fatalf("UpdateState to completed: %v", err)
	}

	err := store.UpdateState(ctx, task.ID, tasks.StateActive)
	if err == nil {
		t.Fatal("expected error moving completed task to active")
	}
	if !errors.Is(err, faults.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != tasks.StateCompleted {
		t.Fatalf("state mutated by rejected transition: %s", got.State)
	}
}

func TestUpdateStateSameStateIsNoOp(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/b", "1111000000000002", "/downloads/b")
	if err := store.UpdateState(ctx, task.ID, tasks.StateWaiting); err != nil {
		t.Fatalf("same-state update should succeed: %v", err)
	}
}

func TestUpdateStateCompletedStampsVerification(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/c", "1111000000000003", "/downloads/c")
	if err := store.UpdateState(ctx, task.ID, tasks.StateActive); err != nil {
		t.Fatalf("UpdateState to active: %v", err)
	}
	if err := store.UpdateState(ctx, task.ID, tasks.StateCompleted); err != nil {
		t.Fatalf("UpdateState to completed: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.LastVerifiedAt == nil {
		t.Fatal("expected completion to stamp last_verified_at")
	}
}

func TestUpdateStateToWaitingResetsProgress(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/d", "1111000000000004", "/downloads/d")
	if err := store.UpdateState(ctx, task.ID, tasks.StateActive); err != nil {
		t.Fatalf("UpdateState to active: %v", err)
	}
	total := int64(1000)
	if err := store.CheckpointProgress(ctx, task.ID, 400, &total); err != nil {
		t.Fatalf("CheckpointProgress: %v", err)
	}

	if err := store.UpdateState(ctx, task.ID, tasks.StateWaiting); err != nil {
		t.Fatalf("UpdateState to waiting: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SizeTransferred != 0 {
		t.Fatalf("expected reset progress, got %d", got.SizeTransferred)
	}
	if got.SizeTotal == nil || *got.SizeTotal != total {
		t.Fatal("expected size_total to survive the reset")
	}
}

func TestUpdateStateUnknownTask(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	err := store.UpdateState(context.Background(), "no-such-task", tasks.StateActive)
	if err == nil {
		t.Fatal("expected error for unknown task")
	}
	if !errors.Is(err, faults.ErrStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/e", "1111000000000005", "/downloads/e")
	if err := store.UpdateState(ctx, task.ID, tasks.StateActive); err != nil {
		t.Fatalf("UpdateState to active: %v", err)
	}
	if err := store.MarkFailed(ctx, task.ID, "connection refused"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != tasks.StateFailed {
		t.Fatalf("expected failed state, got %s", got.State)
	}
	if got.FailureReason != "connection refused" {
		t.Fatalf("expected failure reason, got %q", got.FailureReason)
	}

	// Retrying clears the recorded reason along with the progress counter.
	if err := store.UpdateState(ctx, task.ID, tasks.StateWaiting); err != nil {
		t.Fatalf("UpdateState retry: %v", err)
	}
	got, err = store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.FailureReason != "" {
		t.Fatalf("expected cleared failure reason, got %q", got.FailureReason)
	}
}

func TestMarkFailedRejectsCompletedTask(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/f", "1111000000000006", "/downloads/f")
	if err := store.UpdateState(ctx, task.ID, tasks.StateCompleted); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	err := store.MarkFailed(ctx, task.ID, "too late")
	if !errors.Is(err, faults.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition error, got %v", err)
	}
}

func TestMarkDuplicateLinksCanonicalTask(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	canonical := testsupport.NewTask(t, store, "https://example.com/g", "1111000000000007", "/downloads/g")
	other := testsupport.NewTask(t, store, "https://example.com/g", "1111000000000007", "/downloads/g-copy")

	if err := store.MarkDuplicate(ctx, other.ID, canonical.ID); err != nil {
		t.Fatalf("MarkDuplicate: %v", err)
	}

	got, err := store.GetByID(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != tasks.StateDuplicate {
		t.Fatalf("expected duplicate state, got %s", got.State)
	}
	if got.DuplicateOf != canonical.ID {
		t.Fatalf("expected duplicate_of %s, got %s", canonical.ID, got.DuplicateOf)
	}
}

func TestMarkDuplicateRejectsSelfAndChains(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	canonical := testsupport.NewTask(t, store, "https://example.com/h", "1111000000000008", "/downloads/h")
	first := testsupport.NewTask(t, store, "https://example.com/h", "1111000000000008", "/downloads/h1")
	second := testsupport.NewTask(t, store, "https://example.com/h", "1111000000000008", "/downloads/h2")

	if err := store.MarkDuplicate(ctx, canonical.ID, canonical.ID); !errors.Is(err, faults.ErrInvalidTransition) {
		t.Fatalf("expected self-duplicate rejection, got %v", err)
	}

	if err := store.MarkDuplicate(ctx, first.ID, canonical.ID); err != nil {
		t.Fatalf("MarkDuplicate first: %v", err)
	}
	// Duplicates must point at a canonical task, never at another duplicate.
	if err := store.MarkDuplicate(ctx, second.ID, first.ID); !errors.Is(err, faults.ErrInvalidTransition) {
		t.Fatalf("expected chain rejection, got %v", err)
	}
}

func TestMarkDuplicateRejectsActiveTask(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	canonical := testsupport.NewTask(t, store, "https://example.com/i", "1111000000000009", "/downloads/i")
	active := testsupport.NewTask(t, store, "https://example.com/i", "1111000000000009", "/downloads/i2")
	if err := store.UpdateState(ctx, active.ID, tasks.StateActive); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	if err := store.MarkDuplicate(ctx, active.ID, canonical.ID); !errors.Is(err, faults.ErrInvalidTransition) {
		t.Fatalf("expected rejection for active task, got %v", err)
	}
}

func TestCheckpointProgressMonotonic(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/j", "1111000000000010", "/downloads/j")
	if err := store.UpdateState(ctx, task.ID, tasks.StateActive); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	total := int64(1000)
	if err := store.CheckpointProgress(ctx, task.ID, 600, &total); err != nil {
		t.Fatalf("CheckpointProgress: %v", err)
	}

	// A stale sample never rolls progress back.
	if err := store.CheckpointProgress(ctx, task.ID, 200, &total); err != nil {
		t.Fatalf("CheckpointProgress stale: %v", err)
	}
	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SizeTransferred != 600 {
		t.Fatalf("stale checkpoint applied: %d", got.SizeTransferred)
	}

	if err := store.CheckpointProgress(ctx, task.ID, 900, &total); err != nil {
		t.Fatalf("CheckpointProgress advance: %v", err)
	}
	got, err = store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SizeTransferred != 900 {
		t.Fatalf("expected 900 transferred, got %d", got.SizeTransferred)
	}
}

func TestCheckpointProgressClampsToTotal(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/k", "1111000000000011", "/downloads/k")
	total := int64(500)
	if err := store.CheckpointProgress(ctx, task.ID, 800, &total); err != nil {
		t.Fatalf("CheckpointProgress: %v", err)
	}

	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SizeTransferred != 500 {
		t.Fatalf("expected clamp to total, got %d", got.SizeTransferred)
	}
	if got.SizeTotal == nil || *got.SizeTotal != 500 {
		t.Fatal("expected total recorded")
	}
}

func TestCheckpointProgressUnknownTaskIsSilent(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	if err := store.CheckpointProgress(context.Background(), "gone", 100, nil); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestCheckpointProgressAfterResetAcceptsLowerValue(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/l", "1111000000000012", "/downloads/l")
	if err := store.UpdateState(ctx, task.ID, tasks.StateActive); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	total := int64(1000)
	if err := store.CheckpointProgress(ctx, task.ID, 700, &total); err != nil {
		t.Fatalf("CheckpointProgress: %v", err)
	}
	if err := store.UpdateState(ctx, task.ID, tasks.StateWaiting); err != nil {
		t.Fatalf("UpdateState reset: %v", err)
	}

	if err := store.CheckpointProgress(ctx, task.ID, 50, &total); err != nil {
		t.Fatalf("CheckpointProgress after reset: %v", err)
	}
	got, err := store.GetByID(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.SizeTransferred != 50 {
		t.Fatalf("expected fresh progress accepted, got %d", got.SizeTransferred)
	}
}
