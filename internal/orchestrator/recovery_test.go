package orchestrator_test

import (
	"context"
	"errors"
	"testing"

	"towline/internal/engine/memengine"
	"towline/internal/faults"
	"towline/internal/orchestrator"
	"towline/internal/tasks"
	"towline/internal/testsupport"
)

func TestStartRecoversUnfinishedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	quietLoops(cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	waiting := testsupport.NewTask(t, store, "https://example.com/1", "aaaa111100000001", "/downloads/1")
	active := testsupport.NewTask(t, store, "https://example.com/2", "aaaa111100000002", "/downloads/2")
	if err := store.UpdateState(ctx, active.ID, tasks.StateActive); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	paused := testsupport.NewTask(t, store, "https://example.com/3", "aaaa111100000003", "/downloads/3")
	if err := store.UpdateState(ctx, paused.ID, tasks.StatePaused); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}
	done := testsupport.NewTask(t, store, "https://example.com/4", "aaaa111100000004", "/downloads/4")
	if err := store.UpdateState(ctx, done.ID, tasks.StateCompleted); err != nil {
		t.Fatalf("UpdateState: %v", err)
	}

	eng := memengine.New()
	orch, err := orchestrator.New(cfg, store, eng, nil)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	if err := orch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = orch.Stop(context.Background()) })

	// Every unfinished task got an engine handle; the finished one did not.
	if eng.Len() != 3 {
		t.Fatalf("expected three recovered transfers, got %d", eng.Len())
	}

	// The paused task keeps its paused state across the restart.
	got, err := store.GetByID(ctx, paused.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != tasks.StatePaused {
		t.Fatalf("expected paused preserved, got %s", got.State)
	}

	// The previously active task restarts from waiting under its new handle.
	got, err = store.GetByID(ctx, active.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != tasks.StateWaiting {
		t.Fatalf("expected active task reset to waiting, got %s", got.State)
	}
	if got.SizeTransferred != 0 {
		t.Fatalf("expected progress reset, got %d", got.SizeTransferred)
	}

	got, err = store.GetByID(ctx, waiting.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != tasks.StateWaiting {
		t.Fatalf("expected waiting task unchanged, got %s", got.State)
	}
}

func TestStartAbortsWhenEngineUnreachable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	quietLoops(cfg)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	task := testsupport.NewTask(t, store, "https://example.com/1", "bbbb111100000001", "/downloads/1")

	eng := memengine.New()
	eng.SetOffline(true)

	orch, err := orchestrator.New(cfg, store, eng, nil)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}

	err = orch.Start(ctx)
	if !errors.Is(err, faults.ErrRecovery) {
		t.Fatalf("expected recovery failure, got %v", err)
	}

	// The task is untouched: a dead engine must not destroy resumable work.
	got, getErr := store.GetByID(ctx, task.ID)
	if getErr != nil {
		t.Fatalf("GetByID: %v", getErr)
	}
	if got.State != tasks.StateWaiting {
		t.Fatalf("expected waiting preserved, got %s", got.State)
	}
}

func TestStartWithEmptyStoreIsCheap(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	quietLoops(cfg)
	store := testsupport.MustOpenStore(t, cfg)

	eng := memengine.New()
	orch, err := orchestrator.New(cfg, store, eng, nil)
	if err != nil {
		t.Fatalf("orchestrator.New: %v", err)
	}
	if err := orch.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = orch.Stop(context.Background()) })

	if eng.Len() != 0 {
		t.Fatalf("expected no transfers, got %d", eng.Len())
	}
}
