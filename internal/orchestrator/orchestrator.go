package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"towline/internal/config"
	"towline/internal/engine"
	"towline/internal/faults"
	"towline/internal/logging"
	"towline/internal/resolver"
	"towline/internal/tasks"
)

// Orchestrator drives tasks through their lifecycle against a transfer
// engine. All exported methods are safe for concurrent use.
type Orchestrator struct {
	cfg      *config.Config
	store    *tasks.Store
	engine   engine.Engine
	resolver *resolver.Resolver
	logger   *slog.Logger

	defaultPolicy resolver.Policy

	mu        sync.Mutex
	handles   map[string]engine.Handle
	taskIDs   map[engine.Handle]string
	keyLocks  map[string]*sync.Mutex
	accepting bool

	loopCancel context.CancelFunc
	loopWG     sync.WaitGroup
}

// New wires an orchestrator. The config's default policy must already have
// passed validation.
func New(cfg *config.Config, store *tasks.Store, eng engine.Engine, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	policy, err := resolver.ParsePolicy(cfg.Dedup.DefaultPolicy)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:           cfg,
		store:         store,
		engine:        eng,
		resolver:      resolver.New(cfg, store, logger),
		logger:        logging.NewComponentLogger(logger, "orchestrator"),
		defaultPolicy: policy,
		handles:       make(map[string]engine.Handle),
		taskIDs:       make(map[engine.Handle]string),
		keyLocks:      make(map[string]*sync.Mutex),
	}, nil
}

// Start recovers unfinished tasks and launches the reconcile and checkpoint
// loops. It returns once recovery has finished; the loops run until Stop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if err := o.recover(ctx); err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	o.mu.Lock()
	o.loopCancel = cancel
	o.accepting = true
	o.mu.Unlock()

	o.loopWG.Add(2)
	go o.runReconcileLoop(loopCtx)
	go o.runCheckpointLoop(loopCtx)

	o.logger.Info("orchestrator started",
		logging.Int("tracked", o.trackedCount()),
		logging.String(logging.FieldEventType, "orchestrator_started"),
	)
	return nil
}

// Stop shuts the orchestrator down: new requests are refused, the loops are
// stopped, and one final reconcile and checkpoint pass runs so the store
// reflects the last known engine state.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	o.accepting = false
	cancel := o.loopCancel
	o.loopCancel = nil
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	o.loopWG.Wait()

	grace := time.Duration(o.cfg.Workflow.ShutdownGrace) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}
	finalCtx, cancelFinal := context.WithTimeout(context.Background(), grace)
	defer cancelFinal()

	o.ReconcileOnce(finalCtx)
	o.CheckpointOnce(finalCtx)

	o.logger.Info("orchestrator stopped",
		logging.String(logging.FieldEventType, "orchestrator_stopped"),
	)
	return nil
}

// DefaultPolicy returns the policy applied when a request names none.
func (o *Orchestrator) DefaultPolicy() resolver.Policy {
	return o.defaultPolicy
}

func (o *Orchestrator) isAccepting() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.accepting
}

func (o *Orchestrator) trackedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.handles)
}

func (o *Orchestrator) track(taskID string, handle engine.Handle) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handles[taskID] = handle
	o.taskIDs[handle] = taskID
}

func (o *Orchestrator) untrack(taskID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if handle, ok := o.handles[taskID]; ok {
		delete(o.taskIDs, handle)
	}
	delete(o.handles, taskID)
}

func (o *Orchestrator) handleFor(taskID string) (engine.Handle, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	handle, ok := o.handles[taskID]
	return handle, ok
}

// lockKey serializes request handling per identity key so two concurrent
// requests for the same work cannot both reach the engine. Lock entries are
// retained; the set of distinct identity keys in one process lifetime is
// small.
func (o *Orchestrator) lockKey(key string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	lock, ok := o.keyLocks[key]
	if !ok {
		lock = new(sync.Mutex)
		o.keyLocks[key] = lock
	}
	return lock
}

// Get returns a task by identity, nil when unknown.
func (o *Orchestrator) Get(ctx context.Context, taskID string) (*tasks.Task, error) {
	return o.store.GetByID(ctx, taskID)
}

// List returns tasks, optionally filtered by state.
func (o *Orchestrator) List(ctx context.Context, states ...tasks.State) ([]*tasks.Task, error) {
	return o.store.List(ctx, states...)
}

// ActiveCount reports how many transfers the orchestrator currently tracks
// in the engine.
func (o *Orchestrator) ActiveCount() int {
	return o.trackedCount()
}

// trackedPairs snapshots the identity-to-handle map so loops can iterate
// without holding the lock across engine calls.
func (o *Orchestrator) trackedPairs() map[string]engine.Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	pairs := make(map[string]engine.Handle, len(o.handles))
	for taskID, handle := range o.handles {
		pairs[taskID] = handle
	}
	return pairs
}

// submit hands a task to the engine and records the handle mapping. The
// engine call happens before any store write so a refused submission leaves
// the task untouched.
func (o *Orchestrator) submit(ctx context.Context, task *tasks.Task) error {
	handle, err := o.engine.Submit(ctx, task.SourceLocator, task.Destination)
	if err != nil {
		return err
	}
	o.track(task.ID, handle)
	o.logger.Info("transfer submitted",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldHandle, string(handle)),
		logging.String(logging.FieldEventType, "transfer_submitted"),
	)
	return nil
}

func notAccepting(operation string) error {
	return faults.Wrap(faults.ErrEngineUnavailable, "orchestrator", operation, "orchestrator is not running", nil)
}
