package designd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/towerworks/foundation-core/internal/metrics"
	"github.com/towerworks/foundation-core/internal/store"
	"github.com/towerworks/foundation-core/pkg/logger"
)

var (
	ErrRunTerminal  = errors.New("run is terminal")
	ErrRunIDMissing = errors.New("run_id is required")
)

// Executor runs jobs asynchronously and tracks per-run cancellation.
type Executor struct {
	store    store.Store
	log      *slog.Logger
	metrics  *metrics.Collector
	notifier *Notifier

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	wg      sync.WaitGroup
}

func NewExecutor(st store.Store, log *slog.Logger) *Executor {
	if log == nil {
		log = logger.Default
	}
	return &Executor{
		store:    st,
		log:      log,
		metrics:  metrics.NewCollector(),
		notifier: NewNotifier(log),
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Metrics returns the collector fed by finished runs.
func (e *Executor) Metrics() *metrics.Collector {
	return e.metrics
}

// SetCallbackRetryDelay fixes the wait between callback delivery
// attempts. Zero keeps the exponential default.
func (e *Executor) SetCallbackRetryDelay(delay time.Duration) {
	e.notifier.SetRetryDelay(delay)
}

// Submit records a pending run for req and starts it in the background.
// The returned record is already running.
func (e *Executor) Submit(ctx context.Context, req Request) (store.Run, error) {
	job, err := ParseRequest(req)
	if err != nil {
		return store.Run{}, err
	}
	rec, err := job.Record(req.RunID)
	if err != nil {
		return store.Run{}, err
	}
	run, err := e.store.Create(ctx, rec)
	if err != nil {
		return store.Run{}, err
	}
	return e.start(ctx, run.ID, job)
}

func (e *Executor) start(ctx context.Context, runID string, job Job) (store.Run, error) {
	run, err := e.store.SetStatus(ctx, runID, store.StatusRunning, "")
	if err != nil {
		return store.Run{}, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancels[runID] = cancel
	e.mu.Unlock()

	e.wg.Add(1)
	go e.execute(runCtx, runID, job)
	return run, nil
}

func (e *Executor) execute(ctx context.Context, runID string, job Job) {
	defer e.wg.Done()
	defer e.cleanup(runID)

	log := e.log.With("run_id", runID, "mode", job.Mode)
	started := time.Now()
	res, err := job.Execute(ctx, runID, e.store, log)
	elapsed := time.Since(started)

	e.mu.Lock()
	defer e.mu.Unlock()
	status, msg := store.StatusCompleted, ""
	switch {
	case ctx.Err() != nil:
		status = store.StatusCancelled
		log.Info("run cancelled")
	case err != nil:
		status, msg = store.StatusFailed, err.Error()
		log.Error("run failed", "error", err)
	default:
		log.Info("run completed", "towers", res.Summary.Towers, "solved", res.Summary.Solved, "duration", elapsed)
		metrics.RecordBatch(e.metrics, res.Batch)
		metrics.RecordCoverage(e.metrics, res.Coverage)
	}
	metrics.RecordRun(e.metrics, elapsed, metrics.RunLabels(string(job.Mode), string(job.Kind), string(status)))

	run, err := e.store.Get(context.Background(), runID)
	if err != nil {
		log.Error("failed to load run", "error", err)
		return
	}
	// Stop records the cancellation itself, Shutdown does not.
	if !run.Status.Terminal() {
		if run, err = e.store.SetStatus(context.Background(), runID, status, msg); err != nil {
			log.Error("failed to set run status", "status", status, "error", err)
			return
		}
	}
	if job.Callback != nil {
		e.notifier.Notify(*job.Callback, run)
	}
}

func (e *Executor) cleanup(runID string) {
	e.mu.Lock()
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
		delete(e.cancels, runID)
	}
	e.mu.Unlock()
}

// Stop cancels a pending or running run and marks it cancelled.
func (e *Executor) Stop(ctx context.Context, runID string) (store.Run, error) {
	if runID == "" {
		return store.Run{}, ErrRunIDMissing
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	run, err := e.store.Get(ctx, runID)
	if err != nil {
		return store.Run{}, err
	}
	if run.Status.Terminal() {
		return store.Run{}, fmt.Errorf("%w: %s", ErrRunTerminal, runID)
	}
	if cancel, ok := e.cancels[runID]; ok {
		cancel()
	}
	return e.store.SetStatus(ctx, runID, store.StatusCancelled, "")
}

// Shutdown cancels every active run, waits for the workers to exit and
// abandons undelivered notifications.
func (e *Executor) Shutdown() {
	e.mu.Lock()
	for _, cancel := range e.cancels {
		cancel()
	}
	e.mu.Unlock()
	e.wg.Wait()
	e.notifier.Close()
}

// Wait blocks until every submitted run has finished and its callback,
// if any, was attempted.
func (e *Executor) Wait() {
	e.wg.Wait()
	e.notifier.Wait()
}
