package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/logging"
	"github.com/noorall/fmtgate/internal/project"
	"github.com/noorall/fmtgate/internal/runner"
)

// collectGrace bounds how long the engine waits for one unit's result past
// the per-process timeout before recording it as a timeout and moving on.
const collectGrace = time.Minute

// shutdownGrace bounds how long Shutdown waits for the pool to drain.
const shutdownGrace = 10 * time.Second

// ProcessRunner runs one external formatting command for one scope.
// *runner.Runner is the production implementation.
type ProcessRunner interface {
	Run(ctx context.Context, scope runner.Scope, files []string, timeout time.Duration, onProgress func(float64)) runner.Result
}

// Engine executes module formatting units in parallel.
//
// The state shared across module units, the set of currently tracked
// external processes and the run's cancel function, lives behind one mutex.
type Engine struct {
	runner  ProcessRunner
	rootDir string
	logger  *logging.Logger

	mu        sync.Mutex
	procs     map[int]*os.Process
	cancelCtx context.CancelFunc

	cancelled atomic.Bool

	active sync.WaitGroup

	// onProgress, when set, receives completed/total after each unit
	// finishes. Coarse by design: not weighted by per-module size.
	onProgress func(completed, total int)
}

// New creates an Engine. rootDir is the project root, used to resolve module
// working directories. A nil logger disables logging.
func New(r ProcessRunner, rootDir string, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Engine{
		runner:  r,
		rootDir: rootDir,
		logger:  logger,
		procs:   make(map[int]*os.Process),
	}
}

// SetProgressFunc registers the coarse progress callback. Must be called
// before ExecuteParallel.
func (e *Engine) SetProgressFunc(fn func(completed, total int)) {
	e.onProgress = fn
}

// TrackProcess registers a live external process for force-termination on
// cancel, returning the matching untrack function. Exposed as the runner's
// StartHook.
func (e *Engine) TrackProcess(p *os.Process) func() {
	if p == nil {
		return func() {}
	}

	e.mu.Lock()
	e.procs[p.Pid] = p
	e.mu.Unlock()

	// Cancel may have raced the registration.
	if e.cancelled.Load() {
		_ = p.Kill()
	}

	pid := p.Pid
	return func() {
		e.mu.Lock()
		delete(e.procs, pid)
		e.mu.Unlock()
	}
}

// ExecuteParallel submits one independent unit of work per module to a
// worker pool and collects the results. Each unit's collection is bounded by
// timeout plus a fixed grace; a unit exceeding the bound is recorded as a
// timeout-class result without blocking collection of the remaining units.
//
// Exactly one ModuleResult is returned per input module.
func (e *Engine) ExecuteParallel(ctx context.Context, modules []project.Module, files []string, timeout time.Duration) Summary {
	start := time.Now()
	total := len(modules)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancelCtx = cancel
	e.mu.Unlock()

	results := make([]ModuleResult, total)
	var completed atomic.Int64

	p := pool.New().WithMaxGoroutines(total)
	for i, m := range modules {
		e.active.Add(1)
		p.Go(func() {
			defer e.active.Done()

			if e.cancelled.Load() {
				results[i] = ModuleResult{
					Module:    m,
					Cancelled: true,
					Err:       errors.ErrCancelled,
				}
			} else {
				results[i] = e.runOne(runCtx, m, files, timeout)
			}

			done := int(completed.Add(1))
			if e.onProgress != nil {
				e.onProgress(done, total)
			}
		})
	}
	p.Wait()

	summary := summarize(results, time.Since(start))
	e.logger.Info("parallel execution finished",
		"modules", total,
		"overall_success", summary.OverallSuccess,
		"duration_ms", summary.TotalDuration.Milliseconds(),
	)
	return summary
}

// runOne drives a single module unit, bounding its collection so a stuck
// unit cannot block the others' results.
func (e *Engine) runOne(ctx context.Context, m project.Module, files []string, timeout time.Duration) ModuleResult {
	dir := e.rootDir
	if m.Descriptor != "" {
		dir = filepath.Dir(m.Descriptor)
	}
	scope := runner.Scope{
		Module:     m.RelPath,
		Descriptor: m.Descriptor,
		Dir:        dir,
	}

	moduleFiles := make([]string, 0, len(files))
	for _, f := range files {
		if m.Contains(f) {
			moduleFiles = append(moduleFiles, f)
		}
	}

	start := time.Now()
	resCh := make(chan runner.Result, 1)
	go func() {
		resCh <- e.runner.Run(ctx, scope, moduleFiles, timeout, nil)
	}()

	select {
	case res := <-resCh:
		return ModuleResult{
			Module:    m,
			Success:   res.Success,
			TimedOut:  res.TimedOut,
			Cancelled: res.Cancelled,
			Duration:  res.Duration,
			Err:       res.Err,
		}
	case <-time.After(timeout + collectGrace):
		e.logger.Warn("module unit exceeded collection bound",
			"module", m.RelPath,
			"bound", (timeout + collectGrace).String(),
		)
		return ModuleResult{
			Module:   m,
			TimedOut: true,
			Duration: time.Since(start),
			Err:      errors.NewTimeoutError("collecting result for module "+m.RelPath, timeout+collectGrace),
		}
	}
}

// Cancel sets the shared cancellation flag, force-terminates every currently
// tracked external process, and stops scheduling new work. Cancellation is
// cooperative beyond the kill: units observe the flag or their dead process.
func (e *Engine) Cancel() {
	if !e.cancelled.CompareAndSwap(false, true) {
		return
	}

	e.mu.Lock()
	cancel := e.cancelCtx
	procs := make([]*os.Process, 0, len(e.procs))
	for _, p := range e.procs {
		procs = append(procs, p)
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	for _, p := range procs {
		e.logger.Warn("force-terminating tracked process", "pid", p.Pid)
		_ = p.Kill()
	}
}

// Shutdown cancels outstanding work and waits a bounded grace period for the
// pool to drain, logging (not failing) if it does not.
func (e *Engine) Shutdown() {
	e.Cancel()

	drained := make(chan struct{})
	go func() {
		e.active.Wait()
		close(drained)
	}()

	select {
	case <-drained:
	case <-time.After(shutdownGrace):
		e.logger.Warn("worker pool did not drain within shutdown grace",
			"grace", shutdownGrace.String(),
		)
	}
}
