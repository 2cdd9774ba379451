// Package coordinator decides how a formatting session executes: root-only,
// single-module, or multi-module parallel, with a legacy whole-project
// fallback on any internal failure. The design favors best-effort formatting
// over failing the caller: no planning or dispatch error ever propagates.
package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/noorall/fmtgate/internal/config"
	"github.com/noorall/fmtgate/internal/engine"
	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/logging"
	"github.com/noorall/fmtgate/internal/project"
	"github.com/noorall/fmtgate/internal/runner"
	"github.com/noorall/fmtgate/internal/statusfile"
)

// Notifier delivers user-facing notifications about session outcomes.
// Implementations must not block.
type Notifier interface {
	Notify(title, message string)
}

// nopNotifier discards notifications.
type nopNotifier struct{}

func (nopNotifier) Notify(string, string) {}

// Coordinator owns one initiator instance: at most one active session at a
// time, a time-windowed cache of recently formatted change sets, and the
// status channel updated at every phase transition.
type Coordinator struct {
	cfg      *config.Config
	rootDir  string
	instance string

	discoverer *project.Discoverer
	analyzer   *project.Analyzer
	runner     *runner.Runner
	engine     *engine.Engine
	channel    *statusfile.Channel
	notifier   Notifier
	logger     *logging.Logger

	// running is the compare-and-set single-flight guard against
	// overlapping sessions from rapid repeated triggers.
	running atomic.Bool

	// recentSessions is the time-windowed cache of processed session IDs,
	// owned by this coordinator instance. Entries expire after the
	// configured session window. cleanupTimer is the pending post-linger
	// channel cleanup, flushed by Shutdown so the channel files cannot
	// outlive the process.
	mu             sync.Mutex
	recentSessions map[string]time.Time
	cleanupTimer   *time.Timer
	cleanupAt      time.Time
}

// New wires a Coordinator over the given project root.
// A nil notifier discards notifications; a nil logger disables logging.
func New(cfg *config.Config, rootDir string, notifier Notifier, logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	r := runner.New(cfg.Command, logger)
	e := engine.New(r, rootDir, logger)
	r.StartHook = e.TrackProcess

	return &Coordinator{
		cfg:      cfg,
		rootDir:  rootDir,
		instance: uuid.NewString(),
		discoverer: project.NewDiscoverer(
			cfg.Discovery.Descriptors,
			cfg.Discovery.IgnoreDirs,
			cfg.Discovery.MaxDepth,
			logger,
		),
		analyzer:       project.NewAnalyzer(logger),
		runner:         r,
		engine:         e,
		channel:        statusfile.NewChannel(statusDir(cfg, rootDir), logger),
		notifier:       notifier,
		logger:         logger,
		recentSessions: make(map[string]time.Time),
	}
}

// Channel exposes the coordinator's status channel, for status inspection.
func (c *Coordinator) Channel() *statusfile.Channel { return c.channel }

// RunAsync offloads Run to a background goroutine so the triggering call
// returns immediately. Errors surface only through the status channel and
// the notifier.
func (c *Coordinator) RunAsync(ctx context.Context, files []string) {
	go func() {
		if _, err := c.Run(ctx, files); err != nil {
			c.logger.Warn("background session did not run", "error", err)
		}
	}()
}

// Run executes one formatting session over the changed files. It returns
// ErrSessionActive when a session is already in flight on this instance and
// ErrRecentlyProcessed when the identical change set completed within the
// dedupe window; both are benign. Execution failures never surface as errors
// here: they are reported through the summary and the status channel.
func (c *Coordinator) Run(ctx context.Context, files []string) (*engine.Summary, error) {
	if !c.running.CompareAndSwap(false, true) {
		return nil, errors.ErrSessionActive
	}
	defer c.running.Store(false)

	sessionID := SessionID(files, time.Now())
	log := c.logger.WithSession(sessionID)

	if c.recentlyProcessed(sessionID) {
		log.Debug("change set recently processed, skipping session")
		return nil, errors.ErrRecentlyProcessed
	}

	if err := c.channel.AcquireLock(sessionID); err != nil {
		log.Warn("could not acquire status lock", "error", err)
		return nil, err
	}

	c.writeStatus(statusfile.Record{
		State:     statusfile.StateStarting,
		Message:   "planning formatting session",
		SessionID: sessionID,
		Files:     files,
	})

	summary := c.execute(ctx, sessionID, files, log)

	c.markProcessed(sessionID)
	c.finish(sessionID, files, summary, log)
	return summary, nil
}

// execute plans and dispatches the session. Any internal failure, including
// a panic in planning, converts to the legacy whole-project fallback rather
// than propagating.
func (c *Coordinator) execute(ctx context.Context, sessionID string, files []string, log *logging.Logger) *engine.Summary {
	planLog := log.WithPhase("planning")
	execLog := log.WithPhase("execution")

	plan, err := c.plan(files)
	if err != nil {
		planLog.Warn("planning failed, using whole-project fallback", "error", err)
		return c.executeLegacy(ctx, sessionID, files, execLog)
	}

	switch {
	case plan.IsEmpty():
		planLog.Info("no valid modules in plan, using whole-project fallback")
		return c.executeLegacy(ctx, sessionID, files, execLog)
	case len(plan.Modules) == 1:
		return c.executeSingle(ctx, sessionID, plan.Modules[0], files, execLog)
	default:
		return c.executeParallel(ctx, sessionID, plan.Modules, files, execLog)
	}
}

// plan discovers modules and maps the changed files onto them. A panic
// anywhere in planning is converted to an error.
func (c *Coordinator) plan(files []string) (plan project.Plan, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("planning panic: %v", r)
		}
	}()

	modules, err := c.discoverer.Discover(c.rootDir)
	if err != nil {
		return project.Plan{}, err
	}

	plan = c.analyzer.AnalyzeAffected(files, modules)
	return c.analyzer.FilterValid(plan), nil
}

// executeLegacy runs one whole-project invocation scoped at the project root
// with the full file set. This guarantees formatting is still attempted even
// when module discovery fails.
func (c *Coordinator) executeLegacy(ctx context.Context, sessionID string, files []string, log *logging.Logger) *engine.Summary {
	log.Info("executing legacy whole-project scope", "files", len(files))

	c.writeStatus(statusfile.Record{
		State:     statusfile.StateRunning,
		Message:   "formatting whole project",
		SessionID: sessionID,
		Files:     files,
	})

	scope := runner.Scope{Dir: c.rootDir}
	res := c.runner.Run(ctx, scope, files, c.cfg.Timeouts.ProcessTimeout(), func(f float64) {
		c.writeStatus(statusfile.Record{
			State:     statusfile.StateRunning,
			Message:   "formatting whole project",
			Progress:  f,
			SessionID: sessionID,
			Files:     files,
		})
	})

	return &engine.Summary{
		Results: []engine.ModuleResult{{
			Module:    project.Module{IsRoot: true},
			Success:   res.Success,
			TimedOut:  res.TimedOut,
			Cancelled: res.Cancelled,
			Duration:  res.Duration,
			Err:       res.Err,
		}},
		OverallSuccess: res.Success,
		TotalDuration:  res.Duration,
	}
}

// executeSingle runs exactly one module directly, bypassing the pool.
func (c *Coordinator) executeSingle(ctx context.Context, sessionID string, m project.Module, files []string, log *logging.Logger) *engine.Summary {
	log.Info("executing single module directly", "module", moduleName(m))

	c.writeStatus(statusfile.Record{
		State:     statusfile.StateRunning,
		Message:   "formatting module " + moduleName(m),
		SessionID: sessionID,
		Files:     files,
	})

	moduleFiles := make([]string, 0, len(files))
	for _, f := range files {
		if m.Contains(f) {
			moduleFiles = append(moduleFiles, f)
		}
	}

	scope := runner.Scope{
		Module:     m.RelPath,
		Descriptor: m.Descriptor,
		Dir:        descriptorDir(m, c.rootDir),
	}
	res := c.runner.Run(ctx, scope, moduleFiles, c.cfg.Timeouts.ProcessTimeout(), func(f float64) {
		c.writeStatus(statusfile.Record{
			State:     statusfile.StateRunning,
			Message:   "formatting module " + moduleName(m),
			Progress:  f,
			SessionID: sessionID,
			Files:     files,
		})
	})

	return &engine.Summary{
		Results: []engine.ModuleResult{{
			Module:    m,
			Success:   res.Success,
			TimedOut:  res.TimedOut,
			Cancelled: res.Cancelled,
			Duration:  res.Duration,
			Err:       res.Err,
		}},
		OverallSuccess: res.Success,
		TotalDuration:  res.Duration,
	}
}

// executeParallel fans the modules out across the engine's worker pool.
func (c *Coordinator) executeParallel(ctx context.Context, sessionID string, modules []project.Module, files []string, log *logging.Logger) *engine.Summary {
	log.Info("dispatching parallel execution", "modules", len(modules))

	c.engine.SetProgressFunc(func(completed, total int) {
		c.writeStatus(statusfile.Record{
			State:     statusfile.StateRunning,
			Message:   fmt.Sprintf("formatted %d of %d modules", completed, total),
			Progress:  float64(completed) / float64(total),
			SessionID: sessionID,
			Files:     files,
		})
	})

	c.writeStatus(statusfile.Record{
		State:     statusfile.StateRunning,
		Message:   fmt.Sprintf("formatting %d modules", len(modules)),
		SessionID: sessionID,
		Files:     files,
	})

	summary := c.engine.ExecuteParallel(ctx, modules, files, c.cfg.Timeouts.ProcessTimeout())
	return &summary
}

// Cancel aborts the in-flight session, force-terminating its external
// processes.
func (c *Coordinator) Cancel() {
	c.engine.Cancel()
}

// Shutdown cancels outstanding work, drains the engine, and flushes any
// channel cleanup still pending its linger window.
func (c *Coordinator) Shutdown() {
	c.engine.Shutdown()
	c.flushCleanup()
}

// flushCleanup waits out the remaining linger window of a scheduled cleanup
// and performs it inline. The linger exists so the waiter can observe the
// terminal record once more; skipping it here would undo that guarantee.
func (c *Coordinator) flushCleanup() {
	c.mu.Lock()
	timer := c.cleanupTimer
	remaining := time.Until(c.cleanupAt)
	c.cleanupTimer = nil
	c.mu.Unlock()

	if timer == nil || !timer.Stop() {
		// Nothing scheduled, or the timer already fired.
		return
	}
	if remaining > 0 {
		time.Sleep(remaining)
	}
	c.channel.Cleanup()
}

// finish writes the terminal status record, notifies, and schedules channel
// cleanup after the linger window so the waiter can observe the terminal
// state once more.
func (c *Coordinator) finish(sessionID string, files []string, summary *engine.Summary, log *logging.Logger) {
	state := terminalState(summary)

	c.writeStatus(statusfile.Record{
		State:     state,
		Message:   terminalMessage(summary),
		Progress:  1.0,
		SessionID: sessionID,
		Files:     files,
	})

	log.Info("session finished",
		"state", state.String(),
		"modules", len(summary.Results),
		"duration_ms", summary.TotalDuration.Milliseconds(),
	)

	if state == statusfile.StateSuccess {
		c.notifier.Notify("Formatting complete",
			fmt.Sprintf("%d module(s) formatted", len(summary.Results)))
	} else {
		c.notifier.Notify("Formatting "+state.String(), terminalMessage(summary))
	}

	c.mu.Lock()
	c.cleanupAt = time.Now().Add(c.cfg.Status.Linger())
	c.cleanupTimer = time.AfterFunc(c.cfg.Status.Linger(), c.channel.Cleanup)
	c.mu.Unlock()
}

// writeStatus updates the status channel; I/O failures are logged and
// swallowed, per the protocol's best-effort contract.
func (c *Coordinator) writeStatus(rec statusfile.Record) {
	rec.Timestamp = time.Now()
	if err := c.channel.WriteStatus(rec); err != nil {
		c.logger.Warn("status write failed", "error", err)
	}
}

// recentlyProcessed consults the time-windowed session cache, pruning
// expired entries.
func (c *Coordinator) recentlyProcessed(sessionID string) bool {
	window := c.cfg.Status.SessionWindow()
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for id, at := range c.recentSessions {
		if now.Sub(at) > window {
			delete(c.recentSessions, id)
		}
	}
	_, seen := c.recentSessions[sessionID]
	return seen
}

func (c *Coordinator) markProcessed(sessionID string) {
	c.mu.Lock()
	c.recentSessions[sessionID] = time.Now()
	c.mu.Unlock()
}

// terminalState classifies a summary: cancellation wins over timeout, which
// wins over plain failure.
func terminalState(summary *engine.Summary) statusfile.State {
	switch {
	case summary.OverallSuccess:
		return statusfile.StateSuccess
	case summary.AnyCancelled():
		return statusfile.StateCancelled
	case summary.AnyTimedOut():
		return statusfile.StateTimeout
	default:
		return statusfile.StateFailed
	}
}

func terminalMessage(summary *engine.Summary) string {
	if summary.OverallSuccess {
		return fmt.Sprintf("%d module(s) formatted in %s",
			len(summary.Results), summary.TotalDuration.Round(time.Millisecond))
	}
	for _, r := range summary.Results {
		if !r.Success && r.Err != nil {
			return r.Err.Error()
		}
	}
	return "formatting did not complete"
}

func moduleName(m project.Module) string {
	if m.IsRoot {
		return "root"
	}
	return m.RelPath
}

func descriptorDir(m project.Module, rootDir string) string {
	if m.Descriptor == "" {
		return rootDir
	}
	return filepath.Dir(m.Descriptor)
}

// statusDir resolves the shared status directory, honoring absolute
// configured paths.
func statusDir(cfg *config.Config, rootDir string) string {
	if filepath.IsAbs(cfg.Status.Dir) {
		return cfg.Status.Dir
	}
	return filepath.Join(rootDir, cfg.Status.Dir)
}
