package runner

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/noorall/fmtgate/internal/config"
	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/logging"
)

// collectGrace is added to the per-process timeout when waiting for the
// process's completion signal, bounding the final wait.
const collectGrace = time.Minute

// pipeDrainDelay bounds how long an exited process's output pipes may stay
// open. A formatter that hands its stdout to a background child (a build
// daemon, typically) would otherwise hold the completion wait open for the
// child's whole lifetime.
const pipeDrainDelay = 2 * time.Second

// Scope binds one invocation to a descriptor file (module scope) or to the
// project root (legacy scope, empty Descriptor).
type Scope struct {
	// Module is the module's relative path, used for logging. Empty for
	// the legacy whole-project scope.
	Module string

	// Descriptor is the absolute path of the module's descriptor file.
	// Empty for the legacy scope, which omits the descriptor flag.
	Descriptor string

	// Dir is the working directory for the command: the descriptor's
	// containing directory, or the project root for the legacy scope.
	Dir string
}

// Result is the outcome of one formatting invocation.
type Result struct {
	// Success is true only when the explicit success marker was seen, the
	// exit code was zero, and the run was neither cancelled nor timed out.
	Success bool

	ExitCode  int
	TimedOut  bool
	Cancelled bool
	Duration  time.Duration

	// Tail holds the trailing output lines, retained for diagnostics on
	// failure.
	Tail []string

	// Err is non-nil whenever Success is false.
	Err error
}

// Runner builds and runs the external formatting command.
type Runner struct {
	command        string
	subcommand     string
	descriptorFlag string
	filesParam     string
	verboseArg     string
	tailLines      int
	logger         *logging.Logger

	// StartHook, when set, is invoked with every started process and must
	// return an untrack function called on process exit. The engine uses
	// this to force-terminate live processes on cancellation.
	StartHook func(p *os.Process) (untrack func())
}

// New creates a Runner from the command configuration.
// A nil logger disables logging.
func New(cfg config.CommandConfig, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Runner{
		command:        cfg.Path,
		subcommand:     cfg.Subcommand,
		descriptorFlag: cfg.DescriptorFlag,
		filesParam:     cfg.FilesParam,
		verboseArg:     cfg.VerboseArg,
		tailLines:      cfg.TailLines,
		logger:         logger,
	}
}

// Run executes the formatting command for one scope and blocks until the
// process completes, bounded by timeout plus a fixed collection grace.
//
// Output is read line by line. Every line re-checks caller cancellation and
// elapsed time against the timeout; either condition force-terminates the
// process immediately, independent of pending output. The onProgress
// callback, when non-nil, receives a best-effort progress fraction after
// each relevant line.
func (r *Runner) Run(ctx context.Context, scope Scope, files []string, timeout time.Duration, onProgress func(float64)) Result {
	log := r.logger.WithModule(scope.Module)
	args := r.buildArgs(scope, files)

	cmd := exec.Command(r.command, args...)
	cmd.Dir = scope.Dir
	cmd.WaitDelay = pipeDrainDelay

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	start := time.Now()
	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		log.Error("failed to start formatting command", "command", r.command, "error", err)
		return Result{
			Duration: time.Since(start),
			Err:      errors.NewProcessError(r.command, -1, err),
		}
	}

	untrack := func() {}
	if r.StartHook != nil {
		untrack = r.StartHook(cmd.Process)
	}

	waitCh := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitCh <- err
	}()

	// Watchdog for a process that hangs without emitting output: the
	// per-line timeout check never fires without lines, so the completion
	// bound is enforced independently.
	var watchdogFired atomic.Bool
	watchdog := time.AfterFunc(timeout+collectGrace, func() {
		watchdogFired.Store(true)
		r.kill(cmd, pr, log, "completion wait bound exceeded")
	})
	defer watchdog.Stop()

	var (
		classifier Classifier
		tracker    progressTracker
		tail       []string
		sawSuccess bool
		sawFailure bool
		cancelled  bool
		timedOut   bool
	)

	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail = appendTail(tail, line, r.tailLines)

		class, count := classifier.Classify(line)
		switch class {
		case ClassSuccess:
			sawSuccess = true
		case ClassFailure:
			sawFailure = true
		}
		if tracker.observe(class, count) && onProgress != nil {
			onProgress(tracker.fraction())
		}

		if ctx.Err() != nil && !cancelled {
			cancelled = true
			r.kill(cmd, pr, log, "cancellation requested")
		}
		if time.Since(start) > timeout && !timedOut && !cancelled {
			timedOut = true
			r.kill(cmd, pr, log, "per-process timeout exceeded")
		}
	}
	pr.Close()

	// The completion wait is bounded too. WaitDelay covers an exited process
	// whose pipe is still held by a background child; this select covers a
	// process that cannot be reaped at all.
	bound := time.Until(start.Add(timeout + collectGrace))
	if bound < pipeDrainDelay {
		bound = pipeDrainDelay
	}
	var waitErr error
	select {
	case waitErr = <-waitCh:
	case <-time.After(bound):
		log.Error("abandoning completion wait", "command", r.command)
		waitErr = errors.New("completion wait abandoned")
		timedOut = true
	}
	if errors.Is(waitErr, exec.ErrWaitDelay) {
		// Exit status was zero; only an inherited output pipe stayed open.
		waitErr = nil
	}
	untrack()
	if watchdogFired.Load() {
		timedOut = true
	}

	// A kill that raced the natural exit still counts as cancelled.
	if ctx.Err() != nil {
		cancelled = true
	}

	exitCode := 0
	if waitErr != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	res := Result{
		Success:   sawSuccess && exitCode == 0 && !cancelled && !timedOut,
		ExitCode:  exitCode,
		TimedOut:  timedOut,
		Cancelled: cancelled,
		Duration:  time.Since(start),
		Tail:      tail,
	}

	switch {
	case res.Success:
	case cancelled:
		res.Err = errors.ErrCancelled
	case timedOut:
		res.Err = errors.NewTimeoutError("formatting "+scopeName(scope), timeout)
	case sawFailure || exitCode != 0:
		res.Err = errors.NewProcessError(r.command, exitCode, nil).WithTail(tail)
	default:
		// Exit zero without the explicit success marker: treated as failure,
		// the marker is the authoritative signal.
		res.Err = errors.NewProcessError(r.command, exitCode, errors.New("no success marker in output")).WithTail(tail)
	}

	log.Info("formatting command finished",
		"success", res.Success,
		"exit_code", exitCode,
		"timed_out", timedOut,
		"cancelled", cancelled,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res
}

// buildArgs assembles the command line for one scope: the fixed formatting
// subcommand, the descriptor flag for module scope, the comma-joined file
// filter, and the verbose flag.
func (r *Runner) buildArgs(scope Scope, files []string) []string {
	args := []string{r.subcommand}
	if scope.Descriptor != "" && r.descriptorFlag != "" {
		args = append(args, r.descriptorFlag, scope.Descriptor)
	}
	if r.filesParam != "" && len(files) > 0 {
		args = append(args, r.filesParam+"="+strings.Join(files, ","))
	}
	if r.verboseArg != "" {
		args = append(args, r.verboseArg)
	}
	return args
}

// kill force-terminates the process and closes the output pipe so the scan
// loop unblocks even when another process inherited the pipe's write end.
// Cancellation is not graceful.
func (r *Runner) kill(cmd *exec.Cmd, pr *io.PipeReader, log *logging.Logger, reason string) {
	log.Warn("force-terminating formatting command", "reason", reason)
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
	_ = pr.Close()
}

func appendTail(tail []string, line string, max int) []string {
	if max <= 0 {
		return tail
	}
	tail = append(tail, line)
	if len(tail) > max {
		tail = tail[len(tail)-max:]
	}
	return tail
}

func scopeName(scope Scope) string {
	if scope.Module == "" {
		return "project root"
	}
	return "module " + scope.Module
}
