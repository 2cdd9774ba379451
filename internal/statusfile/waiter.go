package statusfile

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/logging"
)

// Outcome is the waiter's signal to the encompassing workflow.
type Outcome int

const (
	// OutcomeReStageAndProceed means formatting succeeded: re-stage the
	// affected files, then proceed.
	OutcomeReStageAndProceed Outcome = iota

	// OutcomeProceedUnformatted means formatting did not fully succeed (or
	// no initiator is present): proceed without formatting. This is never
	// an error; formatting is best-effort relative to the workflow.
	OutcomeProceedUnformatted
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeReStageAndProceed:
		return "restage_and_proceed"
	case OutcomeProceedUnformatted:
		return "proceed_unformatted"
	default:
		return "proceed_unformatted"
	}
}

// WaitResult carries the waiter's outcome plus context for the caller.
type WaitResult struct {
	Outcome Outcome
	Reason  string
	// Files is the affected-file set from the final status record, populated
	// on OutcomeReStageAndProceed so the caller can re-stage them.
	Files []string
}

// WaiterConfig bounds the waiter's patience. All values must be positive.
type WaiterConfig struct {
	// Budget is the overall wall-clock limit. The waiter never blocks the
	// encompassing workflow past this budget under any status outcome.
	Budget time.Duration

	// PollInterval is the fixed status polling interval.
	PollInterval time.Duration

	// PollTimeout is the per-wait budget: the longest any single wait for
	// the next observation may block, even when the interval ticker or the
	// directory watcher misbehaves. Nonpositive disables the backstop.
	PollTimeout time.Duration

	// StartupGrace is how long a missing status file is tolerated before
	// concluding no initiator is present.
	StartupGrace time.Duration

	// StallThreshold is how long an unchanged progress value is tolerated
	// before it is treated as an implicit failure, pre-empting the budget.
	StallThreshold time.Duration
}

// Waiter polls a Channel until a terminal state or its own timeout.
type Waiter struct {
	ch     *Channel
	cfg    WaiterConfig
	logger *logging.Logger
}

// NewWaiter creates a Waiter over the given channel.
// A nil logger disables logging.
func NewWaiter(ch *Channel, cfg WaiterConfig, logger *logging.Logger) *Waiter {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Waiter{ch: ch, cfg: cfg, logger: logger}
}

// Wait blocks until the session reaches a terminal state, the status file
// stays absent past the startup grace, progress stalls, the budget runs out,
// or ctx is cancelled. Every path returns a WaitResult; Wait never returns
// an error because any ambiguity degrades to "proceed unformatted".
//
// An fsnotify watcher on the status directory shortens reaction time when
// available; the fixed-interval poll remains the authoritative mechanism, so
// losing the watcher only costs latency.
func (w *Waiter) Wait(ctx context.Context) WaitResult {
	start := time.Now()
	deadline := time.NewTimer(w.cfg.Budget)
	defer deadline.Stop()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	var pollBound <-chan time.Time
	if w.cfg.PollTimeout > 0 {
		bound := time.NewTicker(w.cfg.PollTimeout)
		defer bound.Stop()
		pollBound = bound.C
	}

	var wake <-chan fsnotify.Event
	if watcher, err := fsnotify.NewWatcher(); err == nil {
		if err := watcher.Add(w.ch.Dir()); err == nil {
			wake = watcher.Events
		} else {
			w.logger.Debug("status directory not watchable, polling only", "error", err)
		}
		defer watcher.Close()
	} else {
		w.logger.Debug("fsnotify unavailable, polling only", "error", err)
	}

	lastProgress := -1.0
	lastProgressChange := start

	for {
		if res, done := w.check(start, &lastProgress, &lastProgressChange); done {
			w.finish(res)
			return res
		}

		select {
		case <-ctx.Done():
			res := WaitResult{
				Outcome: OutcomeProceedUnformatted,
				Reason:  "wait cancelled",
			}
			w.finish(res)
			return res
		case <-deadline.C:
			res := WaitResult{
				Outcome: OutcomeProceedUnformatted,
				Reason:  "wait budget exhausted",
			}
			w.finish(res)
			return res
		case <-ticker.C:
		case <-pollBound:
			// Per-wait budget reached without a tick or a watcher event;
			// observe anyway.
		case <-wake:
			// Status file changed; fall through to an immediate re-check.
		}
	}
}

// check performs one status observation. It returns done=true once a
// conclusive result exists.
func (w *Waiter) check(start time.Time, lastProgress *float64, lastProgressChange *time.Time) (WaitResult, bool) {
	rec, err := w.ch.ReadStatus()
	if err != nil {
		if errors.Is(err, errors.ErrNoStatus) {
			if time.Since(start) > w.cfg.StartupGrace {
				return WaitResult{
					Outcome: OutcomeProceedUnformatted,
					Reason:  "no initiator present",
				}, true
			}
			return WaitResult{}, false
		}
		// Torn or unreadable record: no new information, keep waiting.
		w.logger.Debug("status unreadable, ignoring", "error", err)
		return WaitResult{}, false
	}

	if rec.State.IsTerminal() {
		if rec.State == StateSuccess {
			return WaitResult{
				Outcome: OutcomeReStageAndProceed,
				Reason:  "formatting succeeded",
				Files:   rec.Files,
			}, true
		}
		return WaitResult{
			Outcome: OutcomeProceedUnformatted,
			Reason:  "formatting ended " + rec.State.String(),
		}, true
	}

	now := time.Now()
	if rec.Progress != *lastProgress {
		*lastProgress = rec.Progress
		*lastProgressChange = now
	} else if now.Sub(*lastProgressChange) > w.cfg.StallThreshold {
		return WaitResult{
			Outcome: OutcomeProceedUnformatted,
			Reason:  "progress stalled",
		}, true
	}

	return WaitResult{}, false
}

// finish logs the outcome and cleans up the channel files. The waiter cleans
// up once it has observed a terminal state or exhausted its own patience.
func (w *Waiter) finish(res WaitResult) {
	w.logger.Info("wait finished",
		"outcome", res.Outcome.String(),
		"reason", res.Reason,
		"files", len(res.Files),
	)
	w.ch.Cleanup()
}
