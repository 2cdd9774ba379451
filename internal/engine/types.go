// Package engine fans a module list out across a worker pool, each unit
// driving one external formatting invocation, and aggregates the results.
// Module formatting has no cross-module ordering dependency, so units run
// fully in parallel.
package engine

import (
	"time"

	"github.com/noorall/fmtgate/internal/project"
)

// ModuleResult is the outcome of formatting one module.
type ModuleResult struct {
	Module    project.Module
	Success   bool
	TimedOut  bool
	Cancelled bool
	Duration  time.Duration
	Err       error
}

// Summary aggregates the per-module results of one session.
type Summary struct {
	Results []ModuleResult

	// OverallSuccess is the AND of every result's Success.
	OverallSuccess bool

	// TotalDuration is the session's wall-clock time; with parallel units
	// it approximates the slowest module, not the sum.
	TotalDuration time.Duration
}

// summarize folds results into a Summary.
func summarize(results []ModuleResult, total time.Duration) Summary {
	overall := true
	for _, r := range results {
		overall = overall && r.Success
	}
	return Summary{
		Results:        results,
		OverallSuccess: overall,
		TotalDuration:  total,
	}
}

// AnyTimedOut reports whether any module result was a timeout.
func (s Summary) AnyTimedOut() bool {
	for _, r := range s.Results {
		if r.TimedOut {
			return true
		}
	}
	return false
}

// AnyCancelled reports whether any module result was a cancellation.
func (s Summary) AnyCancelled() bool {
	for _, r := range s.Results {
		if r.Cancelled {
			return true
		}
	}
	return false
}
