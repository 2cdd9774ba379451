// Package runner executes one external formatting command per scope,
// streaming its output and classifying it into progress, success, and
// failure signals. Output parsing matches free-text log lines by heuristic
// pattern rules and is best-effort telemetry only; the authoritative signals
// are the explicit success/failure markers and the exit code.
package runner

import (
	"regexp"
	"strconv"
)

// LineClass is the classification of one output line.
type LineClass int

const (
	// ClassNone means the line carries no recognized signal.
	ClassNone LineClass = iota

	// ClassSuccess is the tool's explicit success marker.
	ClassSuccess

	// ClassFailure is the tool's explicit failure marker.
	ClassFailure

	// ClassFileCount is a "count of N files" line that raises the
	// expected-total estimate for progress reporting.
	ClassFileCount

	// ClassProcessed is a heuristic marker that one file was handled.
	ClassProcessed
)

// Pattern rules, checked in order: explicit markers win over heuristics.
var (
	successPattern = regexp.MustCompile(`BUILD SUCCESSFUL`)
	failurePattern = regexp.MustCompile(`BUILD FAILED|^FAILURE:`)

	// fileCountPattern matches lines announcing how many files the tool
	// will touch, e.g. "Need to format 12 files" or "Checking 3 files".
	fileCountPattern = regexp.MustCompile(`(?i)\b(\d+)\s+files?\b`)

	// processedPatterns are markers that one file was handled.
	processedPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\balready[ -]formatted\b`),
		regexp.MustCompile(`(?i)\bformatted\b`),
		regexp.MustCompile(`(?i)\bup-to-date\b`),
		regexp.MustCompile(`(?i)\bapplying\b`),
	}
)

// Classifier classifies output lines by the ordered pattern rules.
// The zero value is ready to use.
type Classifier struct{}

// Classify returns the line's class. For ClassFileCount the second return
// value is the announced file count.
func (Classifier) Classify(line string) (LineClass, int) {
	if successPattern.MatchString(line) {
		return ClassSuccess, 0
	}
	if failurePattern.MatchString(line) {
		return ClassFailure, 0
	}
	if m := fileCountPattern.FindStringSubmatch(line); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return ClassFileCount, n
		}
	}
	for _, p := range processedPatterns {
		if p.MatchString(line) {
			return ClassProcessed, 0
		}
	}
	return ClassNone, 0
}

// progressTracker folds classified lines into a progress fraction.
type progressTracker struct {
	expected  int
	processed int
}

// observe updates the tracker and reports whether the progress value may
// have changed.
func (p *progressTracker) observe(class LineClass, count int) bool {
	switch class {
	case ClassFileCount:
		if count > p.expected {
			p.expected = count
		}
		return true
	case ClassProcessed:
		p.processed++
		return true
	default:
		return false
	}
}

// fraction reports best-effort progress. The denominator keeps one slot open
// while the expected total is unknown so the value never reaches 1.0 early.
func (p *progressTracker) fraction() float64 {
	denom := p.expected
	if p.processed+1 > denom {
		denom = p.processed + 1
	}
	f := float64(p.processed) / float64(denom)
	if f > 1.0 {
		return 1.0
	}
	return f
}
