// Package statusfile implements the shared-file handshake between the
// formatting initiator and a waiting process (typically a commit hook).
//
// The two processes communicate only through two well-known files in a
// shared directory: a status record mutated through the session's phases and
// a lock record bounding concurrent sessions. The protocol is deliberately
// low-tech: no transactional guarantees exist against torn reads, so any
// unparseable or partially written record degrades to "no new information"
// on the waiter side, never an error.
package statusfile

import (
	"time"
)

// State is the lifecycle state of a formatting session.
type State int

const (
	// StateStarting means the session was created but work has not begun.
	// Unrecognized state names on the wire also parse to StateStarting.
	StateStarting State = iota

	// StateRunning means formatting work is in progress.
	StateRunning

	// StateSuccess means every module formatted successfully. Terminal.
	StateSuccess

	// StateFailed means at least one module failed. Terminal.
	StateFailed

	// StateTimeout means at least one timeout layer fired. Terminal.
	StateTimeout

	// StateCancelled means the session was cancelled by request. Terminal.
	StateCancelled
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	case StateTimeout:
		return "TIMEOUT"
	case StateCancelled:
		return "CANCELLED"
	default:
		return "STARTING"
	}
}

// ParseState converts a wire name to a State. Unrecognized names default to
// StateStarting rather than raising an error.
func ParseState(name string) State {
	switch name {
	case "STARTING":
		return StateStarting
	case "RUNNING":
		return StateRunning
	case "SUCCESS":
		return StateSuccess
	case "FAILED":
		return StateFailed
	case "TIMEOUT":
		return StateTimeout
	case "CANCELLED":
		return StateCancelled
	default:
		return StateStarting
	}
}

// IsTerminal reports whether no further state transitions follow.
func (s State) IsTerminal() bool {
	switch s {
	case StateSuccess, StateFailed, StateTimeout, StateCancelled:
		return true
	default:
		return false
	}
}

// Record is one status snapshot of a formatting session.
type Record struct {
	State     State
	Message   string
	Progress  float64 // in [0,1]
	Timestamp time.Time
	SessionID string
	Files     []string
}

// LockRecord marks a session as holding the status channel.
// A lock is considered held while now-Timestamp is younger than the
// staleness threshold; after that it is reclaimable regardless of prior
// ownership.
type LockRecord struct {
	SessionID string
	Timestamp time.Time
	PID       int
}

// StalenessThreshold is the age past which a lock is reclaimable.
const StalenessThreshold = 5 * time.Minute

// IsStale reports whether the lock has outlived the staleness threshold.
func (l LockRecord) IsStale(now time.Time) bool {
	return now.Sub(l.Timestamp) >= StalenessThreshold
}
