package statusfile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/logging"
)

// Well-known file names inside the shared status directory.
const (
	StatusFileName = "status"
	LockFileName   = "lock"
)

// Channel is one side of the shared-file handshake. Both the initiator and
// the waiter construct a Channel over the same directory; only the initiator
// writes.
type Channel struct {
	dir    string
	logger *logging.Logger

	mu        sync.Mutex
	lastState State
	hasState  bool
}

// NewChannel creates a Channel over the given shared directory.
// A nil logger disables logging.
func NewChannel(dir string, logger *logging.Logger) *Channel {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Channel{dir: dir, logger: logger}
}

// Dir returns the shared directory this channel operates on.
func (c *Channel) Dir() string { return c.dir }

// StatusPath returns the absolute path of the status file.
func (c *Channel) StatusPath() string { return filepath.Join(c.dir, StatusFileName) }

// LockPath returns the absolute path of the lock file.
func (c *Channel) LockPath() string { return filepath.Join(c.dir, LockFileName) }

// AcquireLock attempts to mark the channel as owned by the given session.
// It fails with ErrLockHeld if a lock file exists whose recorded timestamp is
// younger than the staleness threshold; otherwise (file absent, or older than
// the threshold) it writes a new LockRecord and succeeds.
//
// This is not filesystem-atomic. Correctness relies on the initiator's
// single-flight guard plus the staleness window bounding the damage of a
// crashed initiator.
func (c *Channel) AcquireLock(sessionID string) error {
	now := time.Now()

	if data, err := os.ReadFile(c.LockPath()); err == nil {
		existing := unmarshalLock(data)
		if !existing.IsStale(now) {
			return fmt.Errorf("%w: session %s (pid %d, age %s)",
				errors.ErrLockHeld, existing.SessionID, existing.PID,
				now.Sub(existing.Timestamp).Round(time.Second))
		}
		c.logger.Warn("reclaiming stale lock",
			"stale_session", existing.SessionID,
			"stale_pid", existing.PID,
			"age", now.Sub(existing.Timestamp).String(),
		)
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	lock := LockRecord{
		SessionID: sessionID,
		Timestamp: now,
		PID:       os.Getpid(),
	}
	if err := os.WriteFile(c.LockPath(), marshalLock(lock), 0644); err != nil {
		return fmt.Errorf("write lock file: %w", err)
	}

	c.logger.Debug("lock acquired", "session_id", sessionID, "pid", lock.PID)
	return nil
}

// ReadLock returns the current lock record, or ErrNoStatus if absent.
func (c *Channel) ReadLock() (LockRecord, error) {
	data, err := os.ReadFile(c.LockPath())
	if err != nil {
		if os.IsNotExist(err) {
			return LockRecord{}, errors.ErrNoStatus
		}
		return LockRecord{}, fmt.Errorf("read lock file: %w", err)
	}
	return unmarshalLock(data), nil
}

// WriteStatus serializes the record with create/truncate semantics, then
// re-reads and byte-compares to confirm durability. A mismatch is logged and
// not retried: the next natural status write supersedes it.
func (c *Channel) WriteStatus(rec Record) error {
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	data := marshalRecord(rec)
	if err := os.WriteFile(c.StatusPath(), data, 0644); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}

	if readBack, err := os.ReadFile(c.StatusPath()); err != nil || !bytes.Equal(readBack, data) {
		c.logger.Warn("status write verification failed",
			"session_id", rec.SessionID,
			"state", rec.State.String(),
			"error", err,
		)
	}

	c.mu.Lock()
	c.lastState = rec.State
	c.hasState = true
	c.mu.Unlock()

	c.logger.Debug("status written",
		"session_id", rec.SessionID,
		"state", rec.State.String(),
		"progress", rec.Progress,
	)
	return nil
}

// ReadStatus parses the current status record. Returns ErrNoStatus when the
// file does not exist. A partially written record parses to whatever fields
// survived; missing keys fall back to defaults.
func (c *Channel) ReadStatus() (Record, error) {
	data, err := os.ReadFile(c.StatusPath())
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errors.ErrNoStatus
		}
		return Record{}, fmt.Errorf("read status file: %w", err)
	}

	rec := unmarshalRecord(data)

	c.mu.Lock()
	c.lastState = rec.State
	c.hasState = true
	c.mu.Unlock()

	return rec, nil
}

// IsRunning reports whether the last known state is STARTING or RUNNING.
func (c *Channel) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasState {
		return false
	}
	return c.lastState == StateStarting || c.lastState == StateRunning
}

// Cleanup deletes both the status and lock files. I/O failures are logged
// and swallowed; a leftover file is reclaimed via staleness anyway.
func (c *Channel) Cleanup() {
	for _, path := range []string{c.StatusPath(), c.LockPath()} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			c.logger.Warn("failed to remove channel file", "path", path, "error", err)
		}
	}
	c.mu.Lock()
	c.hasState = false
	c.mu.Unlock()
}
