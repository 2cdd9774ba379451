package statusfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/noorall/fmtgate/internal/errors"
	"github.com/noorall/fmtgate/internal/logging"
)

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	return NewChannel(t.TempDir(), logging.NopLogger())
}

func TestStatusRoundTrip(t *testing.T) {
	ch := newTestChannel(t)

	states := []State{
		StateStarting, StateRunning, StateSuccess,
		StateFailed, StateTimeout, StateCancelled,
	}

	for _, state := range states {
		t.Run(state.String(), func(t *testing.T) {
			want := Record{
				State:     state,
				Message:   "formatting module core/api",
				Progress:  0.5,
				Timestamp: time.Now().Truncate(time.Millisecond),
				SessionID: "sess-42",
				Files:     []string{"core/api/A.java", "core/api/B.java"},
			}

			if err := ch.WriteStatus(want); err != nil {
				t.Fatalf("WriteStatus failed: %v", err)
			}
			got, err := ch.ReadStatus()
			if err != nil {
				t.Fatalf("ReadStatus failed: %v", err)
			}

			if got.State != want.State {
				t.Errorf("State = %v, want %v", got.State, want.State)
			}
			if got.Message != want.Message {
				t.Errorf("Message = %q, want %q", got.Message, want.Message)
			}
			if got.Progress != want.Progress {
				t.Errorf("Progress = %v, want %v", got.Progress, want.Progress)
			}
			if !got.Timestamp.Equal(want.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, want.Timestamp)
			}
			if got.SessionID != want.SessionID {
				t.Errorf("SessionID = %q, want %q", got.SessionID, want.SessionID)
			}
			if len(got.Files) != len(want.Files) {
				t.Fatalf("Files = %v, want %v", got.Files, want.Files)
			}
			for i := range got.Files {
				if got.Files[i] != want.Files[i] {
					t.Errorf("Files[%d] = %q, want %q", i, got.Files[i], want.Files[i])
				}
			}
		})
	}
}

func TestReadStatusDefaults(t *testing.T) {
	ch := newTestChannel(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := ch.ReadStatus()
		if !errors.Is(err, errors.ErrNoStatus) {
			t.Errorf("expected ErrNoStatus, got %v", err)
		}
	})

	t.Run("unknown state name defaults to STARTING", func(t *testing.T) {
		if err := os.MkdirAll(ch.Dir(), 0755); err != nil {
			t.Fatal(err)
		}
		raw := "status=EXPLODED\nsessionId=s1\n"
		if err := os.WriteFile(ch.StatusPath(), []byte(raw), 0644); err != nil {
			t.Fatal(err)
		}

		rec, err := ch.ReadStatus()
		if err != nil {
			t.Fatalf("ReadStatus failed: %v", err)
		}
		if rec.State != StateStarting {
			t.Errorf("State = %v, want StateStarting", rec.State)
		}
		if rec.SessionID != "s1" {
			t.Errorf("SessionID = %q, want s1", rec.SessionID)
		}
	})

	t.Run("missing keys fall back to defaults", func(t *testing.T) {
		if err := os.WriteFile(ch.StatusPath(), []byte("status=RUNNING\n"), 0644); err != nil {
			t.Fatal(err)
		}

		rec, err := ch.ReadStatus()
		if err != nil {
			t.Fatalf("ReadStatus failed: %v", err)
		}
		if rec.Progress != 0 {
			t.Errorf("Progress = %v, want 0", rec.Progress)
		}
		if len(rec.Files) != 0 {
			t.Errorf("Files = %v, want empty", rec.Files)
		}
	})

	t.Run("torn record parses what survived", func(t *testing.T) {
		if err := os.WriteFile(ch.StatusPath(), []byte("status=RUNNING\nprogr"), 0644); err != nil {
			t.Fatal(err)
		}

		rec, err := ch.ReadStatus()
		if err != nil {
			t.Fatalf("ReadStatus failed: %v", err)
		}
		if rec.State != StateRunning {
			t.Errorf("State = %v, want StateRunning", rec.State)
		}
	})
}

func TestMessageNewlinesSanitized(t *testing.T) {
	ch := newTestChannel(t)

	err := ch.WriteStatus(Record{
		State:     StateFailed,
		Message:   "line one\nline two",
		SessionID: "s1",
	})
	if err != nil {
		t.Fatalf("WriteStatus failed: %v", err)
	}

	rec, err := ch.ReadStatus()
	if err != nil {
		t.Fatalf("ReadStatus failed: %v", err)
	}
	if rec.Message != "line one line two" {
		t.Errorf("Message = %q, newlines should be flattened", rec.Message)
	}
	if rec.SessionID != "s1" {
		t.Errorf("SessionID = %q, want s1 (format must survive multi-line message)", rec.SessionID)
	}
}

func TestAcquireLock(t *testing.T) {
	t.Run("succeeds with no existing lock", func(t *testing.T) {
		ch := newTestChannel(t)
		if err := ch.AcquireLock("sess-1"); err != nil {
			t.Fatalf("AcquireLock failed: %v", err)
		}

		lock, err := ch.ReadLock()
		if err != nil {
			t.Fatalf("ReadLock failed: %v", err)
		}
		if lock.SessionID != "sess-1" {
			t.Errorf("SessionID = %q, want sess-1", lock.SessionID)
		}
		if lock.PID != os.Getpid() {
			t.Errorf("PID = %d, want %d", lock.PID, os.Getpid())
		}
	})

	t.Run("fails while unexpired lock exists", func(t *testing.T) {
		ch := newTestChannel(t)
		if err := ch.AcquireLock("sess-1"); err != nil {
			t.Fatalf("first AcquireLock failed: %v", err)
		}

		err := ch.AcquireLock("sess-2")
		if !errors.Is(err, errors.ErrLockHeld) {
			t.Errorf("expected ErrLockHeld, got %v", err)
		}
	})

	t.Run("succeeds once lock age exceeds staleness threshold", func(t *testing.T) {
		ch := newTestChannel(t)

		stale := LockRecord{
			SessionID: "crashed",
			Timestamp: time.Now().Add(-StalenessThreshold - time.Minute),
			PID:       99999,
		}
		if err := os.MkdirAll(ch.Dir(), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(ch.LockPath(), marshalLock(stale), 0644); err != nil {
			t.Fatal(err)
		}

		// No explicit release required.
		if err := ch.AcquireLock("sess-2"); err != nil {
			t.Fatalf("AcquireLock over stale lock failed: %v", err)
		}

		lock, err := ch.ReadLock()
		if err != nil {
			t.Fatalf("ReadLock failed: %v", err)
		}
		if lock.SessionID != "sess-2" {
			t.Errorf("SessionID = %q, want sess-2", lock.SessionID)
		}
	})
}

func TestLockIsStale(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		age  time.Duration
		want bool
	}{
		{name: "fresh", age: time.Second, want: false},
		{name: "just under threshold", age: StalenessThreshold - time.Second, want: false},
		{name: "at threshold", age: StalenessThreshold, want: true},
		{name: "well past threshold", age: time.Hour, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lock := LockRecord{Timestamp: now.Add(-tt.age)}
			if got := lock.IsStale(now); got != tt.want {
				t.Errorf("IsStale(age=%s) = %v, want %v", tt.age, got, tt.want)
			}
		})
	}
}

func TestIsRunning(t *testing.T) {
	ch := newTestChannel(t)

	if ch.IsRunning() {
		t.Error("IsRunning should be false before any state is known")
	}

	for _, tt := range []struct {
		state State
		want  bool
	}{
		{StateStarting, true},
		{StateRunning, true},
		{StateSuccess, false},
		{StateFailed, false},
		{StateTimeout, false},
		{StateCancelled, false},
	} {
		if err := ch.WriteStatus(Record{State: tt.state, SessionID: "s"}); err != nil {
			t.Fatalf("WriteStatus failed: %v", err)
		}
		if got := ch.IsRunning(); got != tt.want {
			t.Errorf("IsRunning after %v = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestCleanup(t *testing.T) {
	ch := newTestChannel(t)

	if err := ch.AcquireLock("sess-1"); err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	if err := ch.WriteStatus(Record{State: StateSuccess, SessionID: "sess-1"}); err != nil {
		t.Fatalf("WriteStatus failed: %v", err)
	}

	ch.Cleanup()

	for _, path := range []string{ch.StatusPath(), ch.LockPath()} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("%s should be removed after Cleanup", filepath.Base(path))
		}
	}

	// Cleanup of an already-clean channel is harmless.
	ch.Cleanup()
}
