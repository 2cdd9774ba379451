package coordinator

import (
	"testing"
	"time"
)

func TestSessionIDOrderIndependent(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 15, 0, time.UTC)

	a := SessionID([]string{"core/A.java", "api/B.java"}, now)
	b := SessionID([]string{"api/B.java", "core/A.java"}, now)
	if a != b {
		t.Errorf("SessionID order-sensitive: %q vs %q", a, b)
	}
}

func TestSessionIDDistinguishesFileSets(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 15, 0, time.UTC)

	a := SessionID([]string{"core/A.java"}, now)
	b := SessionID([]string{"core/B.java"}, now)
	if a == b {
		t.Error("different file sets produced the same session ID")
	}
}

func TestSessionIDMinuteBucket(t *testing.T) {
	files := []string{"core/A.java"}
	base := time.Date(2025, 6, 1, 12, 30, 5, 0, time.UTC)

	same := SessionID(files, base.Add(30*time.Second))
	if got := SessionID(files, base); got != same {
		t.Errorf("same minute bucket produced different IDs: %q vs %q", got, same)
	}

	next := SessionID(files, base.Add(2*time.Minute))
	if next == same {
		t.Error("different minute buckets produced the same session ID")
	}
}
