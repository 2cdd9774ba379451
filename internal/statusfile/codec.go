package statusfile

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Wire keys for the status file.
const (
	keyStatus    = "status"
	keyMessage   = "message"
	keyProgress  = "progress"
	keyTimestamp = "timestamp"
	keySessionID = "sessionId"
	keyFiles     = "files"
)

// Wire keys for the lock file.
const (
	keyLockSession   = "sessionId"
	keyLockTimestamp = "timestamp"
	keyLockPID       = "pid"
)

// marshalRecord serializes a Record as newline-delimited key=value pairs.
// Timestamps travel as Unix milliseconds; files are comma-joined.
func marshalRecord(rec Record) []byte {
	var sb strings.Builder
	writePair(&sb, keyStatus, rec.State.String())
	writePair(&sb, keyMessage, sanitize(rec.Message))
	writePair(&sb, keyProgress, strconv.FormatFloat(rec.Progress, 'f', 4, 64))
	writePair(&sb, keyTimestamp, strconv.FormatInt(rec.Timestamp.UnixMilli(), 10))
	writePair(&sb, keySessionID, rec.SessionID)
	writePair(&sb, keyFiles, strings.Join(rec.Files, ","))
	return []byte(sb.String())
}

// unmarshalRecord parses the key=value format. Missing keys fall back to
// zero-value defaults; an unrecognized state name defaults to STARTING.
func unmarshalRecord(data []byte) Record {
	pairs := parsePairs(data)

	rec := Record{
		State:     ParseState(pairs[keyStatus]),
		Message:   pairs[keyMessage],
		SessionID: pairs[keySessionID],
	}
	if v, err := strconv.ParseFloat(pairs[keyProgress], 64); err == nil {
		rec.Progress = clampProgress(v)
	}
	if v, err := strconv.ParseInt(pairs[keyTimestamp], 10, 64); err == nil {
		rec.Timestamp = time.UnixMilli(v)
	}
	if raw := pairs[keyFiles]; raw != "" {
		rec.Files = strings.Split(raw, ",")
	}
	return rec
}

// marshalLock serializes a LockRecord.
func marshalLock(lock LockRecord) []byte {
	var sb strings.Builder
	writePair(&sb, keyLockSession, lock.SessionID)
	writePair(&sb, keyLockTimestamp, strconv.FormatInt(lock.Timestamp.UnixMilli(), 10))
	writePair(&sb, keyLockPID, strconv.Itoa(lock.PID))
	return []byte(sb.String())
}

// unmarshalLock parses a LockRecord; missing keys fall back to defaults.
func unmarshalLock(data []byte) LockRecord {
	pairs := parsePairs(data)

	lock := LockRecord{SessionID: pairs[keyLockSession]}
	if v, err := strconv.ParseInt(pairs[keyLockTimestamp], 10, 64); err == nil {
		lock.Timestamp = time.UnixMilli(v)
	}
	if v, err := strconv.Atoi(pairs[keyLockPID]); err == nil {
		lock.PID = v
	}
	return lock
}

// parsePairs splits newline-delimited key=value lines into a map.
// Malformed lines are ignored; the value keeps any embedded '=' characters.
func parsePairs(data []byte) map[string]string {
	pairs := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

func writePair(sb *strings.Builder, key, value string) {
	fmt.Fprintf(sb, "%s=%s\n", key, value)
}

// sanitize strips newlines from free-text values so they cannot break the
// line-oriented wire format.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "\r", " ")
}

func clampProgress(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
