package coordinator

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"
)

// sessionBucket is the coarse time bucket folded into session IDs, so the
// same change set triggered moments apart maps to the same session.
const sessionBucket = time.Minute

// SessionID derives the correlation id for one formatting attempt from the
// sorted changed-file set and a coarse time bucket.
func SessionID(files []string, now time.Time) string {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	h := fnv.New64a()
	h.Write([]byte(strings.Join(sorted, "\x00")))

	bucket := now.Unix() / int64(sessionBucket/time.Second)
	return fmt.Sprintf("%016x-%d", h.Sum64(), bucket)
}
