// Package ulid generates prefixed, lexicographically sortable identifiers
// on top of github.com/oklog/ulid/v2.
package ulid

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// PrefixRun marks identifiers of a single sonarfix invocation
	PrefixRun = "run"

	// PrefixSeparator is used to separate the prefix from the ULID
	PrefixSeparator = "-"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewWithTime creates a new ULID string with a specific timestamp
func NewWithTime(t time.Time) string {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// GenerateWithPrefix creates a new ULID with the current timestamp and a prefix
func GenerateWithPrefix(prefix string) string {
	id := NewWithTime(time.Now())
	if prefix == "" {
		return id
	}
	return prefix + PrefixSeparator + id
}

// RunID generates a new ULID with the run prefix
func RunID() string {
	return GenerateWithPrefix(PrefixRun)
}

// Time returns the timestamp encoded in a (possibly prefixed) ULID string
func Time(id string) (time.Time, error) {
	if i := strings.LastIndex(id, PrefixSeparator); i >= 0 {
		id = id[i+1:]
	}
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
