package dupimg

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FingerprintEntry is one image file as recorded in a cache file.
// Two entries describe the same item iff their identities match; the
// timestamp and fingerprint may change between runs.
type FingerprintEntry struct {
	Identity    string // canonical absolute path
	Timestamp   int64  // creation time, UTC unix nanoseconds
	Fingerprint uint64 // perceptual hash, 0 when hashing failed
	Err         string // why Fingerprint is 0
}

// newCandidate builds an entry from a filesystem listing, fingerprint unset
func newCandidate(identity string, created time.Time) FingerprintEntry {
	return FingerprintEntry{
		Identity:  identity,
		Timestamp: created.UTC().UnixNano(),
	}
}

// Serialize renders the entry as a single cache line without trailing newline.
// The delimiter is not escaped inside the identity.
func (e FingerprintEntry) Serialize() string {
	return e.Identity + EntryDelimiter +
		strconv.FormatInt(e.Timestamp, 10) + EntryDelimiter +
		strconv.FormatUint(e.Fingerprint, 10)
}

// ParseEntry deserialises a cache line. It never fails: malformed numbers
// become 0 and a line with missing fields becomes an error entry.
func ParseEntry(line string) FingerprintEntry {
	fields := strings.Split(line, EntryDelimiter)

	entry := FingerprintEntry{Identity: fields[0]}
	if len(fields) < entryFieldCount {
		entry.Err = fmt.Sprintf("malformed cache line: expected %d fields, got %d", entryFieldCount, len(fields))
		return entry
	}

	if ts, err := strconv.ParseInt(fields[1], 10, 64); err == nil {
		entry.Timestamp = ts
	}
	if fp, err := strconv.ParseUint(fields[2], 10, 64); err == nil {
		entry.Fingerprint = fp
	}
	return entry
}

// Key returns the identity, the only field that takes part in equality
func (e FingerprintEntry) Key() string {
	return e.Identity
}

// Equal reports whether both entries describe the same file
func (e FingerprintEntry) Equal(other FingerprintEntry) bool {
	return e.Identity == other.Identity
}

// Compare orders entries by timestamp, older first
func (e FingerprintEntry) Compare(other FingerprintEntry) int {
	switch {
	case e.Timestamp < other.Timestamp:
		return -1
	case e.Timestamp > other.Timestamp:
		return 1
	default:
		return 0
	}
}

// HasError reports whether hashing failed for this entry
func (e FingerprintEntry) HasError() bool {
	return e.Fingerprint == 0
}

// Created returns the timestamp as a time.Time in UTC
func (e FingerprintEntry) Created() time.Time {
	return time.Unix(0, e.Timestamp).UTC()
}
