package dupimg

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/google/vectorio"
	"golang.org/x/sync/singleflight"
)

// fallbackIOVMax is the iovec count per writev call, per golang/go#58623
const fallbackIOVMax = 1024

// maxCacheLine bounds a single cache line when loading
const maxCacheLine = 1024 * 1024

// FingerprintStore holds the fingerprint entries of one source folder and is
// backed by exactly one cache file. Lookups and updates are safe for
// concurrent use; at most one fingerprint computation runs per identity.
type FingerprintStore struct {
	path     string
	mu       sync.Mutex
	index    *entryIndex
	inflight singleflight.Group
}

// NewFingerprintStore creates an empty store bound to the given cache file
func NewFingerprintStore(path string) *FingerprintStore {
	return &FingerprintStore{
		path:  path,
		index: newEntryIndex(16),
	}
}

// Path returns the backing cache file
func (s *FingerprintStore) Path() string {
	return s.path
}

// Len returns the number of entries, including failed ones
func (s *FingerprintStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Length()
}

// Get returns the entry stored under identity
func (s *FingerprintStore) Get(identity string) (FingerprintEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, _, ok := s.index.Find(identity)
	return entry, ok
}

// Entries returns a snapshot of all entries in ascending identity order
func (s *FingerprintStore) Entries() []FingerprintEntry {
	return s.collect(func(FingerprintEntry) bool { return true })
}

// Errors returns the entries whose fingerprint could not be computed
func (s *FingerprintStore) Errors() []FingerprintEntry {
	return s.collect(FingerprintEntry.HasError)
}

func (s *FingerprintStore) collect(keep func(FingerprintEntry) bool) []FingerprintEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]FingerprintEntry, 0, s.index.Length())
	s.index.ForEach(func(entry FingerprintEntry, context string) bool {
		if keep(entry) {
			entries = append(entries, entry)
		}
		return true
	})
	return entries
}

// put stores entry, replacing any entry with the same identity
func (s *FingerprintStore) put(entry FingerprintEntry, context string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index.Put(entry, context)
}

// resolve looks the candidate up by identity and decides whether its
// fingerprint must be (re)computed. A stored entry with the same timestamp is
// kept as is. Concurrent calls for the same identity share one computation.
func (s *FingerprintStore) resolve(candidate FingerprintEntry, compute func(FingerprintEntry) FingerprintEntry) (FingerprintEntry, bool) {
	type outcome struct {
		entry    FingerprintEntry
		computed bool
	}

	v, _, _ := s.inflight.Do(candidate.Identity, func() (interface{}, error) {
		if stored, ok := s.Get(candidate.Identity); ok && stored.Timestamp == candidate.Timestamp {
			return outcome{entry: stored}, nil
		}

		updated := compute(candidate)
		s.put(updated, ScanContext)
		return outcome{entry: updated, computed: true}, nil
	})

	result := v.(outcome)
	return result.entry, result.computed
}

// Load reads the backing cache file, if any, into the store. When a file
// lists the same identity twice the last line wins.
func (s *FingerprintStore) Load() error {
	defer VerboseEnter()()

	file, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open cache file %s: %w", s.path, err)
	}
	defer file.Close()

	loaded := newEntryIndex(16)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxCacheLine)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		entry := ParseEntry(line)
		if entry.Err != "" {
			DebugLog("sync", "%s:%d: %s", s.path, lineNum, entry.Err)
		}
		loaded.Put(entry, CacheContext)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading cache file %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.index.Merge(loaded, MergeTheirs); err != nil {
		return fmt.Errorf("failed to merge cache file %s: %w", s.path, err)
	}

	VerboseLog(2, "Loaded %d entries from %s", loaded.Length(), s.path)
	return nil
}

// Save writes every entry whose file still exists and whose fingerprint is
// valid, one line each, replacing the backing file. Failed and vanished
// entries are pruned from disk but stay in memory.
func (s *FingerprintStore) Save() error {
	defer VerboseEnter()()

	var lines [][]byte
	for _, entry := range s.Entries() {
		if entry.HasError() || !isRegularFile(entry.Identity) {
			continue
		}
		lines = append(lines, []byte(entry.Serialize()+"\n"))
	}

	tempPath := s.path + tempFileSuffix
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create temp cache file %s: %w", tempPath, err)
	}

	if err := writeLines(file, lines); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write cache file %s: %w", s.path, err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync cache file %s: %w", s.path, err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close cache file %s: %w", s.path, err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename cache file: %w", err)
	}

	VerboseLog(2, "Saved %d entries to %s", len(lines), s.path)
	return nil
}

// writeLines writes all lines with vectored writes, chunked to the iovec limit
func writeLines(file *os.File, lines [][]byte) error {
	if len(lines) == 0 {
		return nil
	}

	iovecs := make([]syscall.Iovec, 0, len(lines))
	totalSize := 0
	for _, line := range lines {
		iovec := syscall.Iovec{Base: &line[0]}
		iovec.SetLen(len(line))
		iovecs = append(iovecs, iovec)
		totalSize += len(line)
	}

	totalWritten := 0
	for offset := 0; offset < len(iovecs); offset += fallbackIOVMax {
		end := offset + fallbackIOVMax
		if end > len(iovecs) {
			end = len(iovecs)
		}

		nw, err := vectorio.WritevRaw(uintptr(file.Fd()), iovecs[offset:end])
		if err != nil {
			return fmt.Errorf("failed to write lines with vectorio: %w", err)
		}
		totalWritten += nw
	}

	if totalWritten != totalSize {
		return fmt.Errorf("write incomplete: wrote %d bytes, expected %d", totalWritten, totalSize)
	}
	return nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
