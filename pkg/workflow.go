package dupimg

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// SyncOptions controls how a folder is reconciled with its fingerprint store
type SyncOptions struct {
	Pattern  string         // glob matched against base names, default "*"
	Workers  int            // concurrent hash workers, 0 means GOMAXPROCS
	Loader   ImageLoader    // default LoadImage
	Hash     HashFunc       // default PerceptualHash
	Ignore   *IgnoreManager // optional, patterns must already be loaded
	Shutdown <-chan struct{}
}

// SyncStats summarises one SyncFolder run
type SyncStats struct {
	Discovered int64 // files matching the pattern
	Hashed     int64 // fingerprints (re)computed
	Reused     int64 // entries kept because the timestamp was unchanged
	Failed     int64 // entries without a valid fingerprint afterwards
}

type syncCounters struct {
	discovered atomic.Int64
	hashed     atomic.Int64
	reused     atomic.Int64
	failed     atomic.Int64
}

func (c *syncCounters) snapshot() SyncStats {
	return SyncStats{
		Discovered: c.discovered.Load(),
		Hashed:     c.hashed.Load(),
		Reused:     c.reused.Load(),
		Failed:     c.failed.Load(),
	}
}

// effectiveWorkers bounds the worker count to a small multiple of the CPU count
func effectiveWorkers(requested int) int {
	maxWorkers := 4 * runtime.NumCPU()
	switch {
	case requested <= 0:
		return runtime.GOMAXPROCS(0)
	case requested > maxWorkers:
		return maxWorkers
	default:
		return requested
	}
}

// SyncFolder reconciles the store with the current contents of path.
//
// Every matching file is looked up by identity. New files and files whose
// creation timestamp differs from the stored one are decoded and hashed;
// files with an unchanged timestamp keep their stored fingerprint, even if
// their content changed. Decode and hash failures are recorded as entries
// with a zero fingerprint and never abort the run.
//
// progress, if not nil, receives each resulting entry on a single goroutine
// decoupled from the workers, so a slow callback never delays hashing. All
// callbacks have returned when SyncFolder returns.
func (s *FingerprintStore) SyncFolder(path string, opts SyncOptions, progress func(FingerprintEntry)) (SyncStats, error) {
	defer VerboseEnter()()

	var counters syncCounters

	root, err := CheckSourceDir(path)
	if err != nil {
		return counters.snapshot(), err
	}

	loader := opts.Loader
	if loader == nil {
		loader = LoadImage
	}
	hash := opts.Hash
	if hash == nil {
		hash = PerceptualHash
	}
	workers := effectiveWorkers(opts.Workers)

	VerboseLog(1, "Syncing %s with %d hash workers", root, workers)

	sink := newProgressSink(progress)
	candidates := make(chan FingerprintEntry, workers)

	var group errgroup.Group
	group.Go(func() error {
		return scanFiles(root, scanOptions{
			Pattern:  opts.Pattern,
			Ignore:   opts.Ignore,
			Shutdown: opts.Shutdown,
		}, candidates)
	})

	for i := 0; i < workers; i++ {
		group.Go(func() error {
			for candidate := range candidates {
				if isClosed(opts.Shutdown) {
					continue
				}
				counters.discovered.Add(1)

				entry, computed := s.resolve(candidate, func(c FingerprintEntry) FingerprintEntry {
					return fingerprintFile(c, loader, hash)
				})

				if computed {
					counters.hashed.Add(1)
					DebugLog("sync", "hashed %s -> %016x", entry.Identity, entry.Fingerprint)
				} else {
					counters.reused.Add(1)
				}
				if entry.HasError() {
					counters.failed.Add(1)
				}

				sink.Push(entry)
			}
			return nil
		})
	}

	err = group.Wait()
	sink.Close()

	stats := counters.snapshot()
	if err == nil && isClosed(opts.Shutdown) {
		err = ErrInterrupted
	}
	if err != nil {
		if errors.Is(err, ErrInterrupted) {
			return stats, fmt.Errorf("sync of %s: %w", root, err)
		}
		return stats, err
	}

	VerboseLog(1, "Synced %s: %d files, %d hashed, %d reused, %d failed",
		root, stats.Discovered, stats.Hashed, stats.Reused, stats.Failed)
	return stats, nil
}

// fingerprintFile decodes and hashes the candidate's file. Any failure,
// including a panicking decoder, is recorded in the returned entry.
func fingerprintFile(candidate FingerprintEntry, loader ImageLoader, hash HashFunc) (entry FingerprintEntry) {
	entry = candidate
	entry.Fingerprint = 0
	entry.Err = ""

	defer func() {
		if r := recover(); r != nil {
			entry.Fingerprint = 0
			entry.Err = fmt.Sprintf("panic while hashing: %v", r)
		}
	}()

	img, err := loader(entry.Identity)
	if err != nil {
		entry.Err = err.Error()
		return entry
	}

	fingerprint, err := hash(img)
	if err != nil {
		entry.Err = err.Error()
		return entry
	}
	if fingerprint == 0 {
		entry.Err = "Perceptual hash is zero"
		return entry
	}

	entry.Fingerprint = fingerprint
	return entry
}

func isClosed(ch <-chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// progressSink delivers entries to a callback without ever blocking the
// producer for longer than an append to an in-memory queue
type progressSink struct {
	in   chan FingerprintEntry
	done chan struct{}
}

func newProgressSink(callback func(FingerprintEntry)) *progressSink {
	ps := &progressSink{
		in:   make(chan FingerprintEntry),
		done: make(chan struct{}),
	}
	out := make(chan FingerprintEntry)

	go func() {
		defer close(out)
		var queue []FingerprintEntry
		in := ps.in
		for in != nil || len(queue) > 0 {
			var sendChan chan FingerprintEntry
			var next FingerprintEntry
			if len(queue) > 0 {
				sendChan = out
				next = queue[0]
			}

			select {
			case entry, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				queue = append(queue, entry)
			case sendChan <- next:
				queue = queue[1:]
			}
		}
	}()

	go func() {
		defer close(ps.done)
		for entry := range out {
			if callback != nil {
				callback(entry)
			}
		}
	}()

	return ps
}

// Push queues an entry for the callback
func (ps *progressSink) Push(entry FingerprintEntry) {
	ps.in <- entry
}

// Close stops accepting entries and waits for queued callbacks to finish
func (ps *progressSink) Close() {
	close(ps.in)
	<-ps.done
}
