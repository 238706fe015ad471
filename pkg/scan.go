package dupimg

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// ErrDirectoryNotFound is returned when a source folder is missing or not a directory
var ErrDirectoryNotFound = errors.New("directory not found")

// ErrInterrupted is returned when a shutdown signal stops a sync
var ErrInterrupted = errors.New("interrupted by shutdown")

// CheckSourceDir returns the cleaned absolute form of dir, or an error
// wrapping ErrDirectoryNotFound
func CheckSourceDir(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	info, err := os.Stat(absDir)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrDirectoryNotFound, dir)
	}
	return filepath.Clean(absDir), nil
}

// scanOptions controls file enumeration
type scanOptions struct {
	Pattern  string
	Ignore   *IgnoreManager
	Shutdown <-chan struct{}
}

// scanFiles walks root recursively and streams a candidate entry for every
// regular file whose base name matches the pattern. Unreadable entries below
// root are skipped. The channel is closed when the walk ends.
func scanFiles(root string, opts scanOptions, resultChan chan<- FingerprintEntry) error {
	defer VerboseEnter()()
	defer close(resultChan)

	pattern := opts.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid file pattern %q: %w", pattern, err)
	}

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return fmt.Errorf("%w: %s", ErrDirectoryNotFound, root)
			}
			DebugLog("scan", "skipping %s: %v", path, err)
			return nil
		}

		if path != root && opts.Ignore != nil {
			if relPath, relErr := filepath.Rel(root, path); relErr == nil && opts.Ignore.ShouldIgnore(relPath) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if matched, _ := filepath.Match(pattern, d.Name()); !matched {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			DebugLog("scan", "skipping %s: %v", path, err)
			return nil
		}

		candidate := newCandidate(path, fileCreationTime(path, info))
		DebugLog("scan", "found %s", path)

		select {
		case <-opts.Shutdown:
			return ErrInterrupted
		case resultChan <- candidate:
		}
		return nil
	})
}

// fileCreationTime returns the birth time of path when the filesystem
// records one, otherwise its modification time
func fileCreationTime(path string, info fs.FileInfo) time.Time {
	var stx unix.Statx_t
	err := unix.Statx(unix.AT_FDCWD, path, unix.AT_SYMLINK_NOFOLLOW, unix.STATX_BTIME, &stx)
	if err == nil && stx.Mask&unix.STATX_BTIME != 0 {
		return time.Unix(stx.Btime.Sec, int64(stx.Btime.Nsec)).UTC()
	}
	return info.ModTime().UTC()
}
