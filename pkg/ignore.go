package dupimg

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const ignoreFileHeader = `# dupimg ignore patterns
#
# Regular expressions matched against paths relative to the scanned folder,
# using forward slashes. Matching files are not hashed; matching directories
# are not descended into.
#
# Examples:
# (^|/)\.thumbnails(/|$)   # Ignore thumbnail caches
# \.(xmp|txt|json)$        # Ignore sidecar files
# ^Trash(/|$)              # Ignore a top-level Trash folder
`

// IgnoreManager holds ignore patterns loaded from the cache directory
type IgnoreManager struct {
	ignorePath string
	patterns   []*regexp.Regexp
	loaded     bool
}

// NewIgnoreManager creates an ignore manager for the given cache directory
func NewIgnoreManager(cacheDir string) *IgnoreManager {
	return &IgnoreManager{
		ignorePath: filepath.Join(cacheDir, IgnoreFile),
	}
}

// LoadIgnorePatterns loads patterns from the ignore file, creating a
// commented template when the file does not exist yet
func (im *IgnoreManager) LoadIgnorePatterns() error {
	if im.loaded {
		return nil
	}

	file, err := os.Open(im.ignorePath)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(im.ignorePath, []byte(ignoreFileHeader), 0644); err != nil {
			return fmt.Errorf("failed to create ignore file: %w", err)
		}
		im.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open ignore file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		pattern, err := regexp.Compile(line)
		if err != nil {
			return fmt.Errorf("invalid regex pattern at line %d: %s - %w", lineNum, line, err)
		}
		im.patterns = append(im.patterns, pattern)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ignore file: %w", err)
	}

	im.loaded = true
	VerboseLog(2, "Loaded %d ignore patterns from %s", len(im.patterns), im.ignorePath)
	return nil
}

// AddPattern adds an ignore pattern for this run only
func (im *IgnoreManager) AddPattern(patternStr string) error {
	pattern, err := regexp.Compile(patternStr)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %s - %w", patternStr, err)
	}
	im.patterns = append(im.patterns, pattern)
	return nil
}

// ShouldIgnore checks a path relative to the scanned folder.
// Patterns must be loaded before scanning starts.
func (im *IgnoreManager) ShouldIgnore(relativePath string) bool {
	normalisedPath := filepath.ToSlash(relativePath)
	for _, pattern := range im.patterns {
		if pattern.MatchString(normalisedPath) {
			return true
		}
	}
	return false
}

// Patterns returns the loaded patterns
func (im *IgnoreManager) Patterns() []*regexp.Regexp {
	return im.patterns
}

// Path returns the ignore file location
func (im *IgnoreManager) Path() string {
	return im.ignorePath
}
