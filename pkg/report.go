package dupimg

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/disiqueira/gotree/v3"
)

// WriteErrorReport writes one "errorMessage;identity" line per entry to path,
// replacing the file. Nothing is written when entries is empty.
func WriteErrorReport(path string, entries []FingerprintEntry) error {
	if len(entries) == 0 {
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create error report %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, entry := range entries {
		if _, err := fmt.Fprintf(w, "%s%s%s\n", entry.Err, EntryDelimiter, entry.Identity); err != nil {
			return fmt.Errorf("failed to write error report: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write error report: %w", err)
	}
	return file.Close()
}

// FormatCacheList renders registrations as a two-column table with a header
// and a dashed separator, each column padded to its widest value
func FormatCacheList(list []RegistryEntry) []string {
	const (
		keyHeader   = "CacheName"
		valueHeader = "CacheFile"
	)

	keyWidth, valueWidth := len(keyHeader), len(valueHeader)
	for _, entry := range list {
		keyWidth = max(keyWidth, len(entry.Key))
		valueWidth = max(valueWidth, len(entry.ID))
	}

	row := func(key, value string) string {
		return fmt.Sprintf("%-*s %-*s", keyWidth, key, valueWidth, value)
	}

	lines := []string{
		row(keyHeader, valueHeader),
		row(strings.Repeat("-", keyWidth), strings.Repeat("-", valueWidth)),
	}
	for _, entry := range list {
		lines = append(lines, row(entry.Key, entry.ID))
	}
	return lines
}

// RenderTree draws action results as a directory tree relative to root.
// Failed results are marked with "! ".
func RenderTree(root string, results []ActionResult) string {
	tree := gotree.New(root)
	dirs := make(map[string]gotree.Tree)

	var getDir func(dirPath string) gotree.Tree
	getDir = func(dirPath string) gotree.Tree {
		if dirPath == "." {
			return tree
		}
		dir := dirs[dirPath]
		if dir == nil {
			dir = getDir(filepath.Dir(dirPath)).Add(filepath.Base(dirPath))
			dirs[dirPath] = dir
		}
		return dir
	}

	for _, result := range results {
		rel, err := filepath.Rel(root, result.Entry.Identity)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = result.Entry.Identity
		}
		prefix := ""
		if result.Err != nil {
			prefix = "! "
		}
		getDir(filepath.Dir(rel)).Add(prefix + filepath.Base(rel))
	}
	return tree.Print()
}

// jsonResult is the JSON form of an ActionResult
type jsonResult struct {
	Path        string `json:"path"`
	Timestamp   int64  `json:"timestamp"`
	Fingerprint string `json:"fingerprint"`
	Target      string `json:"target,omitempty"`
	Error       string `json:"error,omitempty"`
}

// WriteJSON encodes action results as an indented JSON array
func WriteJSON(w io.Writer, results []ActionResult) error {
	out := make([]jsonResult, 0, len(results))
	for _, result := range results {
		jr := jsonResult{
			Path:        result.Entry.Identity,
			Timestamp:   result.Entry.Timestamp,
			Fingerprint: fmt.Sprintf("%016x", result.Entry.Fingerprint),
			Target:      result.Target,
		}
		if result.Err != nil {
			jr.Error = result.Err.Error()
		}
		out = append(out, jr)
	}

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
