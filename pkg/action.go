package dupimg

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ActionResult is the outcome of applying a DuplicateAction to one entry
type ActionResult struct {
	Entry  FingerprintEntry
	Target string // path reported or moved to
	Err    error
}

// Message returns the line shown to the operator: the target path, or the
// failure reason
func (r ActionResult) Message() string {
	if r.Err != nil {
		return r.Err.Error()
	}
	return r.Target
}

// DuplicateAction is applied to every resolved duplicate
type DuplicateAction interface {
	Apply(entry FingerprintEntry) ActionResult
}

// ReportAction leaves files alone and reports their path
type ReportAction struct{}

// Apply implements DuplicateAction
func (ReportAction) Apply(entry FingerprintEntry) ActionResult {
	return ActionResult{Entry: entry, Target: entry.Identity}
}

// MoveAction relocates duplicates under DstRoot, preserving their path
// relative to SrcRoot
type MoveAction struct {
	SrcRoot string
	DstRoot string
	Move    func(src, dst string) error // default MoveFile
}

// NewMoveAction validates both roots and returns a move action
func NewMoveAction(srcRoot, dstRoot string) (*MoveAction, error) {
	src, err := CheckSourceDir(srcRoot)
	if err != nil {
		return nil, err
	}
	dst, err := CheckSourceDir(dstRoot)
	if err != nil {
		return nil, err
	}
	return &MoveAction{SrcRoot: src, DstRoot: dst, Move: MoveFile}, nil
}

// Destination maps a file under SrcRoot to its place under DstRoot
func (a *MoveAction) Destination(identity string) (string, error) {
	rel, err := filepath.Rel(a.SrcRoot, identity)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is not under %s", identity, a.SrcRoot)
	}
	return filepath.Join(a.DstRoot, rel), nil
}

// Apply implements DuplicateAction; failures are returned in the result
func (a *MoveAction) Apply(entry FingerprintEntry) ActionResult {
	result := ActionResult{Entry: entry}

	dst, err := a.Destination(entry.Identity)
	if err != nil {
		result.Err = err
		return result
	}
	result.Target = dst

	move := a.Move
	if move == nil {
		move = MoveFile
	}
	if err := move(entry.Identity, dst); err != nil {
		result.Err = err
		return result
	}

	VerboseLog(2, "Moved %s -> %s", entry.Identity, dst)
	return result
}

// ApplyAction applies action to every entry in order. A failing entry never
// stops the batch.
func ApplyAction(entries []FingerprintEntry, action DuplicateAction) []ActionResult {
	results := make([]ActionResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, action.Apply(entry))
	}
	return results
}

// MoveFile moves src to dst, creating missing parent directories and
// replacing an existing dst. Moves across filesystems fall back to copy and
// remove.
func MoveFile(src, dst string) error {
	if _, err := os.Lstat(src); err != nil {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return fmt.Errorf("failed to move %s: %w", src, err)
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to copy %s across filesystems: %w", src, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied %s but failed to remove it: %w", src, err)
	}
	return nil
}

// copyFile copies src to dst through a temporary file in dst's directory
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tempPath := dst + tempFileSuffix
	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tempPath)
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tempPath)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tempPath)
		return err
	}
	return os.Rename(tempPath, dst)
}
