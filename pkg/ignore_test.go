package dupimg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestIgnoreManagerCreatesTemplate(t *testing.T) {
	dir := t.TempDir()
	im := NewIgnoreManager(dir)

	if err := im.LoadIgnorePatterns(); err != nil {
		t.Fatalf("LoadIgnorePatterns failed: %v", err)
	}
	if len(im.Patterns()) != 0 {
		t.Errorf("Expected no patterns from template, got %d", len(im.Patterns()))
	}

	data, err := os.ReadFile(filepath.Join(dir, IgnoreFile))
	if err != nil {
		t.Fatalf("Template was not created: %v", err)
	}
	if !strings.HasPrefix(string(data), "# dupimg ignore patterns") {
		t.Errorf("Unexpected template content: %q", data)
	}
}

func TestIgnoreManagerLoadsPatterns(t *testing.T) {
	dir := t.TempDir()
	content := "# comment\n\n(^|/)\\.thumbnails(/|$)\n\\.xmp$\n"
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	im := NewIgnoreManager(dir)
	if err := im.LoadIgnorePatterns(); err != nil {
		t.Fatalf("LoadIgnorePatterns failed: %v", err)
	}
	if len(im.Patterns()) != 2 {
		t.Fatalf("Expected 2 patterns, got %d", len(im.Patterns()))
	}

	tests := []struct {
		path   string
		ignore bool
	}{
		{".thumbnails", true},
		{"2024/.thumbnails/a.jpg", true},
		{"2024/a.jpg.xmp", true},
		{"2024/a.jpg", false},
		{"thumbnails/a.jpg", false},
	}
	for _, tt := range tests {
		if got := im.ShouldIgnore(tt.path); got != tt.ignore {
			t.Errorf("ShouldIgnore(%q) = %v, want %v", tt.path, got, tt.ignore)
		}
	}
}

func TestIgnoreManagerInvalidPattern(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, IgnoreFile), []byte("(unclosed\n"), 0644); err != nil {
		t.Fatalf("Failed to write ignore file: %v", err)
	}

	if err := NewIgnoreManager(dir).LoadIgnorePatterns(); err == nil {
		t.Error("Expected error for invalid regex")
	}
	if err := NewIgnoreManager(dir).AddPattern("[z-a]"); err == nil {
		t.Error("Expected AddPattern to reject invalid regex")
	}
}
