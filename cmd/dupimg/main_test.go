package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dupimg "github.com/mattkeenan/dupimg/pkg"
)

func TestFlagOverrides(t *testing.T) {
	opts := &options{}
	cmd := newRootCommand()
	cmd.Flags().Set("threshold", "92.5")
	cmd.Flags().Set("format", "json")

	// Changed comes from cmd, values from opts
	opts.threshold = 92.5
	opts.format = "json"
	opts.overrides = []string{"level:1"}

	got := flagOverrides(cmd, opts)
	want := []string{"level:1", "threshold:92.5", "format:json"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Errorf("Expected overrides %v, got %v", want, got)
	}
}

func TestWriteResults(t *testing.T) {
	results := []dupimg.ActionResult{
		{Entry: dupimg.FingerprintEntry{Identity: "/p/a.jpg"}, Target: "/p/a.jpg"},
		{Entry: dupimg.FingerprintEntry{Identity: "/p/b.jpg"}, Err: errors.New("permission denied")},
	}

	var human bytes.Buffer
	if err := writeResults(&human, "human", "/p", results); err != nil {
		t.Fatalf("human output failed: %v", err)
	}
	if human.String() != "/p/a.jpg\npermission denied\n" {
		t.Errorf("Unexpected human output: %q", human.String())
	}

	var tree bytes.Buffer
	if err := writeResults(&tree, "tree", "/p", results); err != nil {
		t.Fatalf("tree output failed: %v", err)
	}
	if !strings.Contains(tree.String(), "! b.jpg") {
		t.Errorf("Unexpected tree output: %q", tree.String())
	}

	var js bytes.Buffer
	if err := writeResults(&js, "json", "/p", results); err != nil {
		t.Fatalf("json output failed: %v", err)
	}
	if !strings.HasPrefix(js.String(), "[") {
		t.Errorf("Unexpected json output: %q", js.String())
	}

	if err := writeResults(&bytes.Buffer{}, "xml", "/p", results); err == nil {
		t.Error("Expected error for unknown format")
	}
	if err := writeResults(&bytes.Buffer{}, "JSON", "/p", results); err != nil {
		t.Errorf("Expected format names to be case-insensitive, got %v", err)
	}
}

func TestRunCacheListAndDelete(t *testing.T) {
	cacheDir := t.TempDir()
	srcDir := t.TempDir()

	registry, err := dupimg.OpenCacheRegistry(cacheDir, dupimg.DefaultRegistryFile)
	if err != nil {
		t.Fatalf("OpenCacheRegistry failed: %v", err)
	}
	if _, _, err := registry.GetOrCreate(srcDir); err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}

	cmd := newRootCommand()
	cmd.SetArgs([]string{"--cache-dir", cacheDir, "--cache-delete", srcDir})
	cmd.SetOut(&bytes.Buffer{})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("cache delete failed: %v", err)
	}

	reopened, err := dupimg.OpenCacheRegistry(cacheDir, dupimg.DefaultRegistryFile)
	if err != nil {
		t.Fatalf("OpenCacheRegistry failed: %v", err)
	}
	if len(reopened.List()) != 0 {
		t.Errorf("Expected empty registry, got %v", reopened.List())
	}

	cmd = newRootCommand()
	cmd.SetArgs([]string{"--cache-dir", cacheDir, "--cache-delete", srcDir})
	if err := cmd.Execute(); err != nil {
		t.Errorf("Deleting an unknown cache should be a no-op, got %v", err)
	}
}

func TestRunMissingSource(t *testing.T) {
	cacheDir := t.TempDir()
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--cache-dir", cacheDir, filepath.Join(cacheDir, "missing")})
	err := cmd.Execute()
	if !errors.Is(err, dupimg.ErrDirectoryNotFound) {
		t.Errorf("Expected ErrDirectoryNotFound, got %v", err)
	}

	if _, err := os.Stat(filepath.Join(cacheDir, dupimg.ConfigFile)); err != nil {
		t.Errorf("Expected default config to be created: %v", err)
	}
}

func writeTestPNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write PNG: %v", err)
	}
}

func gradient(size int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8((x + y) * 255 / (2 * size))
			if x < size/3 && y < size/3 {
				v = 255
			}
			img.Set(x, y, color.RGBA{v, v / 2, 255 - v, 255})
		}
	}
	return img
}

func noise(size int, seed int64) image.Image {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, size, size))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

// photoFolder creates a.png and sub/b.png with the same picture, b written
// second so it is the newer copy, plus an unrelated c.png
func photoFolder(t *testing.T) (srcDir, duplicate string) {
	t.Helper()
	srcDir = t.TempDir()
	writeTestPNG(t, filepath.Join(srcDir, "a.png"), gradient(64))
	duplicate = filepath.Join(srcDir, "sub", "b.png")
	writeTestPNG(t, duplicate, gradient(64))
	writeTestPNG(t, filepath.Join(srcDir, "c.png"), noise(64, 3))
	return srcDir, duplicate
}

func executeRoot(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

// cacheLines returns the saved cache lines for srcDir
func cacheLines(t *testing.T, cacheDir, srcDir string) []string {
	t.Helper()
	registry, err := dupimg.OpenCacheRegistry(cacheDir, dupimg.DefaultRegistryFile)
	if err != nil {
		t.Fatalf("OpenCacheRegistry failed: %v", err)
	}
	id, ok := registry.Lookup(srcDir)
	if !ok {
		t.Fatalf("No cache registered for %s", srcDir)
	}
	data, err := os.ReadFile(registry.CachePath(id))
	if err != nil {
		t.Fatalf("Cache file was not written: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRunReportsDuplicates(t *testing.T) {
	cacheDir := t.TempDir()
	srcDir, duplicate := photoFolder(t)

	stdout, _, err := executeRoot(t, "--cache-dir", cacheDir, "-t", "100", srcDir)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	if lines[0] != "Processing..." {
		t.Errorf("Expected output to start with Processing..., got %q", lines[0])
	}
	if lines[len(lines)-2] != "Comparing..." || lines[len(lines)-1] != duplicate {
		t.Errorf("Expected Comparing... followed by %s, got %q", duplicate, lines)
	}

	if got := cacheLines(t, cacheDir, srcDir); len(got) != 3 {
		t.Errorf("Expected 3 cache lines, got %q", got)
	}
	if _, err := os.Stat(duplicate); err != nil {
		t.Errorf("Report mode must not touch files: %v", err)
	}
}

func TestRunMovesNewerDuplicate(t *testing.T) {
	cacheDir := t.TempDir()
	dstDir := t.TempDir()
	srcDir, duplicate := photoFolder(t)

	stdout, _, err := executeRoot(t, "--cache-dir", cacheDir, "--move", dstDir, srcDir)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	target := filepath.Join(dstDir, "sub", "b.png")
	if !strings.HasSuffix(strings.TrimRight(stdout, "\n"), target) {
		t.Errorf("Expected output to end with %s, got %q", target, stdout)
	}
	if _, err := os.Stat(target); err != nil {
		t.Errorf("Duplicate was not moved: %v", err)
	}
	if _, err := os.Stat(duplicate); !os.IsNotExist(err) {
		t.Error("Duplicate still present in the source folder")
	}
	if _, err := os.Stat(filepath.Join(srcDir, "a.png")); err != nil {
		t.Errorf("Older copy must stay: %v", err)
	}

	// the moved file is pruned from the saved cache
	if got := cacheLines(t, cacheDir, srcDir); len(got) != 2 {
		t.Errorf("Expected 2 cache lines, got %q", got)
	}
}

func TestRunJSONOutputAnyCase(t *testing.T) {
	cacheDir := t.TempDir()
	srcDir, duplicate := photoFolder(t)

	stdout, stderr, err := executeRoot(t, "--cache-dir", cacheDir, "--format", "JSON", srcDir)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	var decoded []map[string]interface{}
	if err := json.Unmarshal([]byte(stdout), &decoded); err != nil {
		t.Fatalf("stdout is not a JSON document: %v\n%s", err, stdout)
	}
	if len(decoded) != 1 || decoded[0]["path"] != duplicate {
		t.Errorf("Expected one result for %s, got %v", duplicate, decoded)
	}
	if !strings.Contains(stderr, "Processing...") {
		t.Errorf("Expected progress on stderr, got %q", stderr)
	}

	if got := cacheLines(t, cacheDir, srcDir); len(got) != 3 {
		t.Errorf("Expected 3 cache lines, got %q", got)
	}
}

func TestRunUnknownFormatMovesNothing(t *testing.T) {
	cacheDir := t.TempDir()
	dstDir := t.TempDir()
	srcDir, duplicate := photoFolder(t)

	if _, _, err := executeRoot(t, "--cache-dir", cacheDir, "--format", "xml", "--move", dstDir, srcDir); err == nil {
		t.Fatal("Expected an unknown format to be rejected")
	}
	if _, err := os.Stat(duplicate); err != nil {
		t.Errorf("No file may be moved when the format is rejected: %v", err)
	}
}
