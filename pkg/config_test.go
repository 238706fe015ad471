package dupimg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigDefaults(t *testing.T) {
	// Create a temporary directory for testing
	tempDir := t.TempDir()

	// Load config (should create default)
	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	all := config.GetAllConfig()
	if all.Compare.Threshold != 100 {
		t.Errorf("Expected default threshold 100, got %v", all.Compare.Threshold)
	}
	if all.Scan.Pattern != "*" {
		t.Errorf("Expected default pattern '*', got '%s'", all.Scan.Pattern)
	}
	if all.Performance.HashWorkers != 0 {
		t.Errorf("Expected default hash workers 0, got %d", all.Performance.HashWorkers)
	}
	if all.Output.Format != "human" {
		t.Errorf("Expected default format 'human', got '%s'", all.Output.Format)
	}
	if all.Files.Registry != DefaultRegistryFile || all.Files.Errors != DefaultErrorsFile {
		t.Errorf("Unexpected default file names: %+v", all.Files)
	}

	// Verify config file was created
	configPath := filepath.Join(tempDir, ConfigFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}
	if config.Path() != configPath {
		t.Errorf("Expected path %s, got %s", configPath, config.Path())
	}

	if err := config.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigLoadExisting(t *testing.T) {
	tempDir := t.TempDir()
	content := "[compare]\nthreshold = 92.5\n\n[output]\nformat = tree\n"
	if err := os.WriteFile(filepath.Join(tempDir, ConfigFile), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	all := config.GetAllConfig()
	if all.Compare.Threshold != 92.5 {
		t.Errorf("Expected threshold 92.5, got %v", all.Compare.Threshold)
	}
	if all.Output.Format != "tree" {
		t.Errorf("Expected format 'tree', got '%s'", all.Output.Format)
	}
	// missing sections fall back to defaults
	if all.Scan.Pattern != DefaultPattern {
		t.Errorf("Expected default pattern, got '%s'", all.Scan.Pattern)
	}
}

func TestConfigOverrides(t *testing.T) {
	tempDir := t.TempDir()

	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	err = config.ApplyOverrides([]string{
		"threshold:90",
		"pattern:*.jpg",
		"hash_workers:4",
		"format:json",
		"level:2",
		"debug:sync,compare",
	})
	if err != nil {
		t.Fatalf("Failed to apply overrides: %v", err)
	}

	all := config.GetAllConfig()
	if all.Compare.Threshold != 90 {
		t.Errorf("Expected threshold 90 after override, got %v", all.Compare.Threshold)
	}
	if all.Scan.Pattern != "*.jpg" {
		t.Errorf("Expected pattern '*.jpg' after override, got '%s'", all.Scan.Pattern)
	}
	if all.Performance.HashWorkers != 4 {
		t.Errorf("Expected 4 hash workers after override, got %d", all.Performance.HashWorkers)
	}
	if all.Output.Format != "json" {
		t.Errorf("Expected output format 'json' after override, got '%s'", all.Output.Format)
	}
	if all.Verbose.Level != 2 {
		t.Errorf("Expected verbose level 2 after override, got %d", all.Verbose.Level)
	}
	if all.Verbose.Debug != "sync,compare" {
		t.Errorf("Expected debug flags 'sync,compare' after override, got '%s'", all.Verbose.Debug)
	}

	// Overrides must not be persisted
	reloaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if reloaded.GetOutputConfig().Format != "human" {
		t.Error("Override was written to disk")
	}
}

func TestConfigOverrideErrors(t *testing.T) {
	config, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if err := config.ApplyOverrides([]string{"threshold=90"}); err == nil {
		t.Error("Expected error for override without ':'")
	}
	if err := config.ApplyOverrides([]string{"colour:blue"}); err == nil || !strings.Contains(err.Error(), "unsupported override key") {
		t.Errorf("Expected unsupported key error, got %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		override string
		valid    bool
	}{
		{"threshold:0", true},
		{"threshold:100", true},
		{"threshold:150", false},
		{"threshold:-1", false},
		{"threshold:high", false},
		{"threshold:NaN", false},
		{"threshold:Inf", false},
		{"pattern:[", false},
		{"hash_workers:300", false},
		{"format:xml", false},
		{"format:tree", true},
		{"level:4", false},
		{"registry:", false},
	}

	for _, tt := range tests {
		t.Run(tt.override, func(t *testing.T) {
			config, err := LoadConfig(t.TempDir())
			if err != nil {
				t.Fatalf("Failed to load config: %v", err)
			}
			if err := config.ApplyOverrides([]string{tt.override}); err != nil {
				t.Fatalf("Failed to apply override: %v", err)
			}

			err = config.Validate()
			if tt.valid && err != nil {
				t.Errorf("Expected %s to be valid, got %v", tt.override, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("Expected %s to be rejected", tt.override)
			}
		})
	}
}

func TestConfigSetPersists(t *testing.T) {
	tempDir := t.TempDir()
	config, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if err := config.Set("threshold", "85"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := config.Set("threshold", "500"); err == nil {
		t.Error("Expected Set to reject an invalid threshold")
	}

	reloaded, err := LoadConfig(tempDir)
	if err != nil {
		t.Fatalf("Failed to reload config: %v", err)
	}
	if got := reloaded.GetCompareConfig().Threshold; got != 85 {
		t.Errorf("Expected persisted threshold 85, got %v", got)
	}
}

func TestConfigOutputFormatNormalised(t *testing.T) {
	config, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if err := config.ApplyOverrides([]string{"format:JSON"}); err != nil {
		t.Fatalf("Failed to apply override: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Expected JSON to be accepted, got %v", err)
	}
	if got := config.GetOutputConfig().Format; got != "json" {
		t.Errorf("Expected format 'json', got '%s'", got)
	}
}
