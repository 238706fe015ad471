package dupimg

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-ini/ini"
)

// Config represents the dupimg configuration file
type Config struct {
	configPath string
	ini        *ini.File
}

// CompareConfig represents similarity comparison settings
type CompareConfig struct {
	Threshold float64 // percent of matching bits, 0-100
}

// ScanConfig represents folder enumeration settings
type ScanConfig struct {
	Pattern string // glob matched against file names
}

// PerformanceConfig represents performance-related configuration
type PerformanceConfig struct {
	HashWorkers int // concurrent hash workers, 0 = GOMAXPROCS
}

// OutputConfig represents output format configuration
type OutputConfig struct {
	Format string // human, json, tree
}

// VerboseConfig represents verbosity configuration
type VerboseConfig struct {
	Level int    // 0=quiet, 1=basic, 2=detailed, 3=trace
	Debug string // comma-separated debug flags
}

// FilesConfig names the files kept in the cache directory
type FilesConfig struct {
	Registry string
	Errors   string
}

// AllConfig represents all configuration options
type AllConfig struct {
	Compare     *CompareConfig
	Scan        *ScanConfig
	Performance *PerformanceConfig
	Output      *OutputConfig
	Verbose     *VerboseConfig
	Files       *FilesConfig
}

// configDefaults lists section, key and default value of every option
var configDefaults = []struct {
	section, key, value string
}{
	{"compare", "threshold", "100"},
	{"scan", "pattern", DefaultPattern},
	{"performance", "hash_workers", "0"},
	{"output", "format", "human"},
	{"verbose", "level", "0"},
	{"verbose", "debug", ""},
	{"files", "registry", DefaultRegistryFile},
	{"files", "errors", DefaultErrorsFile},
}

// overrideKeys maps command-line override keys to their section
var overrideKeys = map[string]string{
	"threshold":    "compare",
	"pattern":      "scan",
	"hash_workers": "performance",
	"format":       "output",
	"level":        "verbose",
	"debug":        "verbose",
	"registry":     "files",
	"errors":       "files",
}

// LoadConfig loads the configuration from dir, creating a default file
// when none exists
func LoadConfig(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ConfigFile)
	cfg := &Config{configPath: configPath}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		cfg.ini = ini.Empty()
		if err := cfg.setDefaults(); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save default config: %w", err)
		}
		return cfg, nil
	}

	iniFile, err := ini.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	cfg.ini = iniFile
	return cfg, nil
}

// setDefaults writes every default key into an empty file
func (c *Config) setDefaults() error {
	for _, d := range configDefaults {
		section, err := c.ini.GetSection(d.section)
		if err != nil {
			section, err = c.ini.NewSection(d.section)
			if err != nil {
				return fmt.Errorf("failed to create %s section: %w", d.section, err)
			}
		}
		if _, err := section.NewKey(d.key, d.value); err != nil {
			return fmt.Errorf("failed to set default %s.%s: %w", d.section, d.key, err)
		}
	}
	return nil
}

// Path returns the config file location
func (c *Config) Path() string {
	return c.configPath
}

func (c *Config) stringValue(section, key, fallback string) string {
	if c.ini.HasSection(section) {
		if s := c.ini.Section(section); s.HasKey(key) {
			return s.Key(key).String()
		}
	}
	return fallback
}

// GetCompareConfig returns the comparison configuration
func (c *Config) GetCompareConfig() *CompareConfig {
	compareConfig := &CompareConfig{Threshold: DefaultThreshold}
	if c.ini.HasSection("compare") {
		section := c.ini.Section("compare")
		if section.HasKey("threshold") {
			if threshold, err := section.Key("threshold").Float64(); err == nil {
				compareConfig.Threshold = threshold
			}
		}
	}
	return compareConfig
}

// GetScanConfig returns the scan configuration
func (c *Config) GetScanConfig() *ScanConfig {
	return &ScanConfig{Pattern: c.stringValue("scan", "pattern", DefaultPattern)}
}

// GetPerformanceConfig returns the performance configuration
func (c *Config) GetPerformanceConfig() *PerformanceConfig {
	performanceConfig := &PerformanceConfig{HashWorkers: 0}
	if c.ini.HasSection("performance") {
		section := c.ini.Section("performance")
		if section.HasKey("hash_workers") {
			if workers, err := section.Key("hash_workers").Int(); err == nil {
				performanceConfig.HashWorkers = workers
			}
		}
	}
	return performanceConfig
}

// GetOutputConfig returns the output configuration, format lowercased
func (c *Config) GetOutputConfig() *OutputConfig {
	format := c.stringValue("output", "format", "human")
	return &OutputConfig{Format: strings.ToLower(strings.TrimSpace(format))}
}

// GetVerboseConfig returns the verbose configuration
func (c *Config) GetVerboseConfig() *VerboseConfig {
	verboseConfig := &VerboseConfig{
		Debug: c.stringValue("verbose", "debug", ""),
	}
	if c.ini.HasSection("verbose") {
		section := c.ini.Section("verbose")
		if section.HasKey("level") {
			if level, err := section.Key("level").Int(); err == nil {
				verboseConfig.Level = level
			}
		}
	}
	return verboseConfig
}

// GetFilesConfig returns the cache directory file names
func (c *Config) GetFilesConfig() *FilesConfig {
	return &FilesConfig{
		Registry: c.stringValue("files", "registry", DefaultRegistryFile),
		Errors:   c.stringValue("files", "errors", DefaultErrorsFile),
	}
}

// GetAllConfig returns all configuration options
func (c *Config) GetAllConfig() *AllConfig {
	return &AllConfig{
		Compare:     c.GetCompareConfig(),
		Scan:        c.GetScanConfig(),
		Performance: c.GetPerformanceConfig(),
		Output:      c.GetOutputConfig(),
		Verbose:     c.GetVerboseConfig(),
		Files:       c.GetFilesConfig(),
	}
}

// Set stores a single value and saves the file
func (c *Config) Set(key, value string) error {
	if err := c.ApplyOverrides([]string{key + ":" + value}); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return c.Save()
}

// Save saves the configuration to disk
func (c *Config) Save() error {
	return c.ini.SaveTo(c.configPath)
}

// ApplyOverrides applies command-line overrides to the in-memory configuration.
// Accepts strings like "threshold:90", "format:json", "level:2", "debug:sync".
// Overrides are not saved.
func (c *Config) ApplyOverrides(overrides []string) error {
	for _, override := range overrides {
		parts := strings.SplitN(override, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid override format '%s', expected 'key:value'", override)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		section, ok := overrideKeys[key]
		if !ok {
			return fmt.Errorf("unsupported override key '%s' (supported: threshold, pattern, hash_workers, format, level, debug, registry, errors)", key)
		}
		c.ini.Section(section).Key(key).SetValue(value)
	}
	return nil
}

// Validate checks every option
func (c *Config) Validate() error {
	all := c.GetAllConfig()

	if err := ValidateThreshold(c.stringValue("compare", "threshold", "100")); err != nil {
		return err
	}
	if err := ValidatePattern(all.Scan.Pattern); err != nil {
		return err
	}
	if err := ValidateHashWorkers(all.Performance.HashWorkers); err != nil {
		return err
	}
	if err := ValidateOutputFormat(all.Output.Format); err != nil {
		return err
	}
	if err := ValidateVerboseLevel(all.Verbose.Level); err != nil {
		return err
	}
	if all.Files.Registry == "" || all.Files.Errors == "" {
		return fmt.Errorf("registry and errors file names must not be empty")
	}
	return nil
}

// ValidateThreshold validates a threshold given as text
func ValidateThreshold(value string) error {
	threshold, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid threshold: %s", value)
	}
	if math.IsNaN(threshold) || threshold < MinThreshold || threshold > MaxThreshold {
		return fmt.Errorf("threshold must be between 0 and 100, got: %s", value)
	}
	return nil
}

// ValidatePattern validates a file name glob
func ValidatePattern(pattern string) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid file pattern: %s", pattern)
	}
	return nil
}

// ValidateHashWorkers validates that the hash worker count is reasonable
func ValidateHashWorkers(workers int) error {
	if workers < 0 {
		return fmt.Errorf("hash workers must not be negative, got: %d", workers)
	}
	if workers > 256 {
		return fmt.Errorf("hash workers should not exceed 256, got: %d", workers)
	}
	return nil
}

// ValidateOutputFormat validates that an output format is supported
func ValidateOutputFormat(format string) error {
	switch strings.ToLower(format) {
	case "human", "json", "tree":
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s (supported: human, json, tree)", format)
	}
}

// ValidateVerboseLevel validates that a verbose level is valid
func ValidateVerboseLevel(level int) error {
	if level < 0 || level > 3 {
		return fmt.Errorf("invalid verbose level: %d (supported: 0-3)", level)
	}
	return nil
}
