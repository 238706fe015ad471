package dupimg

import (
	zcsl "github.com/mattkeenan/zerocopyskiplist"
)

// Context constants for skiplist entries
const (
	CacheContext = "cache" // loaded from the cache file
	ScanContext  = "scan"  // (re)computed during this run
)

// File constants
const (
	DefaultRegistryFile = "dupimg.cache.json"
	DefaultErrorsFile   = "errors.txt"
	ConfigFile          = "dupimg.ini"
	IgnoreFile          = "dupimg.ignore"
	CacheFileSuffix     = ".txt"
	tempFileSuffix      = ".tmp"
)

// Cache line format
const (
	EntryDelimiter  = ";"
	entryFieldCount = 3
)

// Similarity threshold bounds, in percent
const (
	MinThreshold     = 0.0
	MaxThreshold     = 100.0
	DefaultThreshold = MaxThreshold
)

// FingerprintBits is the width of a perceptual hash
const FingerprintBits = 64

// DefaultPattern matches every file name
const DefaultPattern = "*"

// MergeTheirs lets loaded cache lines replace in-memory entries
const MergeTheirs = zcsl.MergeTheirs
