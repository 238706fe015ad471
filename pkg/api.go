package dupimg

// InitDebugFlags initialises debug flags - for CLI compatibility
func InitDebugFlags(flagsStr string) {
	if flagsStr != "" {
		SetDebugFlags(flagsStr)
	}
}

// ConfigureLogging applies the verbose section of a configuration.
// A non-negative level or a non-empty debug string from the command line wins.
func ConfigureLogging(cfg *VerboseConfig, levelOverride int, debugOverride string) {
	level := cfg.Level
	if levelOverride >= 0 {
		level = levelOverride
	}
	SetVerboseLevel(level)

	debug := cfg.Debug
	if debugOverride != "" {
		debug = debugOverride
	}
	InitDebugFlags(debug)

	if level > 0 && debug != "" {
		VerboseLog(1, "Debug flags initialised: %s", debug)
	}
}
