package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	dupimg "github.com/mattkeenan/dupimg/pkg"
)

// options holds the command-line flags of a single invocation
type options struct {
	cacheDir    string
	threshold   float64
	movePath    string
	cacheList   bool
	cacheDelete string
	pattern     string
	workers     int
	format      string
	verbose     int
	debug       string
	overrides   []string
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "dupimg [SrcPath]",
		Short: "Find visually similar images in a folder",
		Long: `dupimg hashes every image under SrcPath with a perceptual hash and reports
the newer file of each pair whose hashes are at least --threshold percent alike.
Hashes are cached per folder, so later runs only hash new or changed files.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.cacheDir, "cache-dir", ".", "directory holding the cache registry, cache files and config")
	flags.Float64VarP(&opts.threshold, "threshold", "t", dupimg.DefaultThreshold, "minimum similarity in percent (0-100)")
	flags.StringVarP(&opts.movePath, "move", "m", "", "move duplicates into this folder, keeping their relative paths")
	flags.BoolVarP(&opts.cacheList, "cache-list", "l", false, "list registered caches")
	flags.StringVarP(&opts.cacheDelete, "cache-delete", "d", "", "delete the cache registered for a source folder")
	flags.StringVar(&opts.pattern, "pattern", "", "file name glob (default from config)")
	flags.IntVar(&opts.workers, "workers", 0, "concurrent hash workers, 0 = GOMAXPROCS (default from config)")
	flags.StringVar(&opts.format, "format", "", "output format: human, json, tree (default from config)")
	flags.IntVarP(&opts.verbose, "verbose", "v", -1, "verbose level 0-3 (default from config)")
	flags.StringVar(&opts.debug, "debug", "", "comma-separated debug flags")
	flags.StringArrayVarP(&opts.overrides, "override", "o", nil, "config override key:value, may be repeated")

	return cmd
}

// flagOverrides turns explicitly set flags into config overrides so they
// take precedence over dupimg.ini
func flagOverrides(cmd *cobra.Command, opts *options) []string {
	overrides := append([]string(nil), opts.overrides...)
	flags := cmd.Flags()
	if flags.Changed("threshold") {
		overrides = append(overrides, "threshold:"+strconv.FormatFloat(opts.threshold, 'f', -1, 64))
	}
	if flags.Changed("pattern") {
		overrides = append(overrides, "pattern:"+opts.pattern)
	}
	if flags.Changed("workers") {
		overrides = append(overrides, "hash_workers:"+strconv.Itoa(opts.workers))
	}
	if flags.Changed("format") {
		overrides = append(overrides, "format:"+opts.format)
	}
	return overrides
}

func run(cmd *cobra.Command, opts *options, args []string) error {
	cfg, err := dupimg.LoadConfig(opts.cacheDir)
	if err != nil {
		return err
	}
	if err := cfg.ApplyOverrides(flagOverrides(cmd, opts)); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	all := cfg.GetAllConfig()
	writeOutput, err := newResultWriter(all.Output.Format)
	if err != nil {
		return err
	}
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	dupimg.ConfigureLogging(all.Verbose, opts.verbose, opts.debug)
	dupimg.VerboseLog(2, "Using config %s", cfg.Path())

	registry, err := dupimg.OpenCacheRegistry(opts.cacheDir, all.Files.Registry)
	if err != nil {
		return err
	}

	switch {
	case opts.cacheList:
		for _, line := range dupimg.FormatCacheList(registry.List()) {
			fmt.Fprintln(stdout, line)
		}
		return nil
	case opts.cacheDelete != "":
		return deleteCache(stdout, registry, opts.cacheDelete)
	case len(args) == 0:
		return cmd.Help()
	}

	srcPath, err := dupimg.CheckSourceDir(args[0])
	if err != nil {
		return err
	}

	var action dupimg.DuplicateAction = dupimg.ReportAction{}
	if opts.movePath != "" {
		moveAction, err := dupimg.NewMoveAction(srcPath, opts.movePath)
		if err != nil {
			return err
		}
		action = moveAction
	}

	ignore := dupimg.NewIgnoreManager(opts.cacheDir)
	if err := ignore.LoadIgnorePatterns(); err != nil {
		return err
	}

	store, created, err := registry.GetOrCreate(srcPath)
	if err != nil {
		return err
	}
	if created {
		dupimg.VerboseLog(1, "Registered new cache %s for %s", filepath.Base(store.Path()), srcPath)
	}

	// progress lines must not corrupt JSON on stdout
	progressOut := stdout
	if all.Output.Format == "json" {
		progressOut = stderr
	}
	progress := newProgressPrinter(progressOut)

	fmt.Fprintln(progressOut, "Processing...")
	stats, err := store.SyncFolder(srcPath, dupimg.SyncOptions{
		Pattern:  all.Scan.Pattern,
		Workers:  all.Performance.HashWorkers,
		Ignore:   ignore,
		Shutdown: setupSignalHandler(),
	}, progress.Print)
	progress.Done()
	if err != nil {
		return err
	}
	dupimg.VerboseLog(1, "Discovered %d, hashed %d, reused %d, failed %d",
		stats.Discovered, stats.Hashed, stats.Reused, stats.Failed)

	if err := reportErrors(stderr, store, filepath.Join(opts.cacheDir, all.Files.Errors)); err != nil {
		return err
	}

	fmt.Fprintln(progressOut, "Comparing...")
	comparer := dupimg.NewSimilarityComparer(all.Compare.Threshold)
	results := dupimg.ApplyAction(dupimg.ResolveDuplicates(store, comparer), action)

	// moves have happened, so the cache is saved even if printing fails
	writeErr := writeOutput(stdout, srcPath, results)
	if err := store.Save(); err != nil {
		return err
	}
	return writeErr
}

// deleteCache removes the registration for key, trying the absolute form of
// the path when the literal one is not registered. An unknown key is not an
// error.
func deleteCache(out io.Writer, registry *dupimg.CacheRegistry, key string) error {
	deleted, err := registry.Delete(key)
	if err != nil {
		return err
	}
	if !deleted {
		if abs, absErr := filepath.Abs(key); absErr == nil && abs != key {
			if deleted, err = registry.Delete(abs); err != nil {
				return err
			}
		}
	}
	if deleted {
		fmt.Fprintln(out, "Cache deleted.")
	} else {
		dupimg.VerboseLog(1, "No cache registered for %s", key)
	}
	return nil
}

// reportErrors writes failed entries to the errors report and tells the user
// where to find it
func reportErrors(out io.Writer, store *dupimg.FingerprintStore, path string) error {
	failed := store.Errors()
	if len(failed) == 0 {
		return nil
	}
	if err := dupimg.WriteErrorReport(path, failed); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d file(s) has error. See '%s'\n", len(failed), path)
	return nil
}
