package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"treesweep/internal/config"
	"treesweep/internal/database"
	"treesweep/internal/disk"
	"treesweep/internal/exitcodes"
	"treesweep/internal/logging"
	"treesweep/internal/metrics"
	"treesweep/internal/pipeline"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	dryRun     bool
	verbose    bool
	assumeYes  bool
	workers    int
	excludes   []string
	dbPath     string
)

// runFailure marks errors raised after setup succeeded. Setup problems
// and runtime problems map to different exit codes.
type runFailure struct {
	err error
}

func (e *runFailure) Error() string { return e.err.Error() }
func (e *runFailure) Unwrap() error { return e.err }

func main() {
	rootCmd := &cobra.Command{
		Use:   "treesweep <ReferenceDir> <TargetDir>",
		Short: "Delete files from a target tree that already exist in a reference tree",
		Long: `treesweep compares a mutable target tree against an immutable
reference tree and deletes every target file whose relative path and
content both match the reference. The reference tree is never written
to. Without --dry-run, a confirmation is required before anything is
deleted.`,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date),
		Args:          cobra.ExactArgs(2),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would be deleted without deleting anything")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log every visited file")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
	rootCmd.Flags().IntVar(&workers, "workers", 0, "Number of fingerprint workers (0 = auto)")
	rootCmd.Flags().StringSliceVar(&excludes, "exclude", nil, "Glob patterns to skip (multiple allowed)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to configuration file")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Path to deletion history database")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "treesweep: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := logging.NewWithConfig(cfg)
	logger.Printf("treesweep %s starting", version)
	if dryRun {
		logger.Println("DRY RUN MODE: No files will be deleted")
	}

	roots, err := pipeline.ResolveRoots(args[0], args[1])
	if err != nil {
		return err
	}
	logger.Printf("reference: %s", roots.Reference)
	logger.Printf("target:    %s", roots.Target)

	if !dryRun && !assumeYes {
		if !confirm(roots) {
			logger.Println("Aborted; nothing was deleted")
			return nil
		}
	}

	// Initialize metrics (Prometheus)
	metrics.Init()
	metricsStarted := false
	if cfg.MetricsEnabled() {
		addr := cfg.MetricsAddress()
		logger.Printf("Starting Prometheus metrics on %s", addr)
		metrics.StartServer(addr, logger)
		metricsStarted = true
	}

	// Open deletion history database
	var db *database.HistoryDB
	if cfg.HistoryEnabled() {
		logger.Printf("Opening deletion history database: %s", cfg.DatabasePath)
		db, err = database.NewHistoryDB(cfg.DatabasePath)
		if err != nil {
			return &runFailure{fmt.Errorf("opening history database: %w", err)}
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Printf("ERROR: Failed to close database: %v", err)
			}
		}()
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	summary, err := pipeline.Run(ctx, roots, pipeline.Options{
		Config:   cfg,
		DryRun:   dryRun,
		Logger:   logger,
		DB:       db,
		Observer: newProgress(logger, verbose),
	})
	if err != nil {
		return &runFailure{err}
	}

	printSummary(logger, roots, summary)

	if metricsStarted {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		metrics.Shutdown(shutdownCtx, logger)
		shutdownCancel()
	}

	return nil
}

// loadConfig reads the config file if one was given and applies flag
// overrides on top
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configPath != "" {
		cfg, err = config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Default()
	}

	if workers > 0 {
		cfg.Workers = workers
	}
	cfg.Exclude = append(cfg.Exclude, excludes...)
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}

	return cfg, nil
}

// confirm asks for an explicit "yes" on stdin. Anything else, including
// EOF, declines.
func confirm(roots *pipeline.Roots) bool {
	fmt.Printf("About to delete files under %s that duplicate %s.\n", roots.Target, roots.Reference)
	fmt.Print("Type 'yes' to continue: ")

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}

func printSummary(logger interface{ Printf(string, ...interface{}) }, roots *pipeline.Roots, summary *pipeline.Summary) {
	outcome := summary.Outcome

	logger.Printf("reference files: %d (%d skipped)",
		len(summary.Reference.Index.Entries), len(summary.Reference.Skipped))
	logger.Printf("target files:    %d (%d skipped)",
		len(summary.Target.Index.Entries), len(summary.Target.Skipped))
	logger.Printf("duplicates:      %d", len(summary.Duplicates))

	if outcome.DryRun {
		logger.Printf("would delete %d file(s), freeing %s", outcome.Deleted, formatBytes(outcome.BytesFreed))
	} else {
		logger.Printf("deleted %d file(s), freed %s", outcome.Deleted, formatBytes(outcome.BytesFreed))
	}

	if summary.Prune != nil && summary.Prune.Removed() > 0 {
		logger.Printf("pruned %d empty director(ies)", summary.Prune.Removed())
	}

	for _, failure := range outcome.Failures {
		logger.Printf("FAILED %s: %v", failure.RelPath, failure.Err)
	}
	if n := len(outcome.Failures); n > 0 {
		logger.Printf("%d file(s) could not be deleted; see above", n)
	}

	if !outcome.DryRun && outcome.Deleted > 0 {
		if usage, err := disk.Stat(roots.Target); err == nil {
			logger.Printf("filesystem now %s free of %s (%.1f%%)",
				formatBytes(usage.FreeBytes), formatBytes(usage.TotalBytes), usage.FreePercent())
		}
	}

	logger.Printf("done in %.3fs", summary.Duration.Seconds())
}

// progress reports scan activity. Both trees are scanned concurrently,
// so the counter is atomic.
type progress struct {
	logger  interface{ Printf(string, ...interface{}) }
	verbose bool
	count   atomic.Int64
}

func newProgress(logger interface{ Printf(string, ...interface{}) }, verbose bool) *progress {
	return &progress{logger: logger, verbose: verbose}
}

func (p *progress) FileVisited(relPath string) {
	n := p.count.Add(1)
	if p.verbose {
		p.logger.Printf("visited %s", relPath)
		return
	}
	if n%100 == 0 {
		p.logger.Printf("scanned %d files...", n)
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// exitCodeFor maps an error to the documented exit codes. Collected
// per-file failures never reach here; they leave the exit code at 0.
func exitCodeFor(err error) int {
	if err == nil {
		return exitcodes.Success
	}
	if errors.Is(err, pipeline.ErrUnsafeRoot) {
		return exitcodes.SafetyViolation
	}
	var rf *runFailure
	if errors.As(err, &rf) {
		return exitcodes.RuntimeError
	}
	return exitcodes.SetupError
}
