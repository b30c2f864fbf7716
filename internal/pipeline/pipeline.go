// Package pipeline wires a full run together: validate the two roots,
// scan both trees, match duplicates, delete them from the target, and
// prune emptied directories.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"treesweep/internal/config"
	"treesweep/internal/database"
	"treesweep/internal/dedupe"
	"treesweep/internal/limiter"
	"treesweep/internal/match"
	"treesweep/internal/metrics"
	"treesweep/internal/prune"
	"treesweep/internal/safety"
	"treesweep/internal/scan"

	"golang.org/x/sync/errgroup"
)

// Setup errors. All of them are fatal: nothing is scanned and nothing
// is deleted when root validation fails.
var (
	ErrMissingRoot  = errors.New("root does not exist")
	ErrNotDirectory = errors.New("root is not a directory")
	ErrSameRoot     = errors.New("reference and target are the same directory")
	ErrNestedRoots  = errors.New("reference and target trees overlap")
	ErrUnsafeRoot   = errors.New("refusing to operate on filesystem root")
)

// Roots holds the canonicalized tree roots after setup validation.
// Symlinks are resolved up front so every later path comparison works
// on the same canonical form.
type Roots struct {
	Reference string
	Target    string
}

// ResolveRoots validates the two positional arguments and returns the
// canonical roots. The reference tree is never modified, but it still
// must exist and be a directory.
func ResolveRoots(referenceArg, targetArg string) (*Roots, error) {
	reference, err := resolveDir(referenceArg)
	if err != nil {
		return nil, fmt.Errorf("reference root %s: %w", referenceArg, err)
	}
	target, err := resolveDir(targetArg)
	if err != nil {
		return nil, fmt.Errorf("target root %s: %w", targetArg, err)
	}

	if target == string(os.PathSeparator) {
		return nil, fmt.Errorf("%s: %w", targetArg, ErrUnsafeRoot)
	}
	if reference == target {
		return nil, fmt.Errorf("%s: %w", referenceArg, ErrSameRoot)
	}
	if isWithin(reference, target) || isWithin(target, reference) {
		return nil, fmt.Errorf("%s and %s: %w", referenceArg, targetArg, ErrNestedRoots)
	}

	return &Roots{Reference: reference, Target: target}, nil
}

func resolveDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrMissingRoot
		}
		return "", err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", ErrMissingRoot
	}
	if !info.IsDir() {
		return "", ErrNotDirectory
	}

	return resolved, nil
}

// isWithin reports whether child is inside parent. Equal paths are not
// within each other; that case is rejected separately.
func isWithin(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." {
		return false
	}
	return !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// Options configures a single run
type Options struct {
	Config   *config.Config
	DryRun   bool
	Logger   *log.Logger
	DB       *database.HistoryDB
	Observer scan.Observer
}

// Summary aggregates everything a run produced
type Summary struct {
	Reference  *scan.Result
	Target     *scan.Result
	Duplicates []match.DuplicateRecord
	Outcome    *dedupe.Outcome
	Prune      *prune.Outcome
	Duration   time.Duration
}

// Run executes one full pass over validated roots. Per-file problems
// are collected in the summary; the returned error is non-nil only
// when the run as a whole could not proceed.
func Run(ctx context.Context, roots *Roots, opts Options) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	start := time.Now()

	metrics.RecordRun()
	mode := "COMMIT"
	if opts.DryRun {
		mode = "DRY_RUN"
	}
	metrics.SetRunMode(mode)
	logger.Printf("run mode: %s", mode)

	// Initialize CPU limiter if configured
	var throttle scan.Throttler
	if cfg.ResourceLimits.MaxCPUPercent > 0 {
		throttle = limiter.NewCPULimiter(cfg.ResourceLimits.MaxCPUPercent)
	}

	scanner := scan.NewScanner(scan.Options{
		Workers:  cfg.Workers,
		Excludes: cfg.Exclude,
		Observer: opts.Observer,
		Throttle: throttle,
		Logger:   logger,
	})

	summary := &Summary{}

	// Scan both trees concurrently. Neither scan writes anything, so
	// the only shared state is the observer.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := scanTree(gctx, scanner, roots.Reference, "reference")
		if err != nil {
			return err
		}
		summary.Reference = res
		return nil
	})
	g.Go(func() error {
		res, err := scanTree(gctx, scanner, roots.Target, "target")
		if err != nil {
			return err
		}
		summary.Target = res
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.ErrorsTotal.Inc()
		return summary, err
	}

	summary.Duplicates = match.Find(summary.Reference.Index, summary.Target.Index)
	metrics.DuplicatesFoundTotal.Add(float64(len(summary.Duplicates)))
	logger.Printf("matched %d duplicate(s) across %d target file(s)",
		len(summary.Duplicates), len(summary.Target.Index.Entries))

	executor := dedupe.NewExecutor(logger, nil, opts.DryRun, opts.DB)
	executor.SetValidator(safety.NewValidator(roots.Target, roots.Reference))

	outcome, err := executor.Execute(ctx, summary.Duplicates)
	summary.Outcome = outcome
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return summary, err
	}

	// Prune only after real deletions; a dry run must leave the tree
	// untouched
	if !opts.DryRun && outcome.Deleted > 0 && !cfg.KeepEmptyDirs {
		pruner := prune.NewPruner(roots.Target, logger, opts.DB)
		pruner.SetValidator(safety.NewValidator(roots.Target, roots.Reference))

		pruneOutcome, err := pruner.Prune(ctx)
		summary.Prune = pruneOutcome
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return summary, err
			}
			// Pruning is best effort; a failed walk never fails the run
			logger.Printf("prune pass failed: %v", err)
			metrics.ErrorsTotal.Inc()
		}
	}

	summary.Duration = time.Since(start)
	metrics.RunDuration.Observe(summary.Duration.Seconds())

	logger.Printf("run complete: duplicates=%d deleted=%d failures=%d freed=%d bytes duration=%.3fs",
		len(summary.Duplicates), outcome.Deleted, len(outcome.Failures), outcome.BytesFreed,
		summary.Duration.Seconds())

	return summary, nil
}

func scanTree(ctx context.Context, scanner *scan.Scanner, root, label string) (*scan.Result, error) {
	scanStart := time.Now()

	res, err := scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s tree: %w", label, err)
	}

	metrics.ScanDuration.Observe(time.Since(scanStart).Seconds())
	metrics.RecordTreeScan(label, len(res.Index.Entries), len(res.Skipped))
	return res, nil
}
