package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"treesweep/internal/fingerprint"
)

// Logger interface for structured logging
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// stdLogger wraps standard log.Logger to implement Logger interface
type stdLogger struct {
	*log.Logger
}

func (l *stdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *stdLogger) Warn(msg string, args ...interface{}) {
	l.logWithLevel("WARN", msg, args...)
}

func (l *stdLogger) Debug(msg string, args ...interface{}) {
	l.logWithLevel("DEBUG", msg, args...)
}

func (l *stdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Observer receives a synchronous notification for every regular file the
// walk visits. A nil observer is a legal no-op configuration. Observers
// must not influence what ends up in the index.
type Observer interface {
	FileVisited(relPath string)
}

// Throttler is an optional pacing hook invoked by hash workers between
// files
type Throttler interface {
	Throttle()
}

// FileEntry is one scanned regular file. RelPath is the slash-normalized
// path relative to the scan root and the only cross-tree comparison key;
// AbsPath is used solely for I/O.
type FileEntry struct {
	RelPath string
	AbsPath string
	Digest  fingerprint.Digest
	Size    int64
}

// TreeIndex maps relative paths to entries for one scanned root. It is
// built once per scan and treated as immutable afterwards.
type TreeIndex struct {
	Root    string
	Entries map[string]FileEntry
}

// RelPaths returns all indexed relative paths in sorted order
func (ix *TreeIndex) RelPaths() []string {
	paths := make([]string, 0, len(ix.Entries))
	for p := range ix.Entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Skip records a file excluded from the index because it could not be
// read or fingerprinted. A file that cannot be verified is never treated
// as a duplicate.
type Skip struct {
	RelPath string
	Err     error
}

// Result is a completed scan: the index plus everything that had to be
// left out of it, sorted by relative path.
type Result struct {
	Index   *TreeIndex
	Skipped []Skip
}

// Scanner walks a tree and fingerprints every regular file through a
// bounded worker pool
type Scanner struct {
	workers  int
	excludes []string
	observer Observer
	throttle Throttler
	logger   Logger
}

// Options configures a Scanner. Zero values are all usable: DefaultWorkers
// workers, no excludes, no observer, no throttling, default logger.
type Options struct {
	Workers  int
	Excludes []string
	Observer Observer
	Throttle Throttler
	Logger   *log.Logger
}

// NewScanner creates a Scanner with the given options
func NewScanner(opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Scanner{
		workers:  opts.Workers,
		excludes: opts.Excludes,
		observer: opts.Observer,
		throttle: opts.Throttle,
		logger:   &stdLogger{Logger: logger},
	}
}

// DefaultWorkers sizes the fingerprint pool from the CPU count, clamped
// to [4, 32]
func DefaultWorkers() int {
	n := runtime.NumCPU() * 2
	if n < 4 {
		n = 4
	}
	if n > 32 {
		n = 32
	}
	return n
}

// candidate is a regular file found by the walk, not yet fingerprinted
type candidate struct {
	relPath string
	absPath string
	size    int64
}

// Scan walks root recursively and returns its completed index. Symlinks
// and special files are skipped by policy. Per-file read failures land in
// Result.Skipped; only a failure to walk the root itself or cancellation
// is fatal.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	result := &Result{
		Index: &TreeIndex{
			Root:    root,
			Entries: make(map[string]FileEntry),
		},
	}

	var files []candidate

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// An unreadable root means there is nothing to scan
			if path == root {
				return err
			}
			result.Skipped = append(result.Skipped, Skip{RelPath: relOrRaw(root, path), Err: err})
			return nil
		}
		if path == root {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{RelPath: path, Err: err})
			return nil
		}
		rel = filepath.ToSlash(rel)

		if s.excluded(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() {
			// Symlinks and special files never enter the index; matching
			// through link indirection could authorize a wrong deletion
			s.logger.Debug("Skipping non-regular file", "path", rel, "mode", d.Type().String())
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Skipped = append(result.Skipped, Skip{RelPath: rel, Err: err})
			return nil
		}

		if s.observer != nil {
			s.observer.FileVisited(rel)
		}

		files = append(files, candidate{relPath: rel, absPath: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}

	if err := s.hashFiles(ctx, files, result); err != nil {
		return nil, err
	}

	sort.Slice(result.Skipped, func(i, j int) bool {
		return result.Skipped[i].RelPath < result.Skipped[j].RelPath
	})

	s.logger.Info("Scan complete",
		"root", root,
		"indexed", len(result.Index.Entries),
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (s *Scanner) excluded(relPath string) bool {
	for _, pattern := range s.excludes {
		if matched, err := doublestar.Match(pattern, relPath); err == nil && matched {
			return true
		}
	}
	return false
}

type hashJobResult struct {
	relPath string
	absPath string
	size    int64
	digest  fingerprint.Digest
	err     error
}

// hashFiles fingerprints candidates through the worker pool and folds the
// results into the index. Workers only produce results; this single
// collector is the only writer of the index and the skip list.
func (s *Scanner) hashFiles(ctx context.Context, files []candidate, result *Result) error {
	if len(files) == 0 {
		return ctx.Err()
	}

	jobs := make(chan candidate, len(files))
	results := make(chan hashJobResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if s.throttle != nil {
					s.throttle.Throttle()
				}
				digest, err := fingerprint.File(job.absPath)
				results <- hashJobResult{
					relPath: job.relPath,
					absPath: job.absPath,
					size:    job.size,
					digest:  digest,
					err:     err,
				}
			}
		}()
	}

	// Channels are buffered for the whole batch, so neither side blocks
	// when workers bail out on cancellation
	go func() {
		for _, f := range files {
			jobs <- f
		}
		close(jobs)
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		if r.err != nil {
			s.logger.Warn("Failed to fingerprint file", "path", r.relPath, "error", r.err)
			result.Skipped = append(result.Skipped, Skip{RelPath: r.relPath, Err: r.err})
			continue
		}
		result.Index.Entries[r.relPath] = FileEntry{
			RelPath: r.relPath,
			AbsPath: r.absPath,
			Digest:  r.digest,
			Size:    r.size,
		}
	}

	return ctx.Err()
}

func relOrRaw(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
