// Package prune removes directories left empty after a deletion pass.
// Pruning runs bottom-up so a directory whose only contents were
// pruned subdirectories is itself removed in the same pass. The target
// root is never a candidate.
package prune

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"treesweep/internal/database"
	"treesweep/internal/fsops"
	"treesweep/internal/metrics"
	"treesweep/internal/safety"
)

// Logger interface for structured logging during pruning
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
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

func (l *stdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Outcome summarizes a prune pass
type Outcome struct {
	// Removed directories, as sorted slash-separated paths relative
	// to the target root
	RelPaths []string

	// Skipped counts directories that could not be removed for
	// reasons other than being non-empty
	Skipped int
}

// Removed returns the number of directories removed
func (o *Outcome) Removed() int {
	return len(o.RelPaths)
}

// Pruner removes empty directories under a single target root
type Pruner struct {
	root      string
	logger    Logger
	db        *database.HistoryDB
	deleter   fsops.Deleter
	validator *safety.Validator
}

// NewPruner creates a new Pruner for the given target root
func NewPruner(root string, logger *log.Logger, db *database.HistoryDB) *Pruner {
	pruneLogger := &stdLogger{Logger: logger}
	if logger == nil {
		pruneLogger.Logger = log.Default()
	}
	return &Pruner{
		root:    root,
		logger:  pruneLogger,
		db:      db,
		deleter: fsops.OSDeleter{},
	}
}

// SetDeleter replaces the deleter used for directory removal
func (p *Pruner) SetDeleter(d fsops.Deleter) {
	p.deleter = d
}

// SetValidator installs a safety validator consulted before every removal
func (p *Pruner) SetValidator(v *safety.Validator) {
	p.validator = v
}

type candidate struct {
	abs   string
	rel   string
	depth int
}

// Prune removes empty directories below the target root, deepest
// first. Removal is best effort: a directory that cannot be removed is
// skipped and the pass continues.
func (p *Pruner) Prune(ctx context.Context) (*Outcome, error) {
	outcome := &Outcome{}

	candidates, err := p.collect()
	if err != nil {
		return outcome, err
	}

	// Children before parents, stable order within a level
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].depth != candidates[j].depth {
			return candidates[i].depth > candidates[j].depth
		}
		return candidates[i].rel < candidates[j].rel
	})

	for _, cand := range candidates {
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		default:
		}

		entries, err := os.ReadDir(cand.abs)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			p.logger.Warn("Cannot read directory during prune", "path", cand.rel, "error", err)
			outcome.Skipped++
			continue
		}
		if len(entries) > 0 {
			continue
		}

		if p.validator != nil {
			if err := p.validator.ValidateDeleteTarget(fsops.TargetPath(cand.abs)); err != nil {
				p.logger.Warn("Prune blocked by safety check", "path", cand.rel, "error", err)
				outcome.Skipped++
				continue
			}
		}

		// The deleter refuses non-empty directories, so a directory
		// repopulated after the ReadDir above still cannot be lost
		if err := p.deleter.Remove(fsops.TargetPath(cand.abs)); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			p.logger.Warn("Failed to prune directory", "path", cand.rel, "error", err)
			outcome.Skipped++
			continue
		}

		p.logger.Info("Pruned empty directory", "path", cand.rel)
		outcome.RelPaths = append(outcome.RelPaths, cand.rel)
		metrics.DirsPrunedTotal.Inc()

		if p.db != nil {
			if dbErr := p.db.RecordPrune(cand.rel, cand.abs); dbErr != nil {
				p.logger.Warn("Failed to record prune to database", "error", dbErr)
			}
		}
	}

	sort.Strings(outcome.RelPaths)

	p.logger.Info("Prune complete", "removed", outcome.Removed(), "skipped", outcome.Skipped)
	return outcome, nil
}

// collect walks the target tree and returns every directory below the
// root. Unreadable subtrees are skipped.
func (p *Pruner) collect() ([]candidate, error) {
	var candidates []candidate

	err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == p.root {
				return walkErr
			}
			return nil
		}
		if !d.IsDir() || path == p.root {
			return nil
		}

		rel, err := filepath.Rel(p.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		candidates = append(candidates, candidate{
			abs:   path,
			rel:   rel,
			depth: strings.Count(rel, "/"),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking target tree for prune: %w", err)
	}

	return candidates, nil
}
