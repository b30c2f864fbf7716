// Package dedupe applies duplicate matches to the target tree. The
// executor owns the simulate/commit distinction: in dry-run mode it
// produces the same accounting a real run would, without issuing a
// single delete syscall.
package dedupe

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"treesweep/internal/database"
	"treesweep/internal/fsops"
	"treesweep/internal/match"
	"treesweep/internal/metrics"
	"treesweep/internal/safety"

	"github.com/prometheus/client_golang/prometheus"
)

// Logger interface for structured logging during the deletion pass
type Logger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// stdLogger wraps standard log.Logger to implement Logger interface
type stdLogger struct {
	*log.Logger
}

func (l *stdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *stdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *stdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Metrics interface for deletion pass metrics
type Metrics interface {
	FilesDeletedTotal() prometheus.Counter
	BytesFreedTotal() prometheus.Counter
	DeleteErrorsTotal() prometheus.Counter
}

// runMetrics wraps global metrics to implement Metrics interface
type runMetrics struct{}

func (m *runMetrics) FilesDeletedTotal() prometheus.Counter {
	return metrics.FilesDeletedTotal
}

func (m *runMetrics) BytesFreedTotal() prometheus.Counter {
	return metrics.BytesFreedTotal
}

func (m *runMetrics) DeleteErrorsTotal() prometheus.Counter {
	return metrics.DeleteErrorsTotal
}

// Failure records a single duplicate that could not be deleted.
// Failures never abort the pass; the remaining records still run.
type Failure struct {
	RelPath string
	Target  fsops.TargetPath
	Err     error
}

// Outcome summarizes a deletion pass. In dry-run mode Deleted and
// BytesFreed count what a commit run would have removed.
type Outcome struct {
	Processed  int
	Deleted    int
	BytesFreed int64
	Failures   []Failure
	DryRun     bool
}

// Executor deletes duplicate files from the target tree with
// structured logging and per-file safety validation
type Executor struct {
	logger    Logger
	metrics   Metrics
	logFile   *os.File // Optional file for structured logging
	dryRun    bool
	db        *database.HistoryDB // Database for recording deletion history
	deleter   fsops.Deleter
	validator *safety.Validator
}

// NewExecutor creates a new Executor instance
func NewExecutor(logger *log.Logger, logFile *os.File, dryRun bool, db *database.HistoryDB) *Executor {
	execLogger := &stdLogger{Logger: logger}
	if logger == nil {
		execLogger.Logger = log.Default()
	}
	return &Executor{
		logger:  execLogger,
		metrics: &runMetrics{},
		logFile: logFile,
		dryRun:  dryRun,
		db:      db,
		deleter: fsops.OSDeleter{},
	}
}

// SetDeleter replaces the deleter used for actual file removal.
// Tests use this to prove which syscalls a pass would issue.
func (e *Executor) SetDeleter(d fsops.Deleter) {
	e.deleter = d
}

// SetValidator installs a safety validator consulted before every deletion
func (e *Executor) SetValidator(v *safety.Validator) {
	e.validator = v
}

// Execute runs the deletion pass over the matched duplicates.
// Per-file failures are collected into the outcome; only context
// cancellation stops the pass early.
func (e *Executor) Execute(ctx context.Context, records []match.DuplicateRecord) (*Outcome, error) {
	e.logger.Info("Starting deletion pass", "duplicates", len(records), "dry_run", e.dryRun)

	outcome := &Outcome{DryRun: e.dryRun}

	for _, rec := range records {
		select {
		case <-ctx.Done():
			return outcome, ctx.Err()
		default:
		}

		outcome.Processed++

		// Check the target path against the safety rules before touching it
		if e.validator != nil {
			if err := e.validator.ValidateDeleteTarget(rec.Target); err != nil {
				e.logStructured("SKIP", rec.RelPath, rec.Size, err.Error())
				e.recordHistory(database.ActionSkip, rec, err.Error())
				e.metrics.DeleteErrorsTotal().Inc()
				outcome.Failures = append(outcome.Failures, Failure{
					RelPath: rec.RelPath,
					Target:  rec.Target,
					Err:     err,
				})
				continue
			}
		}

		if e.dryRun {
			e.logger.Info("[DRY RUN] Would delete file", "path", rec.RelPath, "size", rec.Size)
			e.logStructured("DRY_RUN", rec.RelPath, rec.Size, "")
			e.recordHistory(database.ActionDryRun, rec, "")
			outcome.Deleted++
			outcome.BytesFreed += rec.Size
			continue
		}

		// Re-read the size right before deletion so the freed-bytes
		// total reflects the file as it is now, not as it was scanned
		info, err := os.Lstat(rec.Target.String())
		if err != nil {
			if os.IsNotExist(err) {
				e.logger.Info("File vanished before deletion", "path", rec.RelPath)
				e.logStructured("SKIP", rec.RelPath, 0, "vanished before deletion")
				e.recordHistory(database.ActionSkip, rec, "vanished before deletion")
				e.metrics.DeleteErrorsTotal().Inc()
				outcome.Failures = append(outcome.Failures, Failure{
					RelPath: rec.RelPath,
					Target:  rec.Target,
					Err:     err,
				})
				continue
			}
			e.logger.Error("Failed to stat before delete", "path", rec.RelPath, "error", err)
			e.logStructured("ERROR", rec.RelPath, rec.Size, err.Error())
			e.recordHistory(database.ActionError, rec, err.Error())
			e.metrics.DeleteErrorsTotal().Inc()
			outcome.Failures = append(outcome.Failures, Failure{
				RelPath: rec.RelPath,
				Target:  rec.Target,
				Err:     err,
			})
			continue
		}
		size := info.Size()

		if err := e.deleter.Remove(rec.Target); err != nil {
			if os.IsNotExist(err) {
				e.logger.Info("File already deleted", "path", rec.RelPath)
				e.logStructured("SKIP", rec.RelPath, size, "already deleted")
				e.recordHistory(database.ActionSkip, rec, "already deleted")
				e.metrics.DeleteErrorsTotal().Inc()
				outcome.Failures = append(outcome.Failures, Failure{
					RelPath: rec.RelPath,
					Target:  rec.Target,
					Err:     err,
				})
				continue
			}
			e.logger.Error("Failed to delete", "path", rec.RelPath, "error", err)
			e.logStructured("ERROR", rec.RelPath, size, err.Error())
			e.recordHistory(database.ActionError, rec, err.Error())
			e.metrics.DeleteErrorsTotal().Inc()
			outcome.Failures = append(outcome.Failures, Failure{
				RelPath: rec.RelPath,
				Target:  rec.Target,
				Err:     err,
			})
			continue
		}

		e.logStructured("DELETE", rec.RelPath, size, "")
		e.recordHistory(database.ActionDelete, rec, "")

		outcome.Deleted++
		outcome.BytesFreed += size

		// Update Prometheus metrics
		e.metrics.FilesDeletedTotal().Inc()
		e.metrics.BytesFreedTotal().Add(float64(size))
		metrics.DeletedFileSize.Observe(float64(size))
	}

	e.logger.Info("Deletion pass complete",
		"deleted", outcome.Deleted,
		"failures", len(outcome.Failures),
		"bytes_freed", outcome.BytesFreed,
		"bytes_freed_mb", outcome.BytesFreed/1024/1024,
		"dry_run", e.dryRun,
	)

	return outcome, nil
}

// recordHistory writes one row to the history database if one is attached
func (e *Executor) recordHistory(action string, rec match.DuplicateRecord, errMsg string) {
	if e.db == nil {
		return
	}
	if dbErr := e.db.RecordOutcome(action, rec, errMsg); dbErr != nil {
		e.logger.Error("Failed to record to database", "error", dbErr)
		// Don't fail the pass if DB write fails
	}
}

// logStructured logs with structured format: timestamp, action, path, size, detail
func (e *Executor) logStructured(action, relPath string, size int64, detail string) {
	logEntry := fmt.Sprintf("[%s] %s path=%s size=%d",
		time.Now().UTC().Format(time.RFC3339),
		action,
		relPath,
		size,
	)

	if detail != "" {
		logEntry += fmt.Sprintf(" detail=%q", detail)
	}

	// Write to log file if available
	if e.logFile != nil {
		e.logFile.WriteString(logEntry + "\n")
		e.logFile.Sync()
	}

	// Also log to standard logger
	e.logger.Info(logEntry)
}
