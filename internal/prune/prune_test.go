package prune

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"treesweep/internal/database"
	"treesweep/internal/fsops"
	"treesweep/internal/metrics"
	"treesweep/internal/safety"
)

func init() {
	// Initialize metrics once for all tests
	metrics.Init()
}

func canonicalTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to canonicalize temp dir: %v", err)
	}
	return dir
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatalf("Failed to create dir %s: %v", path, err)
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	mkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
}

// TestPruneRemovesEmptyDirChain verifies a chain of directories whose
// leaves were emptied collapses in a single pass
func TestPruneRemovesEmptyDirChain(t *testing.T) {
	root := canonicalTempDir(t)
	referenceDir := canonicalTempDir(t)

	mkdirAll(t, filepath.Join(root, "a", "b", "c"))
	writeFile(t, filepath.Join(root, "keep", "file.txt"))

	pruner := NewPruner(root, log.Default(), nil)
	pruner.SetValidator(safety.NewValidator(root, referenceDir))

	outcome, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	want := []string{"a", "a/b", "a/b/c"}
	if !reflect.DeepEqual(outcome.RelPaths, want) {
		t.Errorf("RelPaths = %v, expected %v", outcome.RelPaths, want)
	}

	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("Expected a/ to be removed")
	}
	if _, err := os.Stat(filepath.Join(root, "keep", "file.txt")); err != nil {
		t.Errorf("Expected keep/file.txt to survive: %v", err)
	}
}

// TestPruneNeverRemovesRoot verifies the target root survives even when
// the pass leaves it completely empty
func TestPruneNeverRemovesRoot(t *testing.T) {
	root := canonicalTempDir(t)
	referenceDir := canonicalTempDir(t)

	mkdirAll(t, filepath.Join(root, "only"))

	pruner := NewPruner(root, log.Default(), nil)
	pruner.SetValidator(safety.NewValidator(root, referenceDir))

	outcome, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	if outcome.Removed() != 1 {
		t.Errorf("Removed = %d, expected 1", outcome.Removed())
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("Target root must survive pruning: %v", err)
	}
}

// TestPruneLeavesNonEmptyDirs verifies directories containing files
// anywhere below them are untouched
func TestPruneLeavesNonEmptyDirs(t *testing.T) {
	root := canonicalTempDir(t)
	referenceDir := canonicalTempDir(t)

	writeFile(t, filepath.Join(root, "deep", "nest", "file.txt"))

	pruner := NewPruner(root, log.Default(), nil)
	pruner.SetValidator(safety.NewValidator(root, referenceDir))

	outcome, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	if outcome.Removed() != 0 {
		t.Errorf("Removed = %d, expected 0; removed %v", outcome.Removed(), outcome.RelPaths)
	}
	if _, err := os.Stat(filepath.Join(root, "deep", "nest", "file.txt")); err != nil {
		t.Errorf("File should survive prune: %v", err)
	}
}

// TestPruneRecordsHistory verifies removed directories land in the
// history database with the PRUNE action
func TestPruneRecordsHistory(t *testing.T) {
	root := canonicalTempDir(t)
	referenceDir := canonicalTempDir(t)

	db, err := database.NewHistoryDB(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	mkdirAll(t, filepath.Join(root, "empty"))

	pruner := NewPruner(root, log.Default(), db)
	pruner.SetValidator(safety.NewValidator(root, referenceDir))

	if _, err := pruner.Prune(context.Background()); err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	records, err := db.GetDeletionsByAction(database.ActionPrune)
	if err != nil {
		t.Fatalf("Failed to query history: %v", err)
	}
	if len(records) != 1 || records[0].RelPath != "empty" {
		t.Errorf("Expected one PRUNE record for empty, got %+v", records)
	}
}

// failOnDeleter fails removal of one specific path and delegates the rest
type failOnDeleter struct {
	failPath fsops.TargetPath
	inner    fsops.Deleter
}

func (d *failOnDeleter) Remove(path fsops.TargetPath) error {
	if path == d.failPath {
		return errors.New("operation not permitted")
	}
	return d.inner.Remove(path)
}

// TestPruneBestEffort verifies one failed removal does not stop the pass
func TestPruneBestEffort(t *testing.T) {
	root := canonicalTempDir(t)
	referenceDir := canonicalTempDir(t)

	mkdirAll(t, filepath.Join(root, "one"))
	mkdirAll(t, filepath.Join(root, "two"))

	pruner := NewPruner(root, log.Default(), nil)
	pruner.SetValidator(safety.NewValidator(root, referenceDir))
	pruner.SetDeleter(&failOnDeleter{
		failPath: fsops.TargetPath(filepath.Join(root, "one")),
		inner:    fsops.OSDeleter{},
	})

	outcome, err := pruner.Prune(context.Background())
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}

	if !reflect.DeepEqual(outcome.RelPaths, []string{"two"}) {
		t.Errorf("RelPaths = %v, expected [two]", outcome.RelPaths)
	}
	if outcome.Skipped != 1 {
		t.Errorf("Skipped = %d, expected 1", outcome.Skipped)
	}
}

// TestPruneCancelledContext verifies cooperative cancellation
func TestPruneCancelledContext(t *testing.T) {
	root := canonicalTempDir(t)

	mkdirAll(t, filepath.Join(root, "empty"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pruner := NewPruner(root, log.Default(), nil)
	_, err := pruner.Prune(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(root, "empty")); statErr != nil {
		t.Errorf("Directory should survive cancelled prune: %v", statErr)
	}
}

// TestPruneMissingRoot verifies a vanished root is reported
func TestPruneMissingRoot(t *testing.T) {
	pruner := NewPruner(filepath.Join(t.TempDir(), "nope"), log.Default(), nil)
	if _, err := pruner.Prune(context.Background()); err == nil {
		t.Error("Expected error for missing target root")
	}
}
