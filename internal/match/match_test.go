package match

import (
	"crypto/sha256"
	"path/filepath"
	"testing"

	"treesweep/internal/fingerprint"
	"treesweep/internal/scan"
)

func index(root string, entries ...scan.FileEntry) *scan.TreeIndex {
	ix := &scan.TreeIndex{Root: root, Entries: make(map[string]scan.FileEntry)}
	for _, e := range entries {
		e.AbsPath = filepath.Join(root, filepath.FromSlash(e.RelPath))
		ix.Entries[e.RelPath] = e
	}
	return ix
}

func entry(relPath string, content string) scan.FileEntry {
	return scan.FileEntry{
		RelPath: relPath,
		Digest:  fingerprint.Digest(sha256.Sum256([]byte(content))),
		Size:    int64(len(content)),
	}
}

func TestFind_SamePathSameContent(t *testing.T) {
	ref := index("/ref", entry("a.txt", "hello"))
	tgt := index("/tgt", entry("a.txt", "hello"))

	records := Find(ref, tgt)
	if len(records) != 1 {
		t.Fatalf("Expected 1 duplicate, got %d", len(records))
	}
	r := records[0]
	if r.RelPath != "a.txt" {
		t.Errorf("RelPath = %s, expected a.txt", r.RelPath)
	}
	if string(r.Target) != filepath.Join("/tgt", "a.txt") {
		t.Errorf("Target = %s, expected target-tree path", r.Target)
	}
	if r.Reference != filepath.Join("/ref", "a.txt") {
		t.Errorf("Reference = %s, expected reference-tree path", r.Reference)
	}
	if r.Size != int64(len("hello")) {
		t.Errorf("Size = %d, expected %d", r.Size, len("hello"))
	}
}

func TestFind_SamePathDifferentContent(t *testing.T) {
	ref := index("/ref", entry("f.txt", "original"))
	tgt := index("/tgt", entry("f.txt", "modified"))

	if records := Find(ref, tgt); len(records) != 0 {
		t.Errorf("Expected no duplicates, got %v", records)
	}
}

func TestFind_DifferentPathSameContent(t *testing.T) {
	ref := index("/ref", entry("dirA/file.txt", "same"))
	tgt := index("/tgt", entry("dirB/file.txt", "same"))

	if records := Find(ref, tgt); len(records) != 0 {
		t.Errorf("Same content at different paths is not a duplicate, got %v", records)
	}
}

func TestFind_EmptyFilesMatch(t *testing.T) {
	ref := index("/ref", entry("empty.txt", ""))
	tgt := index("/tgt", entry("empty.txt", ""))

	records := Find(ref, tgt)
	if len(records) != 1 {
		t.Fatalf("Empty files with equal digests must match, got %d records", len(records))
	}
	if records[0].Size != 0 {
		t.Errorf("Size = %d, expected 0", records[0].Size)
	}
}

func TestFind_ExclusiveEntriesIgnored(t *testing.T) {
	ref := index("/ref",
		entry("shared.txt", "shared"),
		entry("ref_only.txt", "ref"),
	)
	tgt := index("/tgt",
		entry("shared.txt", "shared"),
		entry("tgt_only.txt", "tgt"),
	)

	records := Find(ref, tgt)
	if len(records) != 1 || records[0].RelPath != "shared.txt" {
		t.Errorf("Expected only shared.txt, got %v", records)
	}
}

func TestFind_OutputSortedByRelPath(t *testing.T) {
	ref := index("/ref",
		entry("z.txt", "z"),
		entry("a.txt", "a"),
		entry("m/n.txt", "n"),
	)
	tgt := index("/tgt",
		entry("z.txt", "z"),
		entry("a.txt", "a"),
		entry("m/n.txt", "n"),
	)

	records := Find(ref, tgt)
	if len(records) != 3 {
		t.Fatalf("Expected 3 duplicates, got %d", len(records))
	}
	want := []string{"a.txt", "m/n.txt", "z.txt"}
	for i, r := range records {
		if r.RelPath != want[i] {
			t.Errorf("records[%d].RelPath = %s, expected %s", i, r.RelPath, want[i])
		}
	}
}

func TestFind_Deterministic(t *testing.T) {
	ref := index("/ref", entry("a", "1"), entry("b", "2"), entry("c", "3"))
	tgt := index("/tgt", entry("a", "1"), entry("b", "2"), entry("c", "3"))

	first := Find(ref, tgt)
	for i := 0; i < 10; i++ {
		again := Find(ref, tgt)
		if len(again) != len(first) {
			t.Fatalf("Run %d changed record count", i)
		}
		for j := range first {
			if again[j] != first[j] {
				t.Fatalf("Run %d changed record %d: %v vs %v", i, j, again[j], first[j])
			}
		}
	}
}

func TestTotalSize(t *testing.T) {
	ref := index("/ref", entry("a.txt", "12345"), entry("b.txt", "123"))
	tgt := index("/tgt", entry("a.txt", "12345"), entry("b.txt", "123"))

	records := Find(ref, tgt)
	if got := TotalSize(records); got != 8 {
		t.Errorf("TotalSize = %d, expected 8", got)
	}
	if got := TotalSize(nil); got != 0 {
		t.Errorf("TotalSize(nil) = %d, expected 0", got)
	}
}
