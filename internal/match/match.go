// Package match decides which target files are deletable duplicates.
// The decision is a pure function of the two scan indices: a target entry
// is a duplicate iff its relative path exists in the reference index and
// the two digests are bitwise equal. Identical content at a different
// relative path is deliberately not a duplicate; a reorganized but still
// needed file must not vanish.
package match

import (
	"sort"

	"treesweep/internal/fingerprint"
	"treesweep/internal/fsops"
	"treesweep/internal/scan"
)

// DuplicateRecord is one verified target/reference pair. Target is the
// only deletable handle; Reference is carried for reporting and is never
// opened for writing or deletion.
type DuplicateRecord struct {
	RelPath   string
	Target    fsops.TargetPath
	Reference string
	Digest    fingerprint.Digest
	Size      int64
}

// Find compares the two indices and returns all duplicates sorted by
// relative path, so output is deterministic regardless of scan order.
func Find(reference, target *scan.TreeIndex) []DuplicateRecord {
	records := make([]DuplicateRecord, 0)

	for rel, tgt := range target.Entries {
		ref, ok := reference.Entries[rel]
		if !ok {
			continue
		}
		if ref.Digest != tgt.Digest {
			continue
		}
		records = append(records, DuplicateRecord{
			RelPath:   rel,
			Target:    fsops.TargetPath(tgt.AbsPath),
			Reference: ref.AbsPath,
			Digest:    tgt.Digest,
			Size:      tgt.Size,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].RelPath < records[j].RelPath
	})
	return records
}

// TotalSize sums the sizes of all records, for summaries
func TotalSize(records []DuplicateRecord) int64 {
	var total int64
	for _, r := range records {
		total += r.Size
	}
	return total
}
