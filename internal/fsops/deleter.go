package fsops

// TargetPath is an absolute path under the target tree's root. It is the
// only path type the Deleter accepts: reference-tree paths stay plain
// strings everywhere in this codebase and cannot reach a delete call
// without an explicit conversion. Only the matcher and the pruner mint
// TargetPath values, both from the target index or a walk of the target
// root.
type TargetPath string

func (p TargetPath) String() string { return string(p) }

// Deleter abstracts filesystem delete operations.
// Enables mocking in tests to prove dry-run never deletes.
// Remove is intentionally non-recursive: removing a non-empty directory
// must fail, which the pruner relies on.
type Deleter interface {
	Remove(path TargetPath) error
}
