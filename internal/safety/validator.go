package safety

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"treesweep/internal/fsops"
)

var (
	ErrInvalidPath   = errors.New("invalid path")
	ErrOutsideTarget = errors.New("outside target root")
	ErrReferencePath = errors.New("path inside reference tree")
	ErrTraversal     = errors.New("path traversal detected")
	ErrSymlinkEscape = errors.New("symlink escape detected")
)

// Validator enforces the safety contract for all delete operations: a
// deletable path must live strictly inside the target root and must never
// touch the reference tree, even through symlink indirection. Both roots
// are expected in canonical (symlink-resolved, absolute, cleaned) form.
type Validator struct {
	TargetRoot    string
	ReferenceRoot string
}

// NewValidator creates a validator for one target/reference root pair
func NewValidator(targetRoot, referenceRoot string) *Validator {
	return &Validator{
		TargetRoot:    cleanAbs(targetRoot),
		ReferenceRoot: cleanAbs(referenceRoot),
	}
}

// ValidateDeleteTarget is the single source of truth for delete
// authorization. Returns a typed error on safety violation.
func (v *Validator) ValidateDeleteTarget(path fsops.TargetPath) error {
	raw := string(path)

	// 1. Normalize to absolute, cleaned form
	p, err := NormalizePath(raw)
	if err != nil {
		return err
	}

	// 2. Block traversal segments in raw input
	if DetectTraversal(raw) {
		return ErrTraversal
	}

	// 3. Must be strictly inside the target root (the root itself is
	// never a delete target)
	if !isStrictlyWithin(p, v.TargetRoot) {
		return ErrOutsideTarget
	}

	// 4. Must not touch the reference tree
	if p == v.ReferenceRoot || hasPathPrefix(p, v.ReferenceRoot) {
		return ErrReferencePath
	}

	// 5. Resolved form must still be inside the target root. A parent
	// directory replaced by a symlink between scan and delete would
	// otherwise redirect the delete outside the tree.
	escaped, err := DetectSymlinkEscape(p, v.TargetRoot)
	if err != nil {
		// Path vanished since scan; let the delete attempt report it
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if escaped {
		return ErrSymlinkEscape
	}

	return nil
}

// NormalizePath converts path to absolute, cleaned form
func NormalizePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", ErrInvalidPath
	}
	return filepath.Clean(abs), nil
}

// DetectTraversal blocks any ".." segment in raw input
func DetectTraversal(raw string) bool {
	parts := strings.Split(filepath.ToSlash(raw), "/")
	for _, p := range parts {
		if p == ".." {
			return true
		}
	}
	return false
}

// DetectSymlinkEscape resolves symlinks and checks whether the resolved
// path leaves the target root
func DetectSymlinkEscape(cleanAbs string, targetRoot string) (bool, error) {
	resolved, err := filepath.EvalSymlinks(cleanAbs)
	if err != nil {
		return false, err
	}
	resolvedAbs, err := filepath.Abs(resolved)
	if err != nil {
		return false, err
	}
	if !isStrictlyWithin(filepath.Clean(resolvedAbs), targetRoot) {
		return true, nil
	}
	return false, nil
}

// isStrictlyWithin reports whether path is below root, excluding root itself
func isStrictlyWithin(path, root string) bool {
	return path != root && hasPathPrefix(path, root)
}

// hasPathPrefix checks if path has the given prefix on a path-segment
// boundary
func hasPathPrefix(path, prefix string) bool {
	path = filepath.Clean(path)
	prefix = filepath.Clean(prefix)

	// "/" as a root authorizes nothing below it
	if prefix == string(os.PathSeparator) {
		return path == "/"
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+string(os.PathSeparator))
}

func cleanAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}
