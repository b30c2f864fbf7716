package fsops

import "os"

// OSDeleter implements Deleter using real os package calls.
// os.Remove never follows symlinks and refuses non-empty directories.
type OSDeleter struct{}

func (OSDeleter) Remove(path TargetPath) error {
	return os.Remove(string(path))
}
