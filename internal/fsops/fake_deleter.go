package fsops

// FakeDeleter implements Deleter for testing
// Records all delete calls without performing actual deletions
type FakeDeleter struct {
	Calls []string
}

func (f *FakeDeleter) Remove(path TargetPath) error {
	f.Calls = append(f.Calls, "rm:"+string(path))
	return nil
}
