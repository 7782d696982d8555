package fileutil

// SetRenameForTests overrides the rename implementation used by Rename and
// returns a func restoring the previous one.
func SetRenameForTests(fn func(string, string) error) func() {
	prev := renameFunc
	if fn != nil {
		renameFunc = fn
	}
	return func() { renameFunc = prev }
}
