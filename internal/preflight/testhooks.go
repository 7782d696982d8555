package preflight

import "golang.org/x/sys/unix"

// SetStatfsForTests swaps the filesystem stat call and returns a restore func.
func SetStatfsForTests(fn func(string, *unix.Statfs_t) error) func() {
	prev := statfs
	statfs = fn
	return func() { statfs = prev }
}
