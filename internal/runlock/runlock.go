// Package runlock keeps two sweeps from working the same library at once.
package runlock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"m4bsweep/internal/services"
)

// FileName is the lock file created at the top of the library root.
const FileName = ".m4bsweep.lock"

// ErrHeld reports that another process owns the lock.
var ErrHeld = errors.New("another m4bsweep run is already working this root")

// Lock is an advisory lock on a library root.
type Lock struct {
	path string
	lock *flock.Flock
}

// Acquire takes the lock for root without blocking.
func Acquire(root string) (*Lock, error) {
	path := filepath.Join(root, FileName)
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "runlock", "acquire", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (%s)", ErrHeld, path)
	}
	return &Lock{path: path, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}
