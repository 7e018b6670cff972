package storage

import (
	"fmt"
	"time"

	"github.com/gofrs/flock"

	pkgerrors "imgsearch/pkg/errors"
)

const lockRetryInterval = 50 * time.Millisecond

// Lock is an advisory file lock serializing writers of one catalog across
// processes.
type Lock struct {
	fl *flock.Flock
}

// AcquireLock takes the lock at path, retrying until timeout. A zero timeout
// tries exactly once.
func AcquireLock(path string, timeout time.Duration) (*Lock, error) {
	fl := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("%w: lock %s: %v", pkgerrors.ErrResourceFailure, path, err)
		}
		if locked {
			return &Lock{fl: fl}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, fmt.Errorf("%w: %s", pkgerrors.ErrCatalogLocked, path)
		}
		time.Sleep(lockRetryInterval)
	}
}

func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
