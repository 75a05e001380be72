package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// ErrImportLocked means another import holds the lock and the context ended
// before it was released.
var ErrImportLocked = errors.New("another import is running")

const lockRetryDelay = 100 * time.Millisecond

// acquireLock blocks until the lock at path is held or ctx is done. An empty
// path means no locking.
func acquireLock(ctx context.Context, path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	fl := flock.New(path)
	ok, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", ErrImportLocked, err)
		}
		return nil, fmt.Errorf("acquire import lock %s: %w", path, err)
	}
	if !ok {
		return nil, ErrImportLocked
	}
	return func() { _ = fl.Unlock() }, nil
}
