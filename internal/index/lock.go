package index

import (
	"fmt"

	"github.com/gofrs/flock"

	"volsegsync/internal/errs"
)

// Lock guards the persisted index against concurrent mutating commands.
type Lock struct {
	fl *flock.Flock
}

// Acquire takes the mutation lock, failing fast with ErrLocked when another
// process holds it. It never blocks.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire index lock: %w", err)
	}
	if !ok {
		return nil, errs.Wrap(errs.ErrLocked, "index", "lock",
			"another volsegsync command is mutating this instance, retry when it finishes", nil)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the mutation lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
