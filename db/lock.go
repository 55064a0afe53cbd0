package db

import (
	"context"

	"github.com/EagleChen/mapmutex"
)

// collectionLocks hands out one exclusive lock per collection name. Names that
// differ never contend.
type collectionLocks struct {
	m *mapmutex.Mutex
}

func newCollectionLocks() *collectionLocks {
	// 50 tries with exponential backoff capped at 5ms per sleep: a single
	// TryLock gives up after at most ~250ms, which bounds how late a waiter
	// notices cancellation.
	return &collectionLocks{m: mapmutex.NewCustomizedMapMutex(50, 5e6, 1e3, 1.5, 0.2)}
}

// lock blocks until the collection lock is held or ctx is done.
func (l *collectionLocks) lock(ctx context.Context, collection string) (unlock func(), err error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.m.TryLock(collection) {
			return func() { l.m.Unlock(collection) }, nil
		}
	}
}
