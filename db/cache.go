package db

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/stevemurr/shopstore/metrics"
	"github.com/stevemurr/shopstore/store"
)

// snapshot is an immutable view of one collection. Writers build a new slice
// and replace the entry; nobody mutates docs after the snapshot is published.
type snapshot struct {
	docs     []store.Document
	loadedAt time.Time
	// revision counts the writes applied since the collection was loaded.
	revision uint64
}

// collectionCache mirrors recently used collections in memory. It is only
// touched while the caller holds the collection's lock. A nil cache is valid
// and always misses.
type collectionCache struct {
	c   *cache.Cache
	log *zap.SugaredLogger
}

func newCollectionCache(ttl time.Duration, log *zap.SugaredLogger) *collectionCache {
	if ttl <= 0 {
		return nil
	}
	return &collectionCache{c: cache.New(ttl, 2*ttl), log: log}
}

func (cc *collectionCache) get(collection string) (snap *snapshot, ok bool) {
	if cc == nil {
		return nil, false
	}
	defer func() {
		if r := recover(); r != nil {
			cc.fault(collection, fmt.Errorf("panic: %v", r))
			snap, ok = nil, false
		}
	}()
	v, found := cc.c.Get(collection)
	if !found {
		metrics.CacheMiss()
		return nil, false
	}
	snap, ok = v.(*snapshot)
	if !ok || snap == nil {
		cc.fault(collection, fmt.Errorf("unexpected entry type %T", v))
		cc.c.Delete(collection)
		return nil, false
	}
	metrics.CacheHit()
	return snap, true
}

func (cc *collectionCache) put(collection string, snap *snapshot) {
	if cc == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			cc.fault(collection, fmt.Errorf("panic: %v", r))
			cc.invalidate(collection)
		}
	}()
	cc.c.SetDefault(collection, snap)
}

func (cc *collectionCache) invalidate(collection string) {
	if cc == nil {
		return
	}
	defer func() { _ = recover() }()
	cc.c.Delete(collection)
}

func (cc *collectionCache) fault(collection string, err error) {
	metrics.CacheFault()
	cc.log.Debugw("Collection cache fault, reading through to storage",
		"collection", collection,
		"error", err,
	)
}
