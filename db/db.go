// Package db is the record access layer on top of a store.Backend.
//
// Every operation on a collection runs under that collection's lock, so reads
// never observe a half-applied write and read-modify-write cycles (create,
// update, remove) cannot lose updates. Operations on different collections
// proceed in parallel. Recently loaded collections are kept in an in-memory
// cache that writers update before releasing the lock.
//
// DB exposes the raw document verbs. Collection and AsyncCollection wrap them
// with typed records; both calling conventions share the same engine.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevemurr/shopstore/metrics"
	"github.com/stevemurr/shopstore/store"
)

var (
	// ErrNotFound is returned when no record has the requested id or matches a predicate.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned by Create when the id is already taken.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrInvalidID is returned by Create when the id is present but not a string.
	ErrInvalidID = errors.New("record id must be a string")
	// ErrRecordDecode matches RecordDecodeError.
	ErrRecordDecode = errors.New("record does not match its type")
)

// Options tune a DB. The zero value disables the cache.
type Options struct {
	// CacheTTL is how long a loaded collection stays cached. Zero disables caching.
	CacheTTL time.Duration
	// Now returns the time used for createdAt stamps. Defaults to time.Now.
	Now func() time.Time
	// NewID generates ids for records created without one. Defaults to UUIDv4.
	NewID func() string
}

// DB serializes access to the collections of one backend.
type DB struct {
	backend store.Backend
	locks   *collectionLocks
	cache   *collectionCache
	log     *zap.SugaredLogger
	now     func() time.Time
	newID   func() string
}

// Open wraps backend. The DB owns the backend from here on; Close closes it.
func Open(backend store.Backend, opts Options, log *zap.SugaredLogger) *DB {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &DB{
		backend: backend,
		locks:   newCollectionLocks(),
		cache:   newCollectionCache(opts.CacheTTL, log),
		log:     log,
		now:     opts.Now,
		newID:   opts.NewID,
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = func() string { return uuid.New().String() }
	}
	return d
}

// Close closes the underlying backend.
func (d *DB) Close() error {
	return d.backend.Close()
}

// Collections lists the stored collection names.
func (d *DB) Collections(ctx context.Context) ([]string, error) {
	return d.backend.List(ctx)
}

// snapshotLocked returns the current contents of collection. The caller holds
// the collection lock and must not modify the returned slice or documents.
func (d *DB) snapshotLocked(ctx context.Context, collection string) (*snapshot, error) {
	if snap, ok := d.cache.get(collection); ok {
		return snap, nil
	}
	docs, err := d.backend.Load(ctx, collection)
	if err != nil {
		return nil, err
	}
	snap := &snapshot{docs: docs, loadedAt: d.now()}
	d.cache.put(collection, snap)
	return snap, nil
}

// read returns an immutable snapshot of collection.
func (d *DB) read(ctx context.Context, collection string) ([]store.Document, error) {
	if err := store.ValidateName(collection); err != nil {
		return nil, err
	}
	unlock, err := d.locks.lock(ctx, collection)
	if err != nil {
		return nil, err
	}
	defer unlock()
	snap, err := d.snapshotLocked(ctx, collection)
	if err != nil {
		return nil, err
	}
	return snap.docs, nil
}

// write runs one read-modify-write cycle. mutate receives the current
// snapshot and returns the next one; it must build a new slice rather than
// modify its input. Returning errSkipSave leaves the collection untouched.
func (d *DB) write(ctx context.Context, collection string, mutate func([]store.Document) ([]store.Document, error)) error {
	if err := store.ValidateName(collection); err != nil {
		return err
	}
	unlock, err := d.locks.lock(ctx, collection)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := d.snapshotLocked(ctx, collection)
	if err != nil {
		return err
	}
	next, err := mutate(current.docs)
	if err != nil {
		return err
	}
	// Nothing has been written yet, so giving up here is still safe.
	if err := ctx.Err(); err != nil {
		return err
	}

	// From here on the save runs to completion even if the caller goes away.
	err = d.backend.Save(context.WithoutCancel(ctx), collection, next)
	metrics.SaveResult(err)
	if err != nil {
		d.cache.invalidate(collection)
		d.log.Errorw("Failed to save collection",
			"collection", collection,
			"documents", len(next),
			"error", err,
		)
		return err
	}
	d.cache.put(collection, &snapshot{docs: next, loadedAt: d.now(), revision: current.revision + 1})
	return nil
}

var errSkipSave = errors.New("skip save")

func indexOf(docs []store.Document, id string) int {
	for i, doc := range docs {
		if doc.ID() == id {
			return i
		}
	}
	return -1
}

func observe(op string, start time.Time, err error) {
	metrics.ObserveOperation(op, start, resultOf(err))
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case errors.Is(err, ErrNotFound):
		return metrics.ResultNotFound
	case errors.Is(err, ErrDuplicateID):
		return metrics.ResultDuplicate
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	default:
		return metrics.ResultError
	}
}

// All returns a copy of every document in collection, in stored order.
func (d *DB) All(ctx context.Context, collection string) (docs []store.Document, err error) {
	defer func(start time.Time) { observe("all", start, err) }(time.Now())
	snap, err := d.read(ctx, collection)
	if err != nil {
		return nil, err
	}
	return store.CloneAll(snap), nil
}

// Get returns the document with the given id.
func (d *DB) Get(ctx context.Context, collection, id string) (doc store.Document, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())
	snap, err := d.read(ctx, collection)
	if err != nil {
		return nil, err
	}
	if i := indexOf(snap, id); i >= 0 {
		return snap[i].Clone(), nil
	}
	return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
}

// FindOne returns the first document, in stored order, for which match is
// true. match receives copies, so it may not change what is stored.
func (d *DB) FindOne(ctx context.Context, collection string, match func(store.Document) bool) (doc store.Document, err error) {
	defer func(start time.Time) { observe("find_one", start, err) }(time.Now())
	snap, err := d.read(ctx, collection)
	if err != nil {
		return nil, err
	}
	for _, doc := range snap {
		if doc = doc.Clone(); match(doc) {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", collection, ErrNotFound)
}

// Count returns the number of documents, or of those matching match when it
// is not nil. Like FindOne, match receives copies.
func (d *DB) Count(ctx context.Context, collection string, match func(store.Document) bool) (n int, err error) {
	defer func(start time.Time) { observe("count", start, err) }(time.Now())
	snap, err := d.read(ctx, collection)
	if err != nil {
		return 0, err
	}
	if match == nil {
		return len(snap), nil
	}
	for _, doc := range snap {
		if match(doc.Clone()) {
			n++
		}
	}
	return n, nil
}

// Create appends doc to collection. A missing id is generated and a missing
// createdAt is stamped; the stored document is returned.
func (d *DB) Create(ctx context.Context, collection string, doc store.Document) (store.Document, error) {
	return d.CreateFunc(ctx, collection, func([]store.Document) (store.Document, error) { return doc, nil })
}

// CreateFunc is Create with the document built from the current contents of
// collection while it is locked. build must not modify its input.
func (d *DB) CreateFunc(ctx context.Context, collection string, build func(current []store.Document) (store.Document, error)) (created store.Document, err error) {
	defer func(start time.Time) { observe("create", start, err) }(time.Now())
	err = d.write(ctx, collection, func(current []store.Document) ([]store.Document, error) {
		doc, err := build(current)
		if err != nil {
			return nil, err
		}
		if created, err = d.prepare(collection, doc); err != nil {
			return nil, err
		}
		if id := created.ID(); indexOf(current, id) >= 0 {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrDuplicateID)
		}
		next := make([]store.Document, len(current), len(current)+1)
		copy(next, current)
		return append(next, created), nil
	})
	if err != nil {
		return nil, err
	}
	return created.Clone(), nil
}

// prepare copies doc and fills in the id and createdAt when they are absent.
func (d *DB) prepare(collection string, doc store.Document) (store.Document, error) {
	created := doc.Clone()
	if created == nil {
		created = store.Document{}
	}
	if created.ID() == "" {
		if created.Has("id") && string(created["id"]) != `""` {
			return nil, fmt.Errorf("%s: %w, got %s", collection, ErrInvalidID, created["id"])
		}
		created.SetString("id", d.newID())
	}
	if !created.Has("createdAt") {
		created.SetString("createdAt", d.now().UTC().Format(time.RFC3339Nano))
	}
	return created, nil
}

// Patch is a shallow merge patch: each key overwrites the stored field of the
// same name, other fields are left alone. The "id" key is ignored.
type Patch map[string]any

func (p Patch) encode() (store.Document, error) {
	out := make(store.Document, len(p))
	for k, v := range p {
		if k == "id" {
			continue
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode patch field %q: %w", k, err)
		}
		out[k] = b
	}
	return out, nil
}

// Update merges patch onto the document with the given id and returns the result.
func (d *DB) Update(ctx context.Context, collection, id string, patch Patch) (updated store.Document, err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())
	return d.updateDoc(ctx, collection, id, constPatch(patch), nil)
}

// UpdateChecked is Update with a final check: the merged document is passed
// to check while the collection is still locked, and an error from check
// aborts the update without writing anything.
func (d *DB) UpdateChecked(ctx context.Context, collection, id string, patch Patch, check func(store.Document) error) (updated store.Document, err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())
	return d.updateDoc(ctx, collection, id, constPatch(patch), check)
}

// UpdateFunc is Update with the patch computed by fn from the stored document
// while the collection is locked. fn receives a copy.
func (d *DB) UpdateFunc(ctx context.Context, collection, id string, fn func(current store.Document) (Patch, error)) (updated store.Document, err error) {
	defer func(start time.Time) { observe("update", start, err) }(time.Now())
	return d.updateDoc(ctx, collection, id, func(current store.Document) (store.Document, error) {
		patch, err := fn(current.Clone())
		if err != nil {
			return nil, err
		}
		return patch.encode()
	}, nil)
}

func constPatch(patch Patch) func(store.Document) (store.Document, error) {
	fields, err := patch.encode()
	return func(store.Document) (store.Document, error) { return fields, err }
}

func (d *DB) updateDoc(ctx context.Context, collection, id string, patchFor func(current store.Document) (store.Document, error), check func(store.Document) error) (store.Document, error) {
	var merged store.Document
	err := d.write(ctx, collection, func(current []store.Document) ([]store.Document, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
		}
		fields, err := patchFor(current[i])
		if err != nil {
			return nil, err
		}
		merged = current[i].Clone()
		for k, v := range fields {
			if k == "id" {
				continue
			}
			merged[k] = append([]byte(nil), v...)
		}
		if check != nil {
			if err := check(merged.Clone()); err != nil {
				return nil, err
			}
		}
		next := make([]store.Document, len(current))
		copy(next, current)
		next[i] = merged
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	return merged.Clone(), nil
}

// Remove deletes the document with the given id and reports whether it existed.
func (d *DB) Remove(ctx context.Context, collection, id string) (removed bool, err error) {
	defer func(start time.Time) { observe("remove", start, err) }(time.Now())
	err = d.write(ctx, collection, func(current []store.Document) ([]store.Document, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, errSkipSave
		}
		next := make([]store.Document, 0, len(current)-1)
		next = append(next, current[:i]...)
		return append(next, current[i+1:]...), nil
	})
	if errors.Is(err, errSkipSave) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
