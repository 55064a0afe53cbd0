package db

import (
	"context"

	"github.com/stevemurr/shopstore/store"
)

// Collection is a typed, blocking view of one collection.
type Collection[T any, P recordPtr[T]] struct {
	db   *DB
	name string
}

// NewCollection returns the typed view of collection name.
func NewCollection[T any, P recordPtr[T]](d *DB, name string) *Collection[T, P] {
	return &Collection[T, P]{db: d, name: name}
}

func (c *Collection[T, P]) Name() string { return c.name }

// Async returns the non-blocking view of the same collection.
func (c *Collection[T, P]) Async() *AsyncCollection[T, P] {
	return &AsyncCollection[T, P]{c: c}
}

// All returns every record in stored order.
func (c *Collection[T, P]) All(ctx context.Context) ([]T, error) {
	docs, err := c.db.All(ctx, c.name)
	if err != nil {
		return nil, err
	}
	return decodeAll[T, P](c.name, docs)
}

// Filter returns the records matching pred, in stored order.
func (c *Collection[T, P]) Filter(ctx context.Context, pred Predicate[T]) ([]T, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(all, pred), nil
}

func (c *Collection[T, P]) Get(ctx context.Context, id string) (T, error) {
	doc, err := c.db.Get(ctx, c.name, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeRecord[T, P](c.name, doc)
}

// FindOne returns the first record in stored order matching pred.
func (c *Collection[T, P]) FindOne(ctx context.Context, pred Predicate[T]) (T, error) {
	var decodeErr error
	doc, err := c.db.FindOne(ctx, c.name, func(doc store.Document) bool {
		rec, err := decodeRecord[T, P](c.name, doc)
		if err != nil {
			decodeErr = err
			return true
		}
		return pred(rec)
	})
	var zero T
	if decodeErr != nil {
		return zero, decodeErr
	}
	if err != nil {
		return zero, err
	}
	return decodeRecord[T, P](c.name, doc)
}

// Check reports whether doc decodes into the record type of the collection.
func (c *Collection[T, P]) Check(doc store.Document) error {
	_, err := decodeRecord[T, P](c.name, doc)
	return err
}

// Count returns the number of records matching pred, or all of them when pred is nil.
func (c *Collection[T, P]) Count(ctx context.Context, pred Predicate[T]) (int, error) {
	if pred == nil {
		return c.db.Count(ctx, c.name, nil)
	}
	var decodeErr error
	n, err := c.db.Count(ctx, c.name, func(doc store.Document) bool {
		if decodeErr != nil {
			return false
		}
		rec, err := decodeRecord[T, P](c.name, doc)
		if err != nil {
			decodeErr = err
			return false
		}
		return pred(rec)
	})
	if decodeErr != nil {
		return 0, decodeErr
	}
	return n, err
}

// Create stores rec and returns it as stored, with its id and creation time set.
func (c *Collection[T, P]) Create(ctx context.Context, rec T) (T, error) {
	var zero T
	P(&rec).Touch(c.db.now())
	doc, err := encodeRecord[T, P](&rec)
	if err != nil {
		return zero, err
	}
	created, err := c.db.Create(ctx, c.name, doc)
	if err != nil {
		return zero, err
	}
	return decodeRecord[T, P](c.name, created)
}

// CreateFunc stores the record built by build, which sees the records already
// stored and runs with the collection locked.
func (c *Collection[T, P]) CreateFunc(ctx context.Context, build func(existing []T) (T, error)) (T, error) {
	var zero T
	created, err := c.db.CreateFunc(ctx, c.name, func(current []store.Document) (store.Document, error) {
		existing, err := decodeAll[T, P](c.name, current)
		if err != nil {
			return nil, err
		}
		rec, err := build(existing)
		if err != nil {
			return nil, err
		}
		P(&rec).Touch(c.db.now())
		return encodeRecord[T, P](&rec)
	})
	if err != nil {
		return zero, err
	}
	return decodeRecord[T, P](c.name, created)
}

// Update merges patch onto the record with the given id and returns the result.
func (c *Collection[T, P]) Update(ctx context.Context, id string, patch Patch) (T, error) {
	updated, err := c.db.Update(ctx, c.name, id, patch)
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeRecord[T, P](c.name, updated)
}

// UpdateFunc merges the patch fn computes from the stored record, with the
// collection locked for the whole cycle.
func (c *Collection[T, P]) UpdateFunc(ctx context.Context, id string, fn func(current T) (Patch, error)) (T, error) {
	updated, err := c.db.UpdateFunc(ctx, c.name, id, func(doc store.Document) (Patch, error) {
		rec, err := decodeRecord[T, P](c.name, doc)
		if err != nil {
			return nil, err
		}
		return fn(rec)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return decodeRecord[T, P](c.name, updated)
}

// Remove deletes the record with the given id and reports whether it existed.
func (c *Collection[T, P]) Remove(ctx context.Context, id string) (bool, error) {
	return c.db.Remove(ctx, c.name, id)
}
